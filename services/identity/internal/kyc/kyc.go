// Package kyc holds the investor admission rules.
package kyc

import "github.com/RoterHund/securities-manager/pkg/apperr"

// Check applies the investor admission rules: US residents are excluded from
// the offering, and applicants with the rejected marker value are refused.
func Check(country string, favouriteInt int) error {
	if country == "US" || country == "USA" {
		return apperr.New(apperr.Forbidden, "US residents cannot participate in this offering")
	}
	if favouriteInt == 666 {
		return apperr.New(apperr.Forbidden, "the applicant failed the admission screen")
	}
	return nil
}
