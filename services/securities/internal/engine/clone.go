package engine

import "github.com/cockroachdb/apd/v3"

func cloneDec(d *apd.Decimal) *apd.Decimal {
	if d == nil {
		return nil
	}
	out := new(apd.Decimal)
	out.Set(d)
	return out
}
