package domain

import "strings"

// ProtectedMetadataPrefix marks fields owned by the data-vendor/regulatory
// collaborator (SFTR reporting codes). Issuers cannot write them.
const ProtectedMetadataPrefix = "sftr"

func IsProtectedMetadataKey(key string) bool {
	return strings.HasPrefix(key, ProtectedMetadataPrefix)
}

// DefaultInstrumentMetadata seeds a new instrument with the static fields an
// issuer registers plus the vendor-provided regulatory placeholders.
func DefaultInstrumentMetadata(name, symbol string, typ InstrumentType, form SecurityForm) map[string]string {
	return map[string]string{
		"name":          name,
		"symbol":        symbol,
		"security_type": string(typ),
		"security_form": string(form),
		"currency":      "USD",
		"coupon":        "5%",

		"sftr_issuer_lei":          "LEI000000000000",
		"sftr_issuer_jurisdiction": "US",
		"sftr_security_type":       "GOVT",
		"sftr_security_quality":    "INVG",
		"sftr_security_rating":     "AAA+",
	}
}
