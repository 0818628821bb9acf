package domain

import "testing"

func TestParseEnumerations(t *testing.T) {
	if _, err := ParseInstrumentType("Equity"); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if _, err := ParseInstrumentType("Derivative"); err == nil {
		t.Fatal("expected invalid security type")
	}
	if _, err := ParseSecurityForm("Bearer"); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if _, err := ParseSecurityForm("Dematerialized"); err == nil {
		t.Fatal("expected invalid security form")
	}
	if _, err := ParseActionKind("Coupon"); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if _, err := ParseActionKind("Split"); err == nil {
		t.Fatal("expected invalid action type")
	}
}

func TestProtectedMetadataNamespace(t *testing.T) {
	if !IsProtectedMetadataKey("sftr_security_rating") {
		t.Fatal("sftr fields belong to the vendor namespace")
	}
	if IsProtectedMetadataKey("coupon") {
		t.Fatal("coupon is issuer-writable")
	}
}
