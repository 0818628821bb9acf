package domain

import "testing"

func TestPaymentDuePer100Units(t *testing.T) {
	qty, _ := ParseAmount("500000")
	price, _ := ParseAmount("100.00")
	due, err := PaymentDue(qty, price)
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	want, _ := ParseAmount("500000.00")
	if due.Cmp(want) != 0 {
		t.Fatalf("expected 500000.00, got %s", due)
	}
}

func TestEntitlementCoupon(t *testing.T) {
	held, _ := ParseAmount("1000")
	pct, _ := ParseAmount("5")
	payout, err := Entitlement(held, pct)
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	want, _ := ParseAmount("50")
	if payout.Cmp(want) != 0 {
		t.Fatalf("expected 50, got %s", payout)
	}
}

func TestParseAmountRejectsNegative(t *testing.T) {
	if _, err := ParseAmount("-10"); err == nil {
		t.Fatal("expected error for negative amount")
	}
	if _, err := ParseAmount("abc"); err == nil {
		t.Fatal("expected error for malformed amount")
	}
}
