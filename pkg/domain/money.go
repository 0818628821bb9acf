package domain

import (
	"strings"

	"github.com/cockroachdb/apd/v3"

	"github.com/RoterHund/securities-manager/pkg/apperr"
)

// decCtx is the shared arithmetic context. 34 digits covers every quantity and
// price the engine handles without loss.
var decCtx = apd.BaseContext.WithPrecision(34)

var hundred = apd.New(100, 0)

// ParseAmount parses a decimal amount, rejecting malformed or negative input.
func ParseAmount(s string) (*apd.Decimal, error) {
	d, _, err := apd.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, apperr.Newf(apperr.InvalidArgument, "invalid amount %q", s)
	}
	if d.Negative {
		return nil, apperr.Newf(apperr.InvalidArgument, "amount %q must not be negative", s)
	}
	return d, nil
}

// PaymentDue computes the escrow payment for a subscription: quantity is
// expressed in units of 100, price is quoted per 100 units, so
// due = quantity / 100 * price.
func PaymentDue(quantity, price *apd.Decimal) (*apd.Decimal, error) {
	lots := new(apd.Decimal)
	if _, err := decCtx.Quo(lots, quantity, hundred); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "payment computation failed", err)
	}
	due := new(apd.Decimal)
	if _, err := decCtx.Mul(due, lots, price); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "payment computation failed", err)
	}
	return due, nil
}

// Entitlement computes the cash due for a corporate action:
// payout = held * percent / 100.
func Entitlement(held, percent *apd.Decimal) (*apd.Decimal, error) {
	gross := new(apd.Decimal)
	if _, err := decCtx.Mul(gross, held, percent); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "entitlement computation failed", err)
	}
	payout := new(apd.Decimal)
	if _, err := decCtx.Quo(payout, gross, hundred); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "entitlement computation failed", err)
	}
	return payout, nil
}

// Add returns a+b in the shared context.
func Add(a, b *apd.Decimal) *apd.Decimal {
	out := new(apd.Decimal)
	_, _ = decCtx.Add(out, a, b)
	return out
}

// Sub returns a-b in the shared context.
func Sub(a, b *apd.Decimal) *apd.Decimal {
	out := new(apd.Decimal)
	_, _ = decCtx.Sub(out, a, b)
	return out
}

// Zero returns a fresh zero amount.
func Zero() *apd.Decimal { return apd.New(0, 0) }

// Positive reports whether d > 0.
func Positive(d *apd.Decimal) bool { return d.Sign() > 0 }
