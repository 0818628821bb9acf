// Package domain contains the pure securities vocabulary and arithmetic: the
// instrument/lifecycle enumerations, subscription payment math, and coupon
// entitlement math. Nothing here touches storage or transport.
package domain

import (
	"github.com/RoterHund/securities-manager/pkg/apperr"
)

// InstrumentType is the class of security an issuer registers.
type InstrumentType string

const (
	Equity InstrumentType = "Equity"
	Bond   InstrumentType = "Bond"
)

func ParseInstrumentType(s string) (InstrumentType, error) {
	switch InstrumentType(s) {
	case Equity, Bond:
		return InstrumentType(s), nil
	}
	return "", apperr.Newf(apperr.InvalidArgument, "invalid security type %q", s)
}

// SecurityForm is the holding form of the instrument.
type SecurityForm string

const (
	Bearer     SecurityForm = "Bearer"
	Registered SecurityForm = "Registered"
)

func ParseSecurityForm(s string) (SecurityForm, error) {
	switch SecurityForm(s) {
	case Bearer, Registered:
		return SecurityForm(s), nil
	}
	return "", apperr.Newf(apperr.InvalidArgument, "invalid security form %q", s)
}

// InstrumentStatus gates lifecycle and subscription activity.
type InstrumentStatus string

const StatusVerified InstrumentStatus = "verified"

// SubscriptionStatus is the state of an instrument's subscription round.
type SubscriptionStatus string

const (
	SubscriptionOpen   SubscriptionStatus = "open"
	SubscriptionClosed SubscriptionStatus = "closed"
)

// ActionKind is a corporate action appended to an instrument's lifecycle.
type ActionKind string

const (
	Issuance ActionKind = "Issuance"
	Coupon   ActionKind = "Coupon"
	Dividend ActionKind = "Dividend"
)

func ParseActionKind(s string) (ActionKind, error) {
	switch ActionKind(s) {
	case Issuance, Coupon, Dividend:
		return ActionKind(s), nil
	}
	return "", apperr.Newf(apperr.InvalidArgument, "invalid action type %q", s)
}

// EscrowStatus tracks a subscription escrow record.
type EscrowStatus string

const (
	EscrowPending EscrowStatus = "pending"
	EscrowSettled EscrowStatus = "settled"
)
