package engine

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"

	"github.com/RoterHund/securities-manager/pkg/domain"
)

// EventID identifies one lifecycle event: an instrument plus its 1-based
// sequence number. The id of the event after this one is derivable without
// that event existing, which is what the forward lifecycle chain relies on.
type EventID struct {
	Instrument string `json:"instrument"`
	Seq        int64  `json:"seq"`
}

func (e EventID) Next() EventID {
	return EventID{Instrument: e.Instrument, Seq: e.Seq + 1}
}

func (e EventID) String() string {
	return fmt.Sprintf("%s#%d", e.Instrument, e.Seq)
}

// Instrument is the registered security definition and its round state.
type Instrument struct {
	ID             string
	IssuerID       string
	Name           string
	Symbol         string
	Type           domain.InstrumentType
	Form           domain.SecurityForm
	Status         domain.InstrumentStatus
	Subscription   domain.SubscriptionStatus
	Cap            *apd.Decimal
	Price          *apd.Decimal
	IssuanceAmount *apd.Decimal
	// Subscribed is the running subscription counter for the current round.
	Subscribed *apd.Decimal
	// Version is the sequence number of the latest lifecycle event.
	Version  int64
	Metadata map[string]string
}

// LifecycleEvent is one corporate action in an instrument's chain.
type LifecycleEvent struct {
	ID        EventID
	Kind      domain.ActionKind
	Percent   *apd.Decimal
	Available bool
}

// Vintage is the fungible security minted for one lifecycle event. Custody is
// the engine-held balance still unclaimed; Supply shrinks as old vintages are
// burned at settlement.
type Vintage struct {
	Event   EventID
	Next    EventID
	Supply  *apd.Decimal
	Custody *apd.Decimal
}

// Escrow is one investor subscription record. Retired escrows have had their
// securities claimed and wait in the closed pool for the issuer sweep.
type Escrow struct {
	ID           string
	InstrumentID string
	InvestorID   string
	Quantity     *apd.Decimal
	PayCurrency  string
	PayAmount    *apd.Decimal
	Status       domain.EscrowStatus
	Retired      bool
}

// CashBucket describes cash credited to a caller by an operation.
type CashBucket struct {
	Currency string       `json:"currency"`
	Amount   *apd.Decimal `json:"amount"`
}

// SecurityBucket describes vintage units credited to a caller.
type SecurityBucket struct {
	Vintage EventID      `json:"vintage"`
	Amount  *apd.Decimal `json:"amount"`
}
