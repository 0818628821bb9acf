package engine

import (
	"context"

	"github.com/cockroachdb/apd/v3"
)

// State is the engine's persistence boundary. Every public engine operation
// runs inside exactly one Update: all reads and writes commit together or not
// at all, which is the rollback-on-failure contract the operations rely on.
//
// Implementations: internal/store (Postgres, one SQL transaction per Update)
// and memstate (clone-and-swap, for tests and ephemeral runs).
type State interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
}

// Tx exposes the engine's state within one transaction. Lookups of absent
// records return apperr.NotFound errors.
type Tx interface {
	GetInstrument(id string) (*Instrument, error)
	PutInstrument(ins *Instrument) error
	ListInstruments() ([]*Instrument, error)

	GetEvent(id EventID) (*LifecycleEvent, error)
	PutEvent(ev *LifecycleEvent) error

	// PutLink records the forward chain entry from an event to its successor.
	PutLink(from, to EventID) error
	NextOf(id EventID) (EventID, bool, error)

	// Pending is the set of lifecycle events awaiting vintage issuance.
	AddPending(id EventID) error
	ListPending(instrumentID string) ([]EventID, error)
	RemovePending(id EventID) error

	GetVintage(id EventID) (*Vintage, error)
	PutVintage(v *Vintage) error

	// Holding is an investor's balance of one vintage. Absent rows read as zero.
	Holding(investorID string, vintage EventID) (*apd.Decimal, error)
	SetHolding(investorID string, vintage EventID, amount *apd.Decimal) error

	// CashPool is the single engine-owned custody pool.
	CashPool() (*apd.Decimal, error)
	SetCashPool(amount *apd.Decimal) error

	// CashAccount is a participant's cash balance with the platform. Payouts
	// and refunds credit it; absent rows read as zero.
	CashAccount(owner string) (*apd.Decimal, error)
	SetCashAccount(owner string, amount *apd.Decimal) error

	GetEscrow(id string) (*Escrow, error)
	PutEscrow(es *Escrow) error
	DeleteEscrow(id string) error
	// ListRetiredEscrows returns up to limit retired records across all
	// instruments, oldest first. The sweep filters by instrument itself.
	ListRetiredEscrows(limit int) ([]*Escrow, error)
}
