// Package engine implements the securities lifecycle and escrow state machine:
// the instrument registry, the per-instrument lifecycle ledger, vintage
// issuance, the subscription escrow protocol, and corporate-action settlement.
//
// Every public operation executes as one atomic unit against State. A
// precondition failure aborts the whole operation with a typed apperr error and
// no partial mutation.
package engine

import (
	"github.com/cockroachdb/apd/v3"
	"go.uber.org/zap"
)

// Policy carries the issuer-configurable defaults applied at registration time
// and the sweep pagination bound.
type Policy struct {
	DefaultCap   *apd.Decimal
	DefaultPrice *apd.Decimal
	Currency     string
	// SweepBatchSize bounds how many retired escrows one IssuerClaimCash call
	// scans. Draining more requires repeated calls.
	SweepBatchSize int
}

func DefaultPolicy() Policy {
	return Policy{
		DefaultCap:     apd.New(1000000, 0),
		DefaultPrice:   apd.New(10000, -2), // 100.00
		Currency:       "USD",
		SweepBatchSize: 100,
	}
}

type Engine struct {
	state  State
	policy Policy
	sys    *Authority
	log    *zap.Logger
}

func New(state State, policy Policy, sys *Authority, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{state: state, policy: policy, sys: sys, log: log}
}
