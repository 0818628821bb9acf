package engine_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/require"

	"github.com/RoterHund/securities-manager/services/securities/internal/engine"
	"github.com/RoterHund/securities-manager/services/securities/internal/engine/memstate"
)

const (
	testIssuer   = "cred_issuer_1"
	testInvestor = "cred_investor_1"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	return engine.New(memstate.New(), engine.DefaultPolicy(), engine.NewAuthority(), nil)
}

func createInstrument(t *testing.T, e *engine.Engine) *engine.Instrument {
	t.Helper()
	ins, err := e.CreateInstrument(context.Background(), testIssuer, "Bond", "Registered", "Sovereign Bond 2030", "SB30")
	require.NoError(t, err)
	return ins
}

// subscribeAndPay runs an investor through subscribe and payment on an open
// round, returning the settled escrow.
func subscribeAndPay(t *testing.T, e *engine.Engine, investorID, instrumentID, quantity, payment string) *engine.Escrow {
	t.Helper()
	ctx := context.Background()
	es, err := e.Subscribe(ctx, investorID, instrumentID, quantity)
	require.NoError(t, err)
	_, err = e.TransferPayment(ctx, investorID, es.ID, "USD", payment)
	require.NoError(t, err)
	return es
}

// closeAndIssue fixes the round and mints every pending vintage.
func closeAndIssue(t *testing.T, e *engine.Engine, instrumentID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.CloseSubscription(ctx, testIssuer, instrumentID))
	_, err := e.IssuePendingVintages(ctx, testIssuer, instrumentID)
	require.NoError(t, err)
}

func poolBalance(t *testing.T, state *memstate.State) *apd.Decimal {
	t.Helper()
	var out *apd.Decimal
	err := state.View(context.Background(), func(tx engine.Tx) error {
		pool, err := tx.CashPool()
		if err != nil {
			return err
		}
		out = pool
		return nil
	})
	require.NoError(t, err)
	return out
}

func requireDecEqual(t *testing.T, want string, got *apd.Decimal) {
	t.Helper()
	w, _, err := apd.NewFromString(want)
	require.NoError(t, err)
	require.Zerof(t, w.Cmp(got), "want %s, got %s", want, got.String())
}
