package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RoterHund/securities-manager/pkg/apperr"
)

func TestIssuePendingVintagesRequiresClosedRound(t *testing.T) {
	e := newTestEngine(t)
	ins := createInstrument(t, e)
	ctx := context.Background()

	_, err := e.AppendEvent(ctx, testIssuer, ins.ID, "Issuance", "0")
	require.NoError(t, err)

	_, err = e.IssuePendingVintages(ctx, testIssuer, ins.ID)
	assert.Equal(t, apperr.NotReady, apperr.CodeOf(err))
}

func TestIssuePendingVintagesMintsOnePerEvent(t *testing.T) {
	e := newTestEngine(t)
	ins := createInstrument(t, e)
	ctx := context.Background()

	subscribeAndPay(t, e, testInvestor, ins.ID, "1000", "1000.00")
	_, err := e.AppendEvent(ctx, testIssuer, ins.ID, "Issuance", "0")
	require.NoError(t, err)
	_, err = e.AppendEvent(ctx, testIssuer, ins.ID, "Coupon", "5")
	require.NoError(t, err)
	require.NoError(t, e.CloseSubscription(ctx, testIssuer, ins.ID))

	minted, err := e.IssuePendingVintages(ctx, testIssuer, ins.ID)
	require.NoError(t, err)
	require.Len(t, minted, 2)
	assert.EqualValues(t, 1, minted[0].Seq)
	assert.EqualValues(t, 2, minted[1].Seq)
}

func TestIssuePendingVintagesIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	ins := createInstrument(t, e)
	ctx := context.Background()

	es := subscribeAndPay(t, e, testInvestor, ins.ID, "500", "500.00")
	_, err := e.AppendEvent(ctx, testIssuer, ins.ID, "Issuance", "0")
	require.NoError(t, err)
	closeAndIssue(t, e, ins.ID)

	minted, err := e.IssuePendingVintages(ctx, testIssuer, ins.ID)
	require.NoError(t, err)
	assert.Empty(t, minted)

	// Supply still backs exactly one claim of the full round.
	bucket, err := e.ClaimSecurity(ctx, testInvestor, es.ID)
	require.NoError(t, err)
	requireDecEqual(t, "500", bucket.Amount)
}

func TestIssuePendingVintagesOnlyNewEventsAfterReclose(t *testing.T) {
	e := newTestEngine(t)
	ins := createInstrument(t, e)
	ctx := context.Background()

	subscribeAndPay(t, e, testInvestor, ins.ID, "500", "500.00")
	_, err := e.AppendEvent(ctx, testIssuer, ins.ID, "Issuance", "0")
	require.NoError(t, err)
	closeAndIssue(t, e, ins.ID)

	_, err = e.AppendEvent(ctx, testIssuer, ins.ID, "Coupon", "3")
	require.NoError(t, err)
	minted, err := e.IssuePendingVintages(ctx, testIssuer, ins.ID)
	require.NoError(t, err)
	require.Len(t, minted, 1)
	assert.EqualValues(t, 2, minted[0].Seq)
}
