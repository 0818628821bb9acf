package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RoterHund/securities-manager/pkg/apperr"
	"github.com/RoterHund/securities-manager/pkg/domain"
)

func TestAppendEventFirstMustBeIssuance(t *testing.T) {
	e := newTestEngine(t)
	ins := createInstrument(t, e)

	_, err := e.AppendEvent(context.Background(), testIssuer, ins.ID, "Coupon", "5")
	assert.Equal(t, apperr.SequenceViolation, apperr.CodeOf(err))
}

func TestAppendEventSequencesStrictly(t *testing.T) {
	e := newTestEngine(t)
	ins := createInstrument(t, e)
	ctx := context.Background()

	first, err := e.AppendEvent(ctx, testIssuer, ins.ID, "Issuance", "0")
	require.NoError(t, err)
	assert.EqualValues(t, 1, first.ID.Seq)
	assert.Equal(t, domain.Issuance, first.Kind)

	second, err := e.AppendEvent(ctx, testIssuer, ins.ID, "Coupon", "5")
	require.NoError(t, err)
	assert.EqualValues(t, 2, second.ID.Seq)

	third, err := e.AppendEvent(ctx, testIssuer, ins.ID, "Dividend", "2.5")
	require.NoError(t, err)
	assert.EqualValues(t, 3, third.ID.Seq)

	got, err := e.GetInstrument(ctx, ins.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, got.Version)
}

func TestAppendEventRejectsUnknownKind(t *testing.T) {
	e := newTestEngine(t)
	ins := createInstrument(t, e)

	_, err := e.AppendEvent(context.Background(), testIssuer, ins.ID, "Split", "2")
	assert.Equal(t, apperr.InvalidArgument, apperr.CodeOf(err))
}

func TestAppendEventWrongIssuer(t *testing.T) {
	e := newTestEngine(t)
	ins := createInstrument(t, e)

	_, err := e.AppendEvent(context.Background(), "cred_issuer_2", ins.ID, "Issuance", "0")
	assert.Equal(t, apperr.Unauthorized, apperr.CodeOf(err))
}

func TestAppendEventUnknownInstrument(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.AppendEvent(context.Background(), testIssuer, "ins_missing", "Issuance", "0")
	assert.Equal(t, apperr.NotFound, apperr.CodeOf(err))
}
