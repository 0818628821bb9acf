package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/RoterHund/securities-manager/pkg/apperr"
	"github.com/RoterHund/securities-manager/pkg/domain"
)

// AppendEvent appends one corporate action to the instrument's lifecycle
// chain. Sequence numbers are allocated strictly in order per instrument, the
// first event must be an Issuance, and the forward link to the not-yet-created
// successor is recorded so settlement can resolve "what is due next" without
// rescanning the chain.
func (e *Engine) AppendEvent(ctx context.Context, agentIssuerID, instrumentID, actionType, percent string) (*LifecycleEvent, error) {
	kind, err := domain.ParseActionKind(actionType)
	if err != nil {
		return nil, err
	}
	pct, err := domain.ParseAmount(percent)
	if err != nil {
		return nil, err
	}

	var ev *LifecycleEvent
	err = e.state.Update(ctx, func(tx Tx) error {
		ins, err := tx.GetInstrument(instrumentID)
		if err != nil {
			return err
		}
		if ins.IssuerID != agentIssuerID {
			return apperr.New(apperr.Unauthorized, "agent is not appointed by this instrument's issuer")
		}
		if ins.Status != domain.StatusVerified {
			return apperr.New(apperr.NotReady, "the issuer has not verified the instrument")
		}

		seq := ins.Version + 1
		if seq == 1 && kind != domain.Issuance {
			return apperr.New(apperr.SequenceViolation, "the first lifecycle event must be an Issuance")
		}

		ev = &LifecycleEvent{
			ID:        EventID{Instrument: instrumentID, Seq: seq},
			Kind:      kind,
			Percent:   pct,
			Available: true,
		}
		return e.sys.Authorize(func() error {
			if err := tx.PutEvent(ev); err != nil {
				return err
			}
			if err := tx.PutLink(ev.ID, ev.ID.Next()); err != nil {
				return err
			}
			if err := tx.AddPending(ev.ID); err != nil {
				return err
			}
			ins.Version = seq
			return tx.PutInstrument(ins)
		})
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("lifecycle event appended",
		zap.String("event", ev.ID.String()),
		zap.String("kind", string(ev.Kind)),
	)
	return ev, nil
}
