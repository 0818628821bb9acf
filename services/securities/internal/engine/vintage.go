package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/RoterHund/securities-manager/pkg/apperr"
	"github.com/RoterHund/securities-manager/pkg/domain"
)

// IssuePendingVintages mints one fungible security vintage for every lifecycle
// event that does not have one yet. The round must be closed so the issuance
// amount is fixed. Re-invocation is a no-op for events already issued: only
// newly appended events produce new vintages.
func (e *Engine) IssuePendingVintages(ctx context.Context, agentIssuerID, instrumentID string) ([]EventID, error) {
	var minted []EventID
	err := e.state.Update(ctx, func(tx Tx) error {
		minted = nil
		ins, err := tx.GetInstrument(instrumentID)
		if err != nil {
			return err
		}
		if ins.IssuerID != agentIssuerID {
			return apperr.New(apperr.Unauthorized, "agent is not appointed by this instrument's issuer")
		}
		if ins.Subscription != domain.SubscriptionClosed {
			return apperr.New(apperr.NotReady, "subscription is still open")
		}

		pending, err := tx.ListPending(instrumentID)
		if err != nil {
			return err
		}
		for _, id := range pending {
			if _, err := tx.GetVintage(id); err == nil {
				// Already issued; idempotent skip.
				if err := tx.RemovePending(id); err != nil {
					return err
				}
				continue
			} else if apperr.CodeOf(err) != apperr.NotFound {
				return err
			}
			if _, err := tx.GetEvent(id); err != nil {
				return err
			}
			next, ok, err := tx.NextOf(id)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.Newf(apperr.Internal, "lifecycle link missing for %s", id)
			}
			v := &Vintage{
				Event:   id,
				Next:    next,
				Supply:  cloneDec(ins.IssuanceAmount),
				Custody: cloneDec(ins.IssuanceAmount),
			}
			err = e.sys.Authorize(func() error {
				if err := tx.PutVintage(v); err != nil {
					return err
				}
				return tx.RemovePending(id)
			})
			if err != nil {
				return err
			}
			minted = append(minted, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, id := range minted {
		e.log.Info("vintage issued", zap.String("event", id.String()))
	}
	return minted, nil
}
