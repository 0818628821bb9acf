package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/RoterHund/securities-manager/pkg/apperr"
	"github.com/RoterHund/securities-manager/pkg/domain"
)

// ClaimCorporateAction settles the next lifecycle event for an investor's
// vintage holding. The investor surrenders the full presented amount of the
// old vintage and receives the cash entitlement plus an equal amount of the
// next vintage; partial rollovers are not supported.
//
// Only Coupon events settle through this path. Issuance and Dividend entries
// are valid chain members but their settlement is not implemented.
func (e *Engine) ClaimCorporateAction(ctx context.Context, investorID string, vintage EventID, amount string) (*CashBucket, *SecurityBucket, error) {
	amt, err := domain.ParseAmount(amount)
	if err != nil {
		return nil, nil, err
	}
	if !domain.Positive(amt) {
		return nil, nil, apperr.New(apperr.InvalidArgument, "amount must be positive")
	}

	var payout *CashBucket
	var rolled *SecurityBucket
	err = e.state.Update(ctx, func(tx Tx) error {
		old, err := tx.GetVintage(vintage)
		if err != nil {
			if apperr.CodeOf(err) == apperr.NotFound {
				return apperr.New(apperr.ResourceMismatch, "the security does not exist in the securities manager")
			}
			return err
		}
		held, err := tx.Holding(investorID, vintage)
		if err != nil {
			return err
		}
		if held.Cmp(amt) < 0 {
			return apperr.New(apperr.SupplyUnavailable, "holding balance cannot cover the presented amount")
		}

		ev, err := tx.GetEvent(old.Next)
		if err != nil {
			if apperr.CodeOf(err) == apperr.NotFound {
				return apperr.New(apperr.NoEventAvailable, "no lifecycle event available to be processed")
			}
			return err
		}
		if ev.Kind != domain.Coupon {
			return apperr.Newf(apperr.UnsupportedAction, "no coupon payment due; %s settlement is not supported", ev.Kind)
		}

		due, err := domain.Entitlement(amt, ev.Percent)
		if err != nil {
			return err
		}
		pool, err := tx.CashPool()
		if err != nil {
			return err
		}
		if pool.Cmp(due) < 0 {
			return apperr.New(apperr.InsufficientFunds, "insufficient funds to pay lifecycle event")
		}

		next, err := tx.GetVintage(old.Next)
		if err != nil {
			if apperr.CodeOf(err) == apperr.NotFound {
				return apperr.New(apperr.SupplyUnavailable, "the next vintage has not been issued")
			}
			return err
		}
		if next.Custody.Cmp(amt) < 0 {
			return apperr.New(apperr.SupplyUnavailable, "next vintage custody cannot cover the rollover")
		}

		// Pay the coupon.
		if err := tx.SetCashPool(domain.Sub(pool, due)); err != nil {
			return err
		}
		acct, err := tx.CashAccount(investorID)
		if err != nil {
			return err
		}
		if err := tx.SetCashAccount(investorID, domain.Add(acct, due)); err != nil {
			return err
		}

		// Roll into the next vintage.
		next.Custody = domain.Sub(next.Custody, amt)
		if err := tx.PutVintage(next); err != nil {
			return err
		}
		nextHeld, err := tx.Holding(investorID, next.Event)
		if err != nil {
			return err
		}
		if err := tx.SetHolding(investorID, next.Event, domain.Add(nextHeld, amt)); err != nil {
			return err
		}

		// Burn the surrendered old vintage units.
		if err := tx.SetHolding(investorID, vintage, domain.Sub(held, amt)); err != nil {
			return err
		}
		old.Supply = domain.Sub(old.Supply, amt)
		if err := tx.PutVintage(old); err != nil {
			return err
		}

		payout = &CashBucket{Currency: e.policy.Currency, Amount: due}
		rolled = &SecurityBucket{Vintage: next.Event, Amount: cloneDec(amt)}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	e.log.Info("corporate action settled",
		zap.String("investor", investorID),
		zap.String("old_vintage", vintage.String()),
		zap.String("new_vintage", rolled.Vintage.String()),
		zap.String("payout", payout.Amount.String()),
	)
	return payout, rolled, nil
}
