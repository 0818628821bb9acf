package engine

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RoterHund/securities-manager/pkg/apperr"
	"github.com/RoterHund/securities-manager/pkg/domain"
)

// Subscribe creates a pending escrow for the investor, reserving quantity
// against the instrument's cap. The payment due is quantity/100 * price, the
// price being quoted per 100 units.
func (e *Engine) Subscribe(ctx context.Context, investorID, instrumentID, quantity string) (*Escrow, error) {
	qty, err := domain.ParseAmount(quantity)
	if err != nil {
		return nil, err
	}
	if !domain.Positive(qty) {
		return nil, apperr.New(apperr.InvalidArgument, "quantity must be positive")
	}

	var es *Escrow
	err = e.state.Update(ctx, func(tx Tx) error {
		ins, err := tx.GetInstrument(instrumentID)
		if err != nil {
			return err
		}
		if ins.Subscription != domain.SubscriptionOpen {
			return apperr.New(apperr.WindowClosed, "subscription is not open")
		}
		total := domain.Add(ins.Subscribed, qty)
		if total.Cmp(ins.Cap) > 0 {
			return apperr.WithMetadata(apperr.CapacityExceeded,
				"requested amount exceeds remaining available amount",
				map[string]string{
					"cap":        ins.Cap.String(),
					"subscribed": ins.Subscribed.String(),
					"requested":  qty.String(),
				})
		}
		due, err := domain.PaymentDue(qty, ins.Price)
		if err != nil {
			return err
		}
		es = &Escrow{
			ID:           "sub_" + uuid.NewString(),
			InstrumentID: instrumentID,
			InvestorID:   investorID,
			Quantity:     qty,
			PayCurrency:  e.policy.Currency,
			PayAmount:    due,
			Status:       domain.EscrowPending,
		}
		if err := tx.PutEscrow(es); err != nil {
			return err
		}
		ins.Subscribed = total
		return tx.PutInstrument(ins)
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("subscription escrow created",
		zap.String("escrow", es.ID),
		zap.String("instrument", instrumentID),
		zap.String("quantity", es.Quantity.String()),
		zap.String("payment_due", es.PayAmount.String()),
	)
	return es, nil
}

// TransferPayment settles a pending escrow. Exactly the due amount moves into
// the cash pool; any overpayment is returned untouched as the remainder.
func (e *Engine) TransferPayment(ctx context.Context, investorID, escrowID, currency, amount string) (*CashBucket, error) {
	paid, err := domain.ParseAmount(amount)
	if err != nil {
		return nil, err
	}

	var remainder *CashBucket
	err = e.state.Update(ctx, func(tx Tx) error {
		es, err := tx.GetEscrow(escrowID)
		if err != nil {
			return err
		}
		if es.InvestorID != investorID {
			return apperr.New(apperr.Unauthorized, "escrow does not belong to this investor")
		}
		if es.Status != domain.EscrowPending {
			return apperr.New(apperr.NotReady, "the escrow is not in pending status")
		}
		if currency != es.PayCurrency {
			return apperr.Newf(apperr.ResourceMismatch,
				"payment resource %q does not match resource due %q", currency, es.PayCurrency)
		}
		if paid.Cmp(es.PayAmount) < 0 {
			return apperr.New(apperr.InsufficientPayment, "payment amount is less than the amount due")
		}

		pool, err := tx.CashPool()
		if err != nil {
			return err
		}
		if err := tx.SetCashPool(domain.Add(pool, es.PayAmount)); err != nil {
			return err
		}
		err = e.sys.Authorize(func() error {
			es.Status = domain.EscrowSettled
			return tx.PutEscrow(es)
		})
		if err != nil {
			return err
		}
		remainder = &CashBucket{Currency: currency, Amount: domain.Sub(paid, es.PayAmount)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("escrow settled", zap.String("escrow", escrowID))
	return remainder, nil
}

// CancelPayment refunds a settled escrow in full and reverts it to pending.
// Only possible while the instrument's round is still open.
func (e *Engine) CancelPayment(ctx context.Context, investorID, escrowID string) (*CashBucket, error) {
	var refund *CashBucket
	err := e.state.Update(ctx, func(tx Tx) error {
		es, err := tx.GetEscrow(escrowID)
		if err != nil {
			return err
		}
		if es.InvestorID != investorID {
			return apperr.New(apperr.Unauthorized, "escrow does not belong to this investor")
		}
		if es.Status != domain.EscrowSettled {
			return apperr.New(apperr.NotReady, "the escrow status is not settled")
		}
		if es.Retired {
			return apperr.New(apperr.NotReady, "securities already claimed for this escrow")
		}
		ins, err := tx.GetInstrument(es.InstrumentID)
		if err != nil {
			return err
		}
		if ins.Subscription == domain.SubscriptionClosed {
			return apperr.New(apperr.WindowClosed, "the subscription is now closed, no refunds allowed")
		}

		pool, err := tx.CashPool()
		if err != nil {
			return err
		}
		if pool.Cmp(es.PayAmount) < 0 {
			return apperr.New(apperr.InsufficientFunds, "cash pool cannot cover the refund")
		}
		if err := tx.SetCashPool(domain.Sub(pool, es.PayAmount)); err != nil {
			return err
		}
		acct, err := tx.CashAccount(investorID)
		if err != nil {
			return err
		}
		if err := tx.SetCashAccount(investorID, domain.Add(acct, es.PayAmount)); err != nil {
			return err
		}
		err = e.sys.Authorize(func() error {
			es.Status = domain.EscrowPending
			return tx.PutEscrow(es)
		})
		if err != nil {
			return err
		}
		refund = &CashBucket{Currency: es.PayCurrency, Amount: cloneDec(es.PayAmount)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("escrow payment cancelled", zap.String("escrow", escrowID))
	return refund, nil
}

// ClaimSecurity delivers the subscribed quantity of the instrument's first
// vintage to the investor and retires the escrow into the closed pool for the
// issuer sweep.
func (e *Engine) ClaimSecurity(ctx context.Context, investorID, escrowID string) (*SecurityBucket, error) {
	var bucket *SecurityBucket
	err := e.state.Update(ctx, func(tx Tx) error {
		es, err := tx.GetEscrow(escrowID)
		if err != nil {
			return err
		}
		if es.InvestorID != investorID {
			return apperr.New(apperr.Unauthorized, "escrow does not belong to this investor")
		}
		if es.Status != domain.EscrowSettled {
			return apperr.New(apperr.NotReady, "the escrow status is not settled")
		}
		if es.Retired {
			return apperr.New(apperr.NotReady, "securities already claimed for this escrow")
		}

		first := EventID{Instrument: es.InstrumentID, Seq: 1}
		v, err := tx.GetVintage(first)
		if err != nil {
			if apperr.CodeOf(err) == apperr.NotFound {
				return apperr.New(apperr.SupplyUnavailable, "the first vintage has not been issued")
			}
			return err
		}
		if v.Custody.Cmp(es.Quantity) < 0 {
			return apperr.New(apperr.SupplyUnavailable, "vintage custody cannot cover the subscribed quantity")
		}

		v.Custody = domain.Sub(v.Custody, es.Quantity)
		if err := tx.PutVintage(v); err != nil {
			return err
		}
		held, err := tx.Holding(investorID, first)
		if err != nil {
			return err
		}
		if err := tx.SetHolding(investorID, first, domain.Add(held, es.Quantity)); err != nil {
			return err
		}
		es.Retired = true
		if err := tx.PutEscrow(es); err != nil {
			return err
		}
		bucket = &SecurityBucket{Vintage: first, Amount: cloneDec(es.Quantity)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("securities claimed",
		zap.String("escrow", escrowID),
		zap.String("vintage", bucket.Vintage.String()),
	)
	return bucket, nil
}

// IssuerClaimCash sweeps up to batchSize retired escrows, sums the payments
// belonging to the requested instrument, destroys those records, and withdraws
// the aggregate from the cash pool as one lump sum. Full draining requires
// repeated calls; batchSize <= 0 uses the policy bound.
func (e *Engine) IssuerClaimCash(ctx context.Context, issuerID, instrumentID string, batchSize int) (*CashBucket, int, error) {
	if batchSize <= 0 || batchSize > e.policy.SweepBatchSize {
		batchSize = e.policy.SweepBatchSize
	}
	var proceeds *CashBucket
	var swept int
	err := e.state.Update(ctx, func(tx Tx) error {
		swept = 0
		ins, err := tx.GetInstrument(instrumentID)
		if err != nil {
			return err
		}
		if ins.IssuerID != issuerID {
			return apperr.New(apperr.Unauthorized, "issuer is not owner of this instrument")
		}

		retired, err := tx.ListRetiredEscrows(batchSize)
		if err != nil {
			return err
		}
		due := domain.Zero()
		for _, es := range retired {
			if es.InstrumentID != instrumentID {
				continue
			}
			if es.PayCurrency != e.policy.Currency {
				return apperr.New(apperr.ResourceMismatch, "escrow payment resource does not match the cash pool")
			}
			due = domain.Add(due, es.PayAmount)
			if err := tx.DeleteEscrow(es.ID); err != nil {
				return err
			}
			swept++
		}
		pool, err := tx.CashPool()
		if err != nil {
			return err
		}
		if pool.Cmp(due) < 0 {
			return apperr.New(apperr.InsufficientFunds, "cash pool cannot cover the issuance proceeds")
		}
		if err := tx.SetCashPool(domain.Sub(pool, due)); err != nil {
			return err
		}
		acct, err := tx.CashAccount(issuerID)
		if err != nil {
			return err
		}
		if err := tx.SetCashAccount(issuerID, domain.Add(acct, due)); err != nil {
			return err
		}
		proceeds = &CashBucket{Currency: e.policy.Currency, Amount: due}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	e.log.Info("issuance proceeds swept",
		zap.String("instrument", instrumentID),
		zap.Int("escrows", swept),
		zap.String("amount", proceeds.Amount.String()),
	)
	return proceeds, swept, nil
}

// IssuerDepositFunds tops up the cash pool so coupons can be paid after the
// issuer has withdrawn issuance proceeds.
func (e *Engine) IssuerDepositFunds(ctx context.Context, issuerID, currency, amount string) error {
	amt, err := domain.ParseAmount(amount)
	if err != nil {
		return err
	}
	if currency != e.policy.Currency {
		return apperr.Newf(apperr.ResourceMismatch, "deposit resource %q does not match the cash pool", currency)
	}
	err = e.state.Update(ctx, func(tx Tx) error {
		pool, err := tx.CashPool()
		if err != nil {
			return err
		}
		return tx.SetCashPool(domain.Add(pool, amt))
	})
	if err != nil {
		return err
	}
	e.log.Info("funds deposited", zap.String("issuer", issuerID), zap.String("amount", amt.String()))
	return nil
}
