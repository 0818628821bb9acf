package engine

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RoterHund/securities-manager/pkg/apperr"
	"github.com/RoterHund/securities-manager/pkg/domain"
)

// CreateInstrument registers a new instrument for the issuer. The instrument
// starts verified with an open round and the policy default cap and price.
func (e *Engine) CreateInstrument(ctx context.Context, issuerID, securityType, securityForm, name, symbol string) (*Instrument, error) {
	typ, err := domain.ParseInstrumentType(securityType)
	if err != nil {
		return nil, err
	}
	form, err := domain.ParseSecurityForm(securityForm)
	if err != nil {
		return nil, err
	}
	if name == "" || symbol == "" {
		return nil, apperr.New(apperr.InvalidArgument, "name and symbol are required")
	}

	ins := &Instrument{
		ID:             "ins_" + uuid.NewString(),
		IssuerID:       issuerID,
		Name:           name,
		Symbol:         symbol,
		Type:           typ,
		Form:           form,
		Status:         domain.StatusVerified,
		Subscription:   domain.SubscriptionOpen,
		Cap:            cloneDec(e.policy.DefaultCap),
		Price:          cloneDec(e.policy.DefaultPrice),
		IssuanceAmount: domain.Zero(),
		Subscribed:     domain.Zero(),
		Version:        0,
		Metadata:       domain.DefaultInstrumentMetadata(name, symbol, typ, form),
	}
	err = e.state.Update(ctx, func(tx Tx) error {
		return tx.PutInstrument(ins)
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("instrument created",
		zap.String("instrument", ins.ID),
		zap.String("issuer", issuerID),
		zap.String("symbol", symbol),
	)
	return ins, nil
}

// UpdateMetadata writes one issuer-owned metadata field. Vendor (sftr_*)
// fields are rejected; only the registering issuer may write.
func (e *Engine) UpdateMetadata(ctx context.Context, issuerID, instrumentID, key, value string) error {
	if domain.IsProtectedMetadataKey(key) {
		return apperr.Newf(apperr.Forbidden, "issuer not permissioned to update %q metadata fields", domain.ProtectedMetadataPrefix)
	}
	if key == "" {
		return apperr.New(apperr.InvalidArgument, "metadata key is required")
	}
	return e.state.Update(ctx, func(tx Tx) error {
		ins, err := tx.GetInstrument(instrumentID)
		if err != nil {
			return err
		}
		if ins.IssuerID != issuerID {
			return apperr.New(apperr.Unauthorized, "issuer is not owner of this instrument")
		}
		return e.sys.Authorize(func() error {
			ins.Metadata[key] = value
			return tx.PutInstrument(ins)
		})
	})
}

// OpenSubscription opens the instrument's subscription round. The instrument
// must have verified status.
func (e *Engine) OpenSubscription(ctx context.Context, issuerID, instrumentID string) error {
	return e.state.Update(ctx, func(tx Tx) error {
		ins, err := tx.GetInstrument(instrumentID)
		if err != nil {
			return err
		}
		if ins.IssuerID != issuerID {
			return apperr.New(apperr.Unauthorized, "issuer is not owner of this instrument")
		}
		if ins.Status != domain.StatusVerified {
			return apperr.New(apperr.NotReady, "the issuer has not verified the instrument")
		}
		return e.sys.Authorize(func() error {
			ins.Subscription = domain.SubscriptionOpen
			return tx.PutInstrument(ins)
		})
	})
}

// CloseSubscription closes the round, fixes the issuance amount from the
// running subscription counter, and resets the counter for the next round.
func (e *Engine) CloseSubscription(ctx context.Context, issuerID, instrumentID string) error {
	err := e.state.Update(ctx, func(tx Tx) error {
		ins, err := tx.GetInstrument(instrumentID)
		if err != nil {
			return err
		}
		if ins.IssuerID != issuerID {
			return apperr.New(apperr.Unauthorized, "issuer is not owner of this instrument")
		}
		return e.sys.Authorize(func() error {
			ins.Subscription = domain.SubscriptionClosed
			ins.IssuanceAmount = cloneDec(ins.Subscribed)
			ins.Subscribed = domain.Zero()
			return tx.PutInstrument(ins)
		})
	})
	if err != nil {
		return err
	}
	e.log.Info("subscription closed", zap.String("instrument", instrumentID))
	return nil
}

// GetInstrument fetches one instrument definition.
func (e *Engine) GetInstrument(ctx context.Context, instrumentID string) (*Instrument, error) {
	var out *Instrument
	err := e.state.View(ctx, func(tx Tx) error {
		ins, err := tx.GetInstrument(instrumentID)
		if err != nil {
			return err
		}
		out = ins
		return nil
	})
	return out, err
}

// ListInstruments returns every registered instrument.
func (e *Engine) ListInstruments(ctx context.Context) ([]*Instrument, error) {
	var out []*Instrument
	err := e.state.View(ctx, func(tx Tx) error {
		list, err := tx.ListInstruments()
		if err != nil {
			return err
		}
		out = list
		return nil
	})
	return out, err
}
