// Package store is the Postgres implementation of engine.State. Each Update
// is one SQL transaction, which is the rollback boundary every engine
// operation relies on.
package store

import (
	"context"
	"errors"

	"github.com/cockroachdb/apd/v3"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RoterHund/securities-manager/pkg/apperr"
	"github.com/RoterHund/securities-manager/services/securities/internal/engine"
)

var _ engine.State = (*Store)(nil)

type Store struct{ DB *pgxpool.Pool }

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

func (s *Store) Update(ctx context.Context, fn func(tx engine.Tx) error) error {
	dbtx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer dbtx.Rollback(ctx)
	if err := fn(&sqlTx{ctx: ctx, tx: dbtx}); err != nil {
		return err
	}
	return dbtx.Commit(ctx)
}

func (s *Store) View(ctx context.Context, fn func(tx engine.Tx) error) error {
	dbtx, err := s.DB.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return err
	}
	defer dbtx.Rollback(ctx)
	return fn(&sqlTx{ctx: ctx, tx: dbtx})
}

type sqlTx struct {
	ctx context.Context
	tx  pgx.Tx
}

func (t *sqlTx) GetInstrument(id string) (*engine.Instrument, error) {
	row := t.tx.QueryRow(t.ctx, `
SELECT id,issuer_id,name,symbol,security_type,security_form,status,subscription_status,
       cap::text,price::text,issuance_amount::text,subscribed::text,version,metadata
FROM instruments
WHERE id=$1
FOR UPDATE
`, id)
	ins, err := scanInstrument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Newf(apperr.NotFound, "instrument %s not found", id)
	}
	return ins, err
}

func (t *sqlTx) PutInstrument(ins *engine.Instrument) error {
	_, err := t.tx.Exec(t.ctx, `
INSERT INTO instruments(id,issuer_id,name,symbol,security_type,security_form,status,subscription_status,
                        cap,price,issuance_amount,subscribed,version,metadata)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9::numeric,$10::numeric,$11::numeric,$12::numeric,$13,$14)
ON CONFLICT (id) DO UPDATE SET
  status=EXCLUDED.status,
  subscription_status=EXCLUDED.subscription_status,
  cap=EXCLUDED.cap,
  price=EXCLUDED.price,
  issuance_amount=EXCLUDED.issuance_amount,
  subscribed=EXCLUDED.subscribed,
  version=EXCLUDED.version,
  metadata=EXCLUDED.metadata
`, ins.ID, ins.IssuerID, ins.Name, ins.Symbol, ins.Type, ins.Form, ins.Status, ins.Subscription,
		ins.Cap.String(), ins.Price.String(), ins.IssuanceAmount.String(), ins.Subscribed.String(),
		ins.Version, ins.Metadata)
	return err
}

func (t *sqlTx) ListInstruments() ([]*engine.Instrument, error) {
	rows, err := t.tx.Query(t.ctx, `
SELECT id,issuer_id,name,symbol,security_type,security_form,status,subscription_status,
       cap::text,price::text,issuance_amount::text,subscribed::text,version,metadata
FROM instruments
ORDER BY created_at ASC, id ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*engine.Instrument
	for rows.Next() {
		ins, err := scanInstrument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ins)
	}
	return out, rows.Err()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanInstrument(row rowScanner) (*engine.Instrument, error) {
	var ins engine.Instrument
	var cap, price, issuance, subscribed string
	if err := row.Scan(&ins.ID, &ins.IssuerID, &ins.Name, &ins.Symbol, &ins.Type, &ins.Form,
		&ins.Status, &ins.Subscription, &cap, &price, &issuance, &subscribed,
		&ins.Version, &ins.Metadata); err != nil {
		return nil, err
	}
	var err error
	if ins.Cap, err = parseDec(cap); err != nil {
		return nil, err
	}
	if ins.Price, err = parseDec(price); err != nil {
		return nil, err
	}
	if ins.IssuanceAmount, err = parseDec(issuance); err != nil {
		return nil, err
	}
	if ins.Subscribed, err = parseDec(subscribed); err != nil {
		return nil, err
	}
	return &ins, nil
}

func (t *sqlTx) GetEvent(id engine.EventID) (*engine.LifecycleEvent, error) {
	var ev engine.LifecycleEvent
	var pct string
	err := t.tx.QueryRow(t.ctx, `
SELECT instrument_id,seq,kind,percent::text,available
FROM lifecycle_events
WHERE instrument_id=$1 AND seq=$2
`, id.Instrument, id.Seq).Scan(&ev.ID.Instrument, &ev.ID.Seq, &ev.Kind, &pct, &ev.Available)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Newf(apperr.NotFound, "lifecycle event %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	if ev.Percent, err = parseDec(pct); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (t *sqlTx) PutEvent(ev *engine.LifecycleEvent) error {
	_, err := t.tx.Exec(t.ctx, `
INSERT INTO lifecycle_events(instrument_id,seq,kind,percent,available)
VALUES($1,$2,$3,$4::numeric,$5)
ON CONFLICT (instrument_id,seq) DO UPDATE SET available=EXCLUDED.available
`, ev.ID.Instrument, ev.ID.Seq, ev.Kind, ev.Percent.String(), ev.Available)
	return err
}

func (t *sqlTx) PutLink(from, to engine.EventID) error {
	_, err := t.tx.Exec(t.ctx, `
INSERT INTO lifecycle_links(instrument_id,seq,next_seq)
VALUES($1,$2,$3)
ON CONFLICT (instrument_id,seq) DO NOTHING
`, from.Instrument, from.Seq, to.Seq)
	return err
}

func (t *sqlTx) NextOf(id engine.EventID) (engine.EventID, bool, error) {
	var nextSeq int64
	err := t.tx.QueryRow(t.ctx, `
SELECT next_seq FROM lifecycle_links WHERE instrument_id=$1 AND seq=$2
`, id.Instrument, id.Seq).Scan(&nextSeq)
	if errors.Is(err, pgx.ErrNoRows) {
		return engine.EventID{}, false, nil
	}
	if err != nil {
		return engine.EventID{}, false, err
	}
	return engine.EventID{Instrument: id.Instrument, Seq: nextSeq}, true, nil
}

func (t *sqlTx) AddPending(id engine.EventID) error {
	_, err := t.tx.Exec(t.ctx, `
INSERT INTO pending_events(instrument_id,seq) VALUES($1,$2)
ON CONFLICT DO NOTHING
`, id.Instrument, id.Seq)
	return err
}

func (t *sqlTx) ListPending(instrumentID string) ([]engine.EventID, error) {
	rows, err := t.tx.Query(t.ctx, `
SELECT instrument_id,seq FROM pending_events WHERE instrument_id=$1 ORDER BY seq ASC
`, instrumentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []engine.EventID
	for rows.Next() {
		var id engine.EventID
		if err := rows.Scan(&id.Instrument, &id.Seq); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (t *sqlTx) RemovePending(id engine.EventID) error {
	_, err := t.tx.Exec(t.ctx, `
DELETE FROM pending_events WHERE instrument_id=$1 AND seq=$2
`, id.Instrument, id.Seq)
	return err
}

func (t *sqlTx) GetVintage(id engine.EventID) (*engine.Vintage, error) {
	var v engine.Vintage
	var supply, custody string
	err := t.tx.QueryRow(t.ctx, `
SELECT instrument_id,seq,next_seq,supply::text,custody::text
FROM vintages
WHERE instrument_id=$1 AND seq=$2
FOR UPDATE
`, id.Instrument, id.Seq).Scan(&v.Event.Instrument, &v.Event.Seq, &v.Next.Seq, &supply, &custody)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Newf(apperr.NotFound, "vintage %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	v.Next.Instrument = v.Event.Instrument
	if v.Supply, err = parseDec(supply); err != nil {
		return nil, err
	}
	if v.Custody, err = parseDec(custody); err != nil {
		return nil, err
	}
	return &v, nil
}

func (t *sqlTx) PutVintage(v *engine.Vintage) error {
	_, err := t.tx.Exec(t.ctx, `
INSERT INTO vintages(instrument_id,seq,next_seq,supply,custody)
VALUES($1,$2,$3,$4::numeric,$5::numeric)
ON CONFLICT (instrument_id,seq) DO UPDATE SET
  supply=EXCLUDED.supply,
  custody=EXCLUDED.custody
`, v.Event.Instrument, v.Event.Seq, v.Next.Seq, v.Supply.String(), v.Custody.String())
	return err
}

func (t *sqlTx) Holding(investorID string, vintage engine.EventID) (*apd.Decimal, error) {
	var amount string
	err := t.tx.QueryRow(t.ctx, `
SELECT amount::text FROM holdings
WHERE investor_id=$1 AND instrument_id=$2 AND seq=$3
FOR UPDATE
`, investorID, vintage.Instrument, vintage.Seq).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return apd.New(0, 0), nil
	}
	if err != nil {
		return nil, err
	}
	return parseDec(amount)
}

func (t *sqlTx) SetHolding(investorID string, vintage engine.EventID, amount *apd.Decimal) error {
	_, err := t.tx.Exec(t.ctx, `
INSERT INTO holdings(investor_id,instrument_id,seq,amount)
VALUES($1,$2,$3,$4::numeric)
ON CONFLICT (investor_id,instrument_id,seq) DO UPDATE SET amount=EXCLUDED.amount
`, investorID, vintage.Instrument, vintage.Seq, amount.String())
	return err
}

func (t *sqlTx) CashPool() (*apd.Decimal, error) {
	var balance string
	err := t.tx.QueryRow(t.ctx, `SELECT balance::text FROM cash_pool WHERE id=1 FOR UPDATE`).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return apd.New(0, 0), nil
	}
	if err != nil {
		return nil, err
	}
	return parseDec(balance)
}

func (t *sqlTx) SetCashPool(amount *apd.Decimal) error {
	_, err := t.tx.Exec(t.ctx, `
INSERT INTO cash_pool(id,balance) VALUES(1,$1::numeric)
ON CONFLICT (id) DO UPDATE SET balance=EXCLUDED.balance
`, amount.String())
	return err
}

func (t *sqlTx) CashAccount(owner string) (*apd.Decimal, error) {
	var balance string
	err := t.tx.QueryRow(t.ctx, `
SELECT balance::text FROM cash_accounts WHERE owner=$1 FOR UPDATE
`, owner).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return apd.New(0, 0), nil
	}
	if err != nil {
		return nil, err
	}
	return parseDec(balance)
}

func (t *sqlTx) SetCashAccount(owner string, amount *apd.Decimal) error {
	_, err := t.tx.Exec(t.ctx, `
INSERT INTO cash_accounts(owner,balance) VALUES($1,$2::numeric)
ON CONFLICT (owner) DO UPDATE SET balance=EXCLUDED.balance
`, owner, amount.String())
	return err
}

func (t *sqlTx) GetEscrow(id string) (*engine.Escrow, error) {
	var es engine.Escrow
	var qty, pay string
	err := t.tx.QueryRow(t.ctx, `
SELECT id,instrument_id,investor_id,quantity::text,pay_currency,pay_amount::text,status,retired
FROM escrows
WHERE id=$1
FOR UPDATE
`, id).Scan(&es.ID, &es.InstrumentID, &es.InvestorID, &qty, &es.PayCurrency, &pay, &es.Status, &es.Retired)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Newf(apperr.NotFound, "escrow %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	if es.Quantity, err = parseDec(qty); err != nil {
		return nil, err
	}
	if es.PayAmount, err = parseDec(pay); err != nil {
		return nil, err
	}
	return &es, nil
}

func (t *sqlTx) PutEscrow(es *engine.Escrow) error {
	_, err := t.tx.Exec(t.ctx, `
INSERT INTO escrows(id,instrument_id,investor_id,quantity,pay_currency,pay_amount,status,retired)
VALUES($1,$2,$3,$4::numeric,$5,$6::numeric,$7,$8)
ON CONFLICT (id) DO UPDATE SET status=EXCLUDED.status, retired=EXCLUDED.retired
`, es.ID, es.InstrumentID, es.InvestorID, es.Quantity.String(), es.PayCurrency, es.PayAmount.String(),
		es.Status, es.Retired)
	return err
}

func (t *sqlTx) DeleteEscrow(id string) error {
	_, err := t.tx.Exec(t.ctx, `DELETE FROM escrows WHERE id=$1`, id)
	return err
}

func (t *sqlTx) ListRetiredEscrows(limit int) ([]*engine.Escrow, error) {
	rows, err := t.tx.Query(t.ctx, `
SELECT id,instrument_id,investor_id,quantity::text,pay_currency,pay_amount::text,status,retired
FROM escrows
WHERE retired
ORDER BY created_at ASC, id ASC
LIMIT $1
FOR UPDATE
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*engine.Escrow
	for rows.Next() {
		var es engine.Escrow
		var qty, pay string
		if err := rows.Scan(&es.ID, &es.InstrumentID, &es.InvestorID, &qty, &es.PayCurrency, &pay,
			&es.Status, &es.Retired); err != nil {
			return nil, err
		}
		if es.Quantity, err = parseDec(qty); err != nil {
			return nil, err
		}
		if es.PayAmount, err = parseDec(pay); err != nil {
			return nil, err
		}
		out = append(out, &es)
	}
	return out, rows.Err()
}

func parseDec(s string) (*apd.Decimal, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "corrupt numeric column", err)
	}
	return d, nil
}
