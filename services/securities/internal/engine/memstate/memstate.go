// Package memstate is an in-memory engine.State used by tests and ephemeral
// environments. Each Update runs against a deep clone of the state and swaps
// it in only on success, which gives the same rollback-on-failure semantics as
// the SQL store.
package memstate

import (
	"context"
	"sort"
	"sync"

	"github.com/cockroachdb/apd/v3"

	"github.com/RoterHund/securities-manager/pkg/apperr"
	"github.com/RoterHund/securities-manager/services/securities/internal/engine"
)

var _ engine.State = (*State)(nil)

type holdingKey struct {
	Investor string
	Vintage  engine.EventID
}

type snapshot struct {
	instruments     map[string]*engine.Instrument
	instrumentOrder []string
	events          map[engine.EventID]*engine.LifecycleEvent
	links           map[engine.EventID]engine.EventID
	pending         map[engine.EventID]bool
	vintages        map[engine.EventID]*engine.Vintage
	holdings        map[holdingKey]*apd.Decimal
	cashPool        *apd.Decimal
	cashAccounts    map[string]*apd.Decimal
	escrows         map[string]*engine.Escrow
	escrowOrder     []string
}

type State struct {
	mu   sync.Mutex
	data snapshot
}

func New() *State {
	return &State{data: newSnapshot()}
}

func newSnapshot() snapshot {
	return snapshot{
		instruments:  make(map[string]*engine.Instrument),
		events:       make(map[engine.EventID]*engine.LifecycleEvent),
		links:        make(map[engine.EventID]engine.EventID),
		pending:      make(map[engine.EventID]bool),
		vintages:     make(map[engine.EventID]*engine.Vintage),
		holdings:     make(map[holdingKey]*apd.Decimal),
		cashPool:     apd.New(0, 0),
		cashAccounts: make(map[string]*apd.Decimal),
		escrows:      make(map[string]*engine.Escrow),
	}
}

func (s *State) Update(ctx context.Context, fn func(tx engine.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.data.clone()
	if err := fn(&tx{data: &work}); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *State) View(ctx context.Context, fn func(tx engine.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.data.clone()
	return fn(&tx{data: &work})
}

type tx struct {
	data *snapshot
}

func (t *tx) GetInstrument(id string) (*engine.Instrument, error) {
	ins, ok := t.data.instruments[id]
	if !ok {
		return nil, apperr.Newf(apperr.NotFound, "instrument %s not found", id)
	}
	return cloneInstrument(ins), nil
}

func (t *tx) PutInstrument(ins *engine.Instrument) error {
	if _, exists := t.data.instruments[ins.ID]; !exists {
		t.data.instrumentOrder = append(t.data.instrumentOrder, ins.ID)
	}
	t.data.instruments[ins.ID] = cloneInstrument(ins)
	return nil
}

func (t *tx) ListInstruments() ([]*engine.Instrument, error) {
	out := make([]*engine.Instrument, 0, len(t.data.instrumentOrder))
	for _, id := range t.data.instrumentOrder {
		out = append(out, cloneInstrument(t.data.instruments[id]))
	}
	return out, nil
}

func (t *tx) GetEvent(id engine.EventID) (*engine.LifecycleEvent, error) {
	ev, ok := t.data.events[id]
	if !ok {
		return nil, apperr.Newf(apperr.NotFound, "lifecycle event %s not found", id)
	}
	return cloneEvent(ev), nil
}

func (t *tx) PutEvent(ev *engine.LifecycleEvent) error {
	t.data.events[ev.ID] = cloneEvent(ev)
	return nil
}

func (t *tx) PutLink(from, to engine.EventID) error {
	t.data.links[from] = to
	return nil
}

func (t *tx) NextOf(id engine.EventID) (engine.EventID, bool, error) {
	next, ok := t.data.links[id]
	return next, ok, nil
}

func (t *tx) AddPending(id engine.EventID) error {
	t.data.pending[id] = true
	return nil
}

func (t *tx) ListPending(instrumentID string) ([]engine.EventID, error) {
	var out []engine.EventID
	for id := range t.data.pending {
		if id.Instrument == instrumentID {
			out = append(out, id)
		}
	}
	// Oldest first so issuance walks the chain in order.
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (t *tx) RemovePending(id engine.EventID) error {
	delete(t.data.pending, id)
	return nil
}

func (t *tx) GetVintage(id engine.EventID) (*engine.Vintage, error) {
	v, ok := t.data.vintages[id]
	if !ok {
		return nil, apperr.Newf(apperr.NotFound, "vintage %s not found", id)
	}
	return cloneVintage(v), nil
}

func (t *tx) PutVintage(v *engine.Vintage) error {
	t.data.vintages[v.Event] = cloneVintage(v)
	return nil
}

func (t *tx) Holding(investorID string, vintage engine.EventID) (*apd.Decimal, error) {
	if d, ok := t.data.holdings[holdingKey{investorID, vintage}]; ok {
		return cloneDec(d), nil
	}
	return apd.New(0, 0), nil
}

func (t *tx) SetHolding(investorID string, vintage engine.EventID, amount *apd.Decimal) error {
	t.data.holdings[holdingKey{investorID, vintage}] = cloneDec(amount)
	return nil
}

func (t *tx) CashPool() (*apd.Decimal, error) {
	return cloneDec(t.data.cashPool), nil
}

func (t *tx) SetCashPool(amount *apd.Decimal) error {
	t.data.cashPool = cloneDec(amount)
	return nil
}

func (t *tx) CashAccount(owner string) (*apd.Decimal, error) {
	if d, ok := t.data.cashAccounts[owner]; ok {
		return cloneDec(d), nil
	}
	return apd.New(0, 0), nil
}

func (t *tx) SetCashAccount(owner string, amount *apd.Decimal) error {
	t.data.cashAccounts[owner] = cloneDec(amount)
	return nil
}

func (t *tx) GetEscrow(id string) (*engine.Escrow, error) {
	es, ok := t.data.escrows[id]
	if !ok {
		return nil, apperr.Newf(apperr.NotFound, "escrow %s not found", id)
	}
	return cloneEscrow(es), nil
}

func (t *tx) PutEscrow(es *engine.Escrow) error {
	if _, exists := t.data.escrows[es.ID]; !exists {
		t.data.escrowOrder = append(t.data.escrowOrder, es.ID)
	}
	t.data.escrows[es.ID] = cloneEscrow(es)
	return nil
}

func (t *tx) DeleteEscrow(id string) error {
	delete(t.data.escrows, id)
	for i, eid := range t.data.escrowOrder {
		if eid == id {
			t.data.escrowOrder = append(t.data.escrowOrder[:i], t.data.escrowOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (t *tx) ListRetiredEscrows(limit int) ([]*engine.Escrow, error) {
	var out []*engine.Escrow
	for _, id := range t.data.escrowOrder {
		if len(out) >= limit {
			break
		}
		es := t.data.escrows[id]
		if es.Retired {
			out = append(out, cloneEscrow(es))
		}
	}
	return out, nil
}

func (s snapshot) clone() snapshot {
	out := newSnapshot()
	for id, ins := range s.instruments {
		out.instruments[id] = cloneInstrument(ins)
	}
	out.instrumentOrder = append([]string(nil), s.instrumentOrder...)
	for id, ev := range s.events {
		out.events[id] = cloneEvent(ev)
	}
	for from, to := range s.links {
		out.links[from] = to
	}
	for id := range s.pending {
		out.pending[id] = true
	}
	for id, v := range s.vintages {
		out.vintages[id] = cloneVintage(v)
	}
	for k, d := range s.holdings {
		out.holdings[k] = cloneDec(d)
	}
	out.cashPool = cloneDec(s.cashPool)
	for owner, d := range s.cashAccounts {
		out.cashAccounts[owner] = cloneDec(d)
	}
	for id, es := range s.escrows {
		out.escrows[id] = cloneEscrow(es)
	}
	out.escrowOrder = append([]string(nil), s.escrowOrder...)
	return out
}

func cloneDec(d *apd.Decimal) *apd.Decimal {
	if d == nil {
		return nil
	}
	out := new(apd.Decimal)
	out.Set(d)
	return out
}

func cloneInstrument(ins *engine.Instrument) *engine.Instrument {
	out := *ins
	out.Cap = cloneDec(ins.Cap)
	out.Price = cloneDec(ins.Price)
	out.IssuanceAmount = cloneDec(ins.IssuanceAmount)
	out.Subscribed = cloneDec(ins.Subscribed)
	out.Metadata = make(map[string]string, len(ins.Metadata))
	for k, v := range ins.Metadata {
		out.Metadata[k] = v
	}
	return &out
}

func cloneEvent(ev *engine.LifecycleEvent) *engine.LifecycleEvent {
	out := *ev
	out.Percent = cloneDec(ev.Percent)
	return &out
}

func cloneVintage(v *engine.Vintage) *engine.Vintage {
	out := *v
	out.Supply = cloneDec(v.Supply)
	out.Custody = cloneDec(v.Custody)
	return &out
}

func cloneEscrow(es *engine.Escrow) *engine.Escrow {
	out := *es
	out.Quantity = cloneDec(es.Quantity)
	out.PayAmount = cloneDec(es.PayAmount)
	return &out
}
