package flowtable

import (
	"Go2NetClassifier/internal/model"
)

// Table maps flow keys to flow state. It is not safe for concurrent use: the
// dispatch loop that owns it is its only reader and writer.
type Table struct {
	keyFunc KeyFunc
	flows   map[FlowKey]*Flow
	order   []*Flow
	byID    map[uint64]*Flow
	nextID  uint64
}

// Option configures a Table.
type Option func(*Table)

// WithKeyFunc replaces the default exact key derivation.
func WithKeyFunc(fn KeyFunc) Option {
	return func(t *Table) { t.keyFunc = fn }
}

// New creates an empty flow table.
func New(opts ...Option) *Table {
	t := &Table{
		keyFunc: ExactKey,
		flows:   make(map[FlowKey]*Flow),
		byID:    make(map[uint64]*Flow),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Resolution is the correlator's decision for one record.
type Resolution struct {
	Flow      *Flow
	Direction model.Direction
	Created   bool
}

// Resolve finds the flow and direction a record belongs to, creating a new flow
// under the record's forward key when neither direction is known. A non-nil error
// is a *model.CollisionError; the returned resolution is still usable.
func (t *Table) Resolve(rec *model.TelemetryRecord) (Resolution, error) {
	key := t.keyFunc(rec.SwitchID, rec.SrcAddr, rec.DstAddr)
	if f, ok := t.flows[key]; ok {
		return Resolution{Flow: f, Direction: model.Forward}, checkIdentity(f, rec, model.Forward)
	}

	reverseKey := t.keyFunc(rec.SwitchID, rec.DstAddr, rec.SrcAddr)
	if f, ok := t.flows[reverseKey]; ok {
		return Resolution{Flow: f, Direction: model.Reverse}, checkIdentity(f, rec, model.Reverse)
	}

	t.nextID++
	f := newFlow(t.nextID, rec)
	t.flows[key] = f
	t.byID[f.ID] = f
	t.order = append(t.order, f)
	return Resolution{Flow: f, Direction: model.Forward, Created: true}, nil
}

// Apply resolves a record and, unless the record created its flow, updates the
// resolved direction with the record's counters.
func (t *Table) Apply(rec *model.TelemetryRecord) (Resolution, UpdateResult, error) {
	res, err := t.Resolve(rec)
	if res.Created {
		return res, UpdateResult{Direction: model.Forward}, nil
	}
	upd := res.Flow.Update(res.Direction, rec.PacketCount, rec.ByteCount, rec.Timestamp)
	return res, upd, err
}

// checkIdentity verifies a key hit against the identity stored in the flow.
func checkIdentity(f *Flow, rec *model.TelemetryRecord, dir model.Direction) error {
	src, dst := rec.SrcAddr, rec.DstAddr
	if dir == model.Reverse {
		src, dst = dst, src
	}
	if f.SwitchID == rec.SwitchID && f.SrcAddr == src && f.DstAddr == dst {
		return nil
	}
	return &model.CollisionError{
		Stored:   f.Identity(),
		Incoming: model.FlowIdentity{SwitchID: rec.SwitchID, SrcAddr: rec.SrcAddr, DstAddr: rec.DstAddr},
	}
}

// Len returns the number of flows.
func (t *Table) Len() int {
	return len(t.order)
}

// Get returns the flow with the given ID.
func (t *Table) Get(id uint64) (*Flow, bool) {
	f, ok := t.byID[id]
	return f, ok
}

// Flows returns the flows in creation order. The slice must not be modified.
func (t *Table) Flows() []*Flow {
	return t.order
}

// Snapshot returns deep copies of all flows in creation order.
func (t *Table) Snapshot() []Flow {
	out := make([]Flow, len(t.order))
	for i, f := range t.order {
		out[i] = *f
	}
	return out
}
