package manager

import (
	"Go2NetClassifier/internal/classifier"
	"Go2NetClassifier/internal/engine/flowtable"
	"Go2NetClassifier/internal/engine/protocol"
	"Go2NetClassifier/internal/metrics"
	"Go2NetClassifier/internal/model"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"go.uber.org/multierr"
)

// State is the lifecycle state of the dispatch loop.
type State int32

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "RUNNING"
	}
	return "STOPPED"
}

// ErrAlreadyRunning is returned by Run when the loop is already consuming a source.
var ErrAlreadyRunning = errors.New("dispatch loop already running")

// snapshotEvery is the record interval between snapshots in training mode.
const snapshotEvery = 10

// FlowSnapshot is a copy of one flow with its most recent classification.
type FlowSnapshot struct {
	flowtable.Flow
	Label string
}

// Snapshot is a read-only view of the flow table published by the loop.
type Snapshot struct {
	Taken   time.Time
	Records uint64
	Flows   []FlowSnapshot
}

// Manager is the dispatch loop. It owns the flow table: only the goroutine running
// Run touches it, so the table needs no locking. Other goroutines read the
// published Snapshot.
type Manager struct {
	sink    Sink
	table   *flowtable.Table
	metrics *metrics.Metrics
	log     logr.Logger

	labels   map[uint64]string
	state    atomic.Int32
	records  atomic.Uint64
	snapshot atomic.Pointer[Snapshot]
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics sets the collectors the loop updates.
func WithMetrics(m *metrics.Metrics) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

// WithTable replaces the default flow table.
func WithTable(t *flowtable.Table) Option {
	return func(mgr *Manager) { mgr.table = t }
}

// NewManager creates a dispatch loop delivering to sink.
func NewManager(sink Sink, log logr.Logger, opts ...Option) (*Manager, error) {
	if err := validateSink(sink); err != nil {
		return nil, err
	}
	m := &Manager{
		sink:   sink,
		log:    log.WithName("manager"),
		labels: make(map[uint64]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.table == nil {
		m.table = flowtable.New()
	}
	if m.metrics == nil {
		m.metrics = metrics.New(nil)
	}
	m.snapshot.Store(&Snapshot{Taken: time.Now()})
	return m, nil
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Records returns the number of records applied so far.
func (m *Manager) Records() uint64 {
	return m.records.Load()
}

// Snapshot returns the latest published view of the flow table.
func (m *Manager) Snapshot() *Snapshot {
	return m.snapshot.Load()
}

// Run consumes src until end-of-stream, cancellation or a fatal error. A normal
// end-of-stream and a cancelled or expired ctx return nil; an unexpected upstream
// exit returns an error wrapping model.ErrUpstreamTerminated. The source and the
// sink's outputs are closed on every path.
func (m *Manager) Run(ctx context.Context, src model.Source) (err error) {
	if !m.state.CompareAndSwap(int32(Stopped), int32(Running)) {
		return ErrAlreadyRunning
	}
	m.log.Info("Dispatch loop started", "state", Running)
	defer func() {
		err = multierr.Append(err, m.release(src))
		m.publish()
		m.state.Store(int32(Stopped))
		m.log.Info("Dispatch loop stopped", "state", Stopped, "records", m.Records(), "flows", m.table.Len())
	}()

	lines, err := src.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start upstream: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				m.log.Info("Deadline reached, stopping")
			} else {
				m.log.Info("Cancelled, stopping")
			}
			return nil
		case line, ok := <-lines:
			if !ok {
				if err := src.Err(); err != nil {
					return err
				}
				m.log.Info("Upstream reached end of stream")
				return nil
			}
			if err := m.handleLine(ctx, line); err != nil {
				return err
			}
		}
	}
}

// handleLine applies one upstream line. Only sink failures are returned.
func (m *Manager) handleLine(ctx context.Context, line string) error {
	rec, err := protocol.ParseLine(line)
	if err != nil {
		m.metrics.MalformedRecords.Inc()
		m.log.Error(err, "Dropping malformed telemetry line", "line", logPrefix(line), "length", len(line))
		return nil
	}
	if rec == nil {
		m.metrics.SkippedLines.Inc()
		m.log.V(1).Info("Skipping upstream output", "line", line)
		return nil
	}

	res, upd, err := m.table.Apply(rec)
	if err != nil {
		var collision *model.CollisionError
		if errors.As(err, &collision) {
			m.metrics.Collisions.Inc()
		}
		m.log.Error(err, "Flow statistics are unreliable", "flowID", res.Flow.ID)
	}
	if res.Created {
		m.metrics.FlowsCreated.Inc()
		m.metrics.Flows.Set(float64(m.table.Len()))
		m.log.V(1).Info("New flow", "flowID", res.Flow.ID, "switch", rec.SwitchID, "src", rec.SrcAddr, "dst", rec.DstAddr)
	}
	if errors.Is(upd.Err, model.ErrCounterReset) {
		m.metrics.CounterResets.Inc()
		m.log.Info("Counter reset detected, rebasing", "flowID", res.Flow.ID, "direction", upd.Direction)
	}

	n := m.records.Add(1)
	m.metrics.Records.Inc()

	switch s := m.sink.(type) {
	case *TrainingSink:
		if err := m.writeTraining(s, res.Flow); err != nil {
			return err
		}
		if n%snapshotEvery == 0 {
			m.publish()
		}
	case *ClassifierSink:
		if n%uint64(s.Cadence) == 0 {
			m.classify(ctx, s)
			m.publish()
		}
	}
	return nil
}

func (m *Manager) writeTraining(s *TrainingSink, updated *flowtable.Flow) error {
	flows := []*flowtable.Flow{updated}
	if s.AllFlows {
		flows = m.table.Flows()
	}
	for _, f := range flows {
		if err := s.Writer.WriteRow(f.TrainingRow(s.Label)); err != nil {
			return fmt.Errorf("failed to write training row: %w", err)
		}
		m.metrics.TrainingRows.Inc()
	}
	return nil
}

// classify runs one classification cycle over every flow. Any classifier failure
// skips the whole cycle; reporter failures are logged and do not stop the loop.
func (m *Manager) classify(ctx context.Context, s *ClassifierSink) {
	start := time.Now()
	flows := m.table.Flows()
	results := make([]model.Classification, 0, len(flows))
	for _, f := range flows {
		features := f.Features()
		idx, err := s.Classifier.Classify(ctx, features)
		var label string
		if err == nil {
			label, err = classifier.Label(idx)
		}
		if err != nil {
			m.metrics.SkippedCycles.Inc()
			m.log.Error(err, "Skipping classification cycle", "flowID", f.ID, "records", m.Records())
			return
		}
		results = append(results, model.Classification{
			FlowID:        f.ID,
			SwitchID:      f.SwitchID,
			SrcAddr:       f.SrcAddr,
			DstAddr:       f.DstAddr,
			Label:         label,
			ForwardStatus: f.Forward.Status,
			ReverseStatus: f.Reverse.Status,
			Features:      features,
		})
	}

	for _, c := range results {
		m.labels[c.FlowID] = c.Label
		m.metrics.Classifications.WithLabelValues(c.Label).Inc()
	}
	for _, r := range s.Reporters {
		if err := r.Report(ctx, results); err != nil {
			m.log.Error(err, "Reporter failed", "reporter", fmt.Sprintf("%T", r))
		}
	}
	m.metrics.ClassifyCycles.Inc()
	m.metrics.ClassifyLatency.Observe(time.Since(start).Seconds())
}

// logPrefixLen bounds how much of a dropped line is logged.
const logPrefixLen = 256

func logPrefix(line string) string {
	if len(line) <= logPrefixLen {
		return line
	}
	return line[:logPrefixLen] + "..."
}

// publish replaces the snapshot with the current table contents.
func (m *Manager) publish() {
	flows := m.table.Snapshot()
	out := make([]FlowSnapshot, len(flows))
	for i, f := range flows {
		out[i] = FlowSnapshot{Flow: f, Label: m.labels[f.ID]}
	}
	m.snapshot.Store(&Snapshot{Taken: time.Now(), Records: m.Records(), Flows: out})
}

// release closes the source and the sink's outputs.
func (m *Manager) release(src model.Source) error {
	err := src.Close()
	switch s := m.sink.(type) {
	case *TrainingSink:
		err = multierr.Append(err, s.Writer.Close())
	case *ClassifierSink:
		for _, r := range s.Reporters {
			err = multierr.Append(err, r.Close())
		}
	}
	if err != nil {
		m.log.Error(err, "Failed to release resources")
	}
	return err
}
