package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/terminal-bench/gridpulse/internal/concurrency"
	"github.com/terminal-bench/gridpulse/internal/engine"
	"github.com/terminal-bench/gridpulse/pkg/circuit"
	"github.com/terminal-bench/gridpulse/pkg/models"
)

// DefaultInterval is the evaluation period of the monitor.
const DefaultInterval = 5 * time.Second

// Sink receives every published snapshot.
type Sink interface {
	Publish(ctx context.Context, snap *models.GridSnapshot) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, snap *models.GridSnapshot) error

func (f SinkFunc) Publish(ctx context.Context, snap *models.GridSnapshot) error { return f(ctx, snap) }

// Monitor periodically evaluates every society and publishes grid snapshots.
type Monitor struct {
	eng      *engine.Engine
	interval time.Duration
	workers  int
	log      *zap.Logger
	now      func() time.Time
	sinks    []Sink

	snap atomic.Pointer[models.GridSnapshot]

	tickMu sync.Mutex
	seq    uint64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option customises a Monitor.
type Option func(*Monitor)

// WithInterval sets the tick period.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithWorkers bounds the number of societies evaluated concurrently.
func WithWorkers(n int) Option { return func(m *Monitor) { m.workers = n } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(m *Monitor) { m.log = l } }

// WithClock sets the snapshot timestamp clock.
func WithClock(now func() time.Time) Option { return func(m *Monitor) { m.now = now } }

// WithSinks appends snapshot sinks.
func WithSinks(sinks ...Sink) Option { return func(m *Monitor) { m.sinks = append(m.sinks, sinks...) } }

// NewMonitor creates a stopped monitor.
func NewMonitor(eng *engine.Engine, opts ...Option) *Monitor {
	m := &Monitor{
		eng:      eng,
		interval: DefaultInterval,
		workers:  4,
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins ticking until Stop is called or ctx is done. It returns false when
// the monitor is already running.
func (m *Monitor) Start(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return false
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel, m.done = cancel, done
	go m.run(ctx, done)
	m.log.Info("monitor started", zap.Duration("interval", m.interval))
	return true
}

// Stop halts the monitor and waits for any in-flight tick. It returns false when
// the monitor was not running.
func (m *Monitor) Stop() bool {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	<-done
	m.log.Info("monitor stopped")
	return true
}

// Running reports whether the ticker is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

// Snapshot returns the latest published snapshot, or nil before the first tick.
func (m *Monitor) Snapshot() *models.GridSnapshot {
	return m.snap.Load()
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	m.tickLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tickLogged(ctx)
		}
	}
}

func (m *Monitor) tickLogged(ctx context.Context) {
	if _, err := m.Tick(ctx); err != nil && ctx.Err() == nil {
		m.log.Error("tick failed", zap.Error(err))
	}
}

// Tick evaluates every society once and publishes the resulting snapshot.
// A tick whose context is cancelled before publication leaves no trace.
func (m *Monitor) Tick(ctx context.Context) (*models.GridSnapshot, error) {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()

	tbl := m.eng.Topology()
	societies := tbl.Societies()
	seq := m.seq + 1
	evals, err := concurrency.ParallelMap(ctx, societies, m.workers,
		func(_ context.Context, soc models.Society) (engine.Evaluation, error) {
			return m.eng.EvaluateTick(soc.ID, seq)
		})
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := &models.GridSnapshot{
		Seq:       seq,
		Timestamp: m.now(),
		Societies: make([]models.SocietySnapshot, 0, len(societies)),
		Zones:     map[string]models.GridStabilityIndex{},
		Cities:    map[string]models.GridStabilityIndex{},
	}
	for _, inc := range m.eng.TakeManualIncidents() {
		snap.Incidents = append(snap.Incidents, inc)
		m.log.Info("manual incident queued", zap.String("society", inc.SocietyID), zap.String("id", inc.ID))
	}
	bySociety := make(map[string][]models.TransformerStatus, len(evals))
	var all []models.TransformerStatus
	for i, ev := range evals {
		for _, a := range ev.Assessments {
			if inc, ok := m.eng.RecordAssessment(a); ok {
				snap.Incidents = append(snap.Incidents, inc)
				m.log.Info("incident recorded",
					zap.String("society", inc.SocietyID),
					zap.String("transformer", a.TransformerID),
					zap.String("severity", string(inc.Severity)),
					zap.String("reason", inc.Description))
			}
		}
		bySociety[ev.SocietyID] = ev.Statuses
		all = append(all, ev.Statuses...)
		snap.Societies = append(snap.Societies, models.SocietySnapshot{
			SocietyID: ev.SocietyID,
			Name:      societies[i].Name,
			ZoneID:    societies[i].ZoneID,
			Statuses:  ev.Statuses,
			Stability: m.eng.Aggregate(ev.Statuses),
			Summary:   Summarize(ev.Statuses),
		})
	}
	for _, city := range tbl.Cities() {
		for _, z := range tbl.ZonesOf(city) {
			gsi, err := m.eng.AggregateZone(z.ID, bySociety)
			if err != nil {
				return nil, err
			}
			snap.Zones[z.ID] = gsi
		}
		gsi, err := m.eng.AggregateCity(city.ID, bySociety)
		if err != nil {
			return nil, err
		}
		snap.Cities[city.ID] = gsi
	}
	snap.Grid = m.eng.Aggregate(all)

	m.seq = snap.Seq
	m.snap.Store(snap)
	m.log.Debug("tick published",
		zap.Uint64("seq", snap.Seq),
		zap.Int("gsi", snap.Grid.GSI),
		zap.Int("incidents", len(snap.Incidents)))

	for _, s := range m.sinks {
		err := s.Publish(ctx, snap)
		switch {
		case err == nil:
		case errors.Is(err, circuit.ErrCircuitOpen):
			m.log.Debug("sink skipped", zap.String("sink", sinkName(s)))
		default:
			m.log.Warn("sink publish failed", zap.String("sink", sinkName(s)), zap.Error(err))
		}
	}
	return snap, nil
}

func sinkName(s Sink) string {
	if g, ok := s.(*guardedSink); ok {
		return g.breaker.Name()
	}
	return fmt.Sprintf("%T", s)
}

// Summarize computes the heatmap summary of a society's transformers.
func Summarize(statuses []models.TransformerStatus) models.SocietySummary {
	sum := models.SocietySummary{WorstLevel: models.RiskNormal}
	if len(statuses) == 0 {
		return sum
	}
	util := make([]float64, len(statuses))
	for i, st := range statuses {
		util[i] = st.UtilizationPercent
		if st.RiskLevel == models.RiskCritical {
			sum.CriticalCount++
		}
		if st.RiskLevel.Rank() > sum.WorstLevel.Rank() {
			sum.WorstLevel = st.RiskLevel
		}
	}
	sum.AvgUtilization = stat.Mean(util, nil)
	return sum
}
