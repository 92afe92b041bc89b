package engine

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/terminal-bench/gridpulse/internal/carbon"
	"github.com/terminal-bench/gridpulse/internal/entropy"
	"github.com/terminal-bench/gridpulse/internal/incidents"
	"github.com/terminal-bench/gridpulse/internal/risk"
	"github.com/terminal-bench/gridpulse/internal/scenario"
	"github.com/terminal-bench/gridpulse/internal/stability"
	"github.com/terminal-bench/gridpulse/internal/telemetry"
	"github.com/terminal-bench/gridpulse/internal/topology"
	"github.com/terminal-bench/gridpulse/pkg/models"
)

var (
	// ErrUnknownSociety is returned for society ids absent from the topology.
	ErrUnknownSociety = topology.ErrUnknownSociety
	// ErrNoHistory is returned when the telemetry source cannot replay a day.
	ErrNoHistory = errors.New("telemetry source has no history")
)

// Engine is the grid risk and simulation facade polled by the presentation layer.
type Engine struct {
	tbl        *topology.Table
	classifier *risk.Classifier
	aggregator *stability.Aggregator
	accountant *carbon.Accountant
	incidents  *incidents.Recorder
	anomalies  *incidents.AnomalyLog
	telemetry  telemetry.Source
	src        entropy.Source
	now        func() time.Time

	pendingMu sync.Mutex
	pending   []models.Incident
}

type options struct {
	risk      risk.Config
	factors   carbon.Factors
	band      carbon.ShiftBand
	src       entropy.Source
	telemetry telemetry.Source
	now       func() time.Time
	recorder  []incidents.Option
}

// Option customises an Engine.
type Option func(*options)

// WithEntropy sets the randomness source for every stage.
func WithEntropy(src entropy.Source) Option { return func(o *options) { o.src = src } }

// WithTelemetry sets the reading source.
func WithTelemetry(s telemetry.Source) Option { return func(o *options) { o.telemetry = s } }

// WithClock sets the wall clock used for hour-of-day and timestamps.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithRiskConfig sets classifier parameters.
func WithRiskConfig(c risk.Config) Option { return func(o *options) { o.risk = c } }

// WithCarbon sets emission factors and the shift sampling band.
func WithCarbon(f carbon.Factors, band carbon.ShiftBand) Option {
	return func(o *options) { o.factors, o.band = f, band }
}

// WithRecorderOptions passes options through to the incident recorder.
func WithRecorderOptions(opts ...incidents.Option) Option {
	return func(o *options) { o.recorder = append(o.recorder, opts...) }
}

// New builds an engine over tbl.
func New(tbl *topology.Table, opts ...Option) (*Engine, error) {
	if tbl == nil {
		return nil, fmt.Errorf("%w: nil table", topology.ErrInvalidTopology)
	}
	o := options{
		risk:    risk.DefaultConfig(),
		factors: carbon.DefaultFactors(),
		band:    carbon.DefaultShiftBand(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.src == nil {
		o.src = entropy.NewRand(time.Now().UnixNano())
	}
	if o.telemetry == nil {
		o.telemetry = telemetry.NewProfileSource(o.src, o.now)
	}
	classifier, err := risk.NewClassifier(o.risk)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}
	accountant, err := carbon.NewAccountant(o.factors, o.band)
	if err != nil {
		return nil, fmt.Errorf("carbon: %w", err)
	}
	recOpts := append([]incidents.Option{incidents.WithClock(o.now)}, o.recorder...)
	return &Engine{
		tbl:        tbl,
		classifier: classifier,
		aggregator: stability.NewAggregator(o.src),
		accountant: accountant,
		incidents:  incidents.NewRecorder(recOpts...),
		anomalies:  incidents.NewAnomalyLog(),
		telemetry:  o.telemetry,
		src:        o.src,
		now:        o.now,
	}, nil
}

// Topology returns the reference table.
func (e *Engine) Topology() *topology.Table { return e.tbl }

// Classify scores one reading.
func (e *Engine) Classify(reading models.EnergyReading, capacity float64) (models.HybridRiskResult, error) {
	return e.classifier.Classify(reading, capacity, e.src)
}

// Assess scores one reading and attributes it.
func (e *Engine) Assess(reading models.EnergyReading, capacity float64) (models.AnomalyResult, error) {
	return e.classifier.Assess(reading, capacity, e.src)
}

// Evaluation is the complete result of evaluating one society for one tick.
type Evaluation struct {
	SocietyID   string
	Statuses    []models.TransformerStatus
	Assessments []models.AnomalyResult
}

// Evaluate samples and classifies every configured transformer of a society
// using the society's rated capacity.
func (e *Engine) Evaluate(societyID string) (Evaluation, error) {
	soc, err := e.tbl.Society(societyID)
	if err != nil {
		return Evaluation{}, err
	}
	return e.evaluate(soc, soc.TransformerCapacity, e.src, e.telemetry)
}

// EvaluateTick is Evaluate for one monitor tick. Draws come from a stream forked
// off the engine source by society id and tick sequence, so the outcome of a
// seeded engine does not depend on how societies are scheduled across workers.
func (e *Engine) EvaluateTick(societyID string, seq uint64) (Evaluation, error) {
	soc, err := e.tbl.Society(societyID)
	if err != nil {
		return Evaluation{}, err
	}
	if _, ok := e.src.(entropy.Forker); !ok {
		return e.evaluate(soc, soc.TransformerCapacity, e.src, e.telemetry)
	}
	src := entropy.Fork(e.src, fmt.Sprintf("%s/%d", soc.ID, seq))
	tel := e.telemetry
	if b, ok := tel.(telemetry.Binder); ok {
		tel = b.Bind(src)
	}
	return e.evaluate(soc, soc.TransformerCapacity, src, tel)
}

// StatusesFor returns one status per configured transformer of societyID.
func (e *Engine) StatusesFor(societyID string, capacity float64) ([]models.TransformerStatus, error) {
	soc, err := e.tbl.Society(societyID)
	if err != nil {
		return nil, err
	}
	ev, err := e.evaluate(soc, capacity, e.src, e.telemetry)
	if err != nil {
		return nil, err
	}
	return ev.Statuses, nil
}

func (e *Engine) evaluate(soc models.Society, capacity float64, src entropy.Source, tel telemetry.Source) (Evaluation, error) {
	if !(capacity > 0) || math.IsInf(capacity, 1) {
		return Evaluation{}, risk.ErrInvalidCapacity
	}
	hour := e.now().Hour()
	ids := topology.TransformerIDs(soc)
	ev := Evaluation{
		SocietyID:   soc.ID,
		Statuses:    make([]models.TransformerStatus, 0, len(ids)),
		Assessments: make([]models.AnomalyResult, 0, len(ids)),
	}
	for i, id := range ids {
		reading := tel.Reading(soc.ID, id, hour)
		a, err := e.classifier.Assess(reading, capacity, src)
		if err != nil {
			return Evaluation{}, err
		}
		ev.Assessments = append(ev.Assessments, a)
		ev.Statuses = append(ev.Statuses, models.TransformerStatus{
			ID:                 id,
			SocietyID:          soc.ID,
			Name:               topology.TransformerName(i),
			CurrentLoad:        reading.LoadKw,
			Capacity:           capacity,
			UtilizationPercent: math.Min(math.Max(a.Utilization*100, 0), 100),
			RiskLevel:          a.RiskLevel,
			Temperature:        reading.TemperatureC,
		})
	}
	return ev, nil
}

// Aggregate computes the stability index of statuses.
func (e *Engine) Aggregate(statuses []models.TransformerStatus) models.GridStabilityIndex {
	return e.aggregator.Aggregate(statuses)
}

// AggregateZone computes the stability index of a zone from per-society statuses.
func (e *Engine) AggregateZone(zoneID string, bySociety map[string][]models.TransformerStatus) (models.GridStabilityIndex, error) {
	z, err := e.tbl.Zone(zoneID)
	if err != nil {
		return models.GridStabilityIndex{}, err
	}
	return e.aggregator.AggregateZone(z, bySociety), nil
}

// AggregateCity computes the stability index of a city from per-society statuses.
func (e *Engine) AggregateCity(cityID string, bySociety map[string][]models.TransformerStatus) (models.GridStabilityIndex, error) {
	c, err := e.tbl.City(cityID)
	if err != nil {
		return models.GridStabilityIndex{}, err
	}
	return e.aggregator.AggregateCity(e.tbl, c, bySociety), nil
}

// DemandResponse projects off-peak shifting for a society.
func (e *Engine) DemandResponse(participationPercent float64, societyID string) (models.DemandResponseScenario, error) {
	soc, err := e.tbl.Society(societyID)
	if err != nil {
		return models.DemandResponseScenario{}, err
	}
	return scenario.DemandResponse(participationPercent, soc), nil
}

// DemandResponseCurve evaluates the default participation steps for a society.
func (e *Engine) DemandResponseCurve(societyID string) ([]models.DemandResponseScenario, error) {
	soc, err := e.tbl.Society(societyID)
	if err != nil {
		return nil, err
	}
	return scenario.DemandResponseCurve(soc, scenario.DefaultCurveSteps()), nil
}

// DigitalTwin projects future load for a transformer of the given capacity.
func (e *Engine) DigitalTwin(evIncrease, tempRise, solarPercent, capacity float64) (models.DigitalTwinScenario, error) {
	return scenario.DigitalTwin(evIncrease, tempRise, solarPercent, capacity)
}

// CarbonMetrics samples a monthly shifted quantity for a society and converts it.
func (e *Engine) CarbonMetrics(societyID string) (models.CarbonMetrics, error) {
	if _, err := e.tbl.Society(societyID); err != nil {
		return models.CarbonMetrics{}, err
	}
	return e.accountant.Sample(e.src), nil
}

// CarbonFor converts an explicit shifted quantity.
func (e *Engine) CarbonFor(shiftedKwh float64) models.CarbonMetrics {
	return e.accountant.Metrics(shiftedKwh)
}

// RecordIncident logs a non-normal classification.
func (e *Engine) RecordIncident(level models.RiskLevel, reason, societyID string) (models.Incident, bool) {
	return e.incidents.Record(level, reason, societyID)
}

// RecordAssessment logs a classification in both the anomaly history and the
// incident log when it is not NORMAL.
func (e *Engine) RecordAssessment(a models.AnomalyResult) (models.Incident, bool) {
	if !e.anomalies.Append(a) {
		return models.Incident{}, false
	}
	return e.incidents.Record(a.RiskLevel, a.RiskReason, a.SocietyID)
}

// InjectManualAnomaly simulates an overload on the society's first transformer and
// records it as CRITICAL regardless of what the classifier decides.
func (e *Engine) InjectManualAnomaly(societyID string) (models.Incident, models.AnomalyResult, error) {
	soc, err := e.tbl.Society(societyID)
	if err != nil {
		return models.Incident{}, models.AnomalyResult{}, err
	}
	reading := e.telemetry.Reading(soc.ID, soc.ID+"-t1", e.now().Hour())
	reading.LoadKw = soc.TransformerCapacity * e.src.Uniform(0.85, 1.05)
	a, err := e.classifier.Assess(reading, soc.TransformerCapacity, e.src)
	if err != nil {
		return models.Incident{}, models.AnomalyResult{}, err
	}
	a.RiskLevel = models.RiskCritical
	a.RiskReason = incidents.ManualReason
	e.anomalies.Force(a)
	inc := e.incidents.InjectManual(soc.ID)
	e.pendingMu.Lock()
	e.pending = append(e.pending, inc)
	if n := len(e.pending); n > incidents.Capacity {
		e.pending = append([]models.Incident(nil), e.pending[n-incidents.Capacity:]...)
	}
	e.pendingMu.Unlock()
	return inc, a, nil
}

// TakeManualIncidents returns the manual incidents injected since the last call,
// oldest first, and forgets them. At most incidents.Capacity are kept between calls.
func (e *Engine) TakeManualIncidents() []models.Incident {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	out := e.pending
	e.pending = nil
	return out
}

// RecentIncidents returns incidents for a society, most recent first.
func (e *Engine) RecentIncidents(societyID string) []models.Incident {
	return e.incidents.Recent(societyID)
}

// ResolveIncident marks an incident as resolved.
func (e *Engine) ResolveIncident(id string) (models.Incident, error) {
	return e.incidents.Resolve(id)
}

// RecentAnomalies returns non-normal classifications for a society, most recent first.
func (e *Engine) RecentAnomalies(societyID string) []models.AnomalyResult {
	return e.anomalies.Recent(societyID)
}

// LoadHistory returns the last 24 hourly readings of a society.
func (e *Engine) LoadHistory(societyID string) ([]models.EnergyReading, error) {
	if _, err := e.tbl.Society(societyID); err != nil {
		return nil, err
	}
	h, ok := e.telemetry.(telemetry.Historian)
	if !ok {
		return nil, ErrNoHistory
	}
	return h.DayHistory(societyID), nil
}
