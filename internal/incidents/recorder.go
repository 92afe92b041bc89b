package incidents

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/terminal-bench/gridpulse/internal/concurrency"
	"github.com/terminal-bench/gridpulse/pkg/models"
)

// Capacity is the number of entries each log retains.
const Capacity = 20

// ManualReason is the fixed description of an operator-injected anomaly.
const ManualReason = "Manually triggered anomaly simulation"

// ErrNotFound is returned when resolving an unknown incident id.
var ErrNotFound = errors.New("incident not found")

// Recorder is the bounded incident log. Only the evaluation loop and the manual
// injection path write to it; readers always see a consistent snapshot.
type Recorder struct {
	ring  *concurrency.Ring[models.Incident]
	now   func() time.Time
	newID func() string
}

// Option customises a Recorder.
type Option func(*Recorder)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithIDs overrides the incident id generator.
func WithIDs(newID func() string) Option {
	return func(r *Recorder) { r.newID = newID }
}

// NewRecorder creates an empty recorder.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		ring:  concurrency.NewRing[models.Incident](Capacity),
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends an incident for a non-normal classification. NORMAL is ignored
// and reported with ok=false.
func (r *Recorder) Record(level models.RiskLevel, reason, societyID string) (inc models.Incident, ok bool) {
	var sev models.Severity
	var title string
	switch level {
	case models.RiskCritical:
		sev, title = models.SeverityCritical, "Critical transformer risk"
	case models.RiskHigh:
		sev, title = models.SeverityHigh, "Elevated transformer risk"
	default:
		return models.Incident{}, false
	}
	inc = r.newIncident(sev, title, reason, societyID)
	r.ring.Push(inc)
	return inc, true
}

// InjectManual records a CRITICAL incident without consulting the classifier.
func (r *Recorder) InjectManual(societyID string) models.Incident {
	inc := r.newIncident(models.SeverityCritical, "Manual anomaly injection", ManualReason, societyID)
	r.ring.Push(inc)
	return inc
}

// Resolve marks an incident as resolved.
func (r *Recorder) Resolve(id string) (models.Incident, error) {
	var out models.Incident
	ok := r.ring.Update(
		func(inc models.Incident) bool { return inc.ID == id },
		func(inc models.Incident) models.Incident {
			inc.Resolved = true
			out = inc
			return inc
		},
	)
	if !ok {
		return models.Incident{}, ErrNotFound
	}
	return out, nil
}

// Recent returns incidents most recent first. An empty societyID returns all.
func (r *Recorder) Recent(societyID string) []models.Incident {
	return filter(r.ring.Snapshot(), societyID, func(inc models.Incident) string { return inc.SocietyID })
}

// Len returns the number of retained incidents.
func (r *Recorder) Len() int {
	return r.ring.Len()
}

func (r *Recorder) newIncident(sev models.Severity, title, description, societyID string) models.Incident {
	return models.Incident{
		ID:          r.newID(),
		Timestamp:   r.now(),
		Severity:    sev,
		Title:       title,
		Description: description,
		SocietyID:   societyID,
	}
}

func filter[T any](items []T, societyID string, key func(T) string) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if societyID == "" || key(it) == societyID {
			out = append(out, it)
		}
	}
	return out
}
