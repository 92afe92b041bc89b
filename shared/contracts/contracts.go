package contracts

import (
	"time"

	"github.com/google/uuid"

	"github.com/terminal-bench/gridpulse/pkg/models"
)

// Subjects used on the event bus.
const (
	SubjectSnapshot       = "grid.snapshot"
	SubjectIncidentPrefix = "grid.incident."
)

// IncidentSubject is the per-society incident subject.
func IncidentSubject(societyID string) string {
	return SubjectIncidentPrefix + societyID
}

// ValidationResult holds the result of an envelope validation.
type ValidationResult struct {
	Valid   bool
	Field   string
	Message string
}

func invalid(field, msg string) ValidationResult {
	return ValidationResult{Valid: false, Field: field, Message: msg}
}

// SocietyGSI is the per-society slice of a snapshot event.
type SocietyGSI struct {
	SocietyID string                 `json:"society_id"`
	GSI       int                    `json:"gsi"`
	Status    models.StabilityStatus `json:"status"`
	Summary   models.SocietySummary  `json:"summary"`
}

// SnapshotEvent announces a published grid snapshot.
type SnapshotEvent struct {
	EventID    string                 `json:"event_id"`
	Seq        uint64                 `json:"seq"`
	Timestamp  time.Time              `json:"timestamp"`
	GridGSI    int                    `json:"grid_gsi"`
	GridStatus models.StabilityStatus `json:"grid_status"`
	Societies  []SocietyGSI           `json:"societies"`
	Zones      map[string]int         `json:"zones"`
	Cities     map[string]int         `json:"cities"`
	Incidents  int                    `json:"incidents"`
}

// NewSnapshotEvent condenses snap into its bus envelope.
func NewSnapshotEvent(snap *models.GridSnapshot) SnapshotEvent {
	ev := SnapshotEvent{
		EventID:    uuid.NewString(),
		Seq:        snap.Seq,
		Timestamp:  snap.Timestamp,
		GridGSI:    snap.Grid.GSI,
		GridStatus: snap.Grid.Status,
		Societies:  make([]SocietyGSI, 0, len(snap.Societies)),
		Zones:      make(map[string]int, len(snap.Zones)),
		Cities:     make(map[string]int, len(snap.Cities)),
		Incidents:  len(snap.Incidents),
	}
	for _, s := range snap.Societies {
		ev.Societies = append(ev.Societies, SocietyGSI{
			SocietyID: s.SocietyID,
			GSI:       s.Stability.GSI,
			Status:    s.Stability.Status,
			Summary:   s.Summary,
		})
	}
	for id, g := range snap.Zones {
		ev.Zones[id] = g.GSI
	}
	for id, g := range snap.Cities {
		ev.Cities[id] = g.GSI
	}
	return ev
}

// Validate checks that a SnapshotEvent is publishable.
func (e SnapshotEvent) Validate() ValidationResult {
	if e.EventID == "" {
		return invalid("EventID", "required")
	}
	if e.Seq == 0 {
		return invalid("Seq", "must be positive")
	}
	if e.Timestamp.IsZero() {
		return invalid("Timestamp", "required")
	}
	if e.GridGSI < 0 || e.GridGSI > 100 {
		return invalid("GridGSI", "must be 0..100")
	}
	for _, s := range e.Societies {
		if s.SocietyID == "" {
			return invalid("Societies", "society id required")
		}
	}
	return ValidationResult{Valid: true}
}

// IncidentEvent announces a newly recorded incident.
type IncidentEvent struct {
	EventID     string          `json:"event_id"`
	IncidentID  string          `json:"incident_id"`
	SocietyID   string          `json:"society_id"`
	Severity    models.Severity `json:"severity"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Timestamp   time.Time       `json:"timestamp"`
}

// NewIncidentEvent wraps inc in its bus envelope.
func NewIncidentEvent(inc models.Incident) IncidentEvent {
	return IncidentEvent{
		EventID:     uuid.NewString(),
		IncidentID:  inc.ID,
		SocietyID:   inc.SocietyID,
		Severity:    inc.Severity,
		Title:       inc.Title,
		Description: inc.Description,
		Timestamp:   inc.Timestamp,
	}
}

// Validate checks that an IncidentEvent has required fields.
func (e IncidentEvent) Validate() ValidationResult {
	if e.EventID == "" {
		return invalid("EventID", "required")
	}
	if e.IncidentID == "" {
		return invalid("IncidentID", "required")
	}
	if e.SocietyID == "" {
		return invalid("SocietyID", "required")
	}
	switch e.Severity {
	case models.SeverityLow, models.SeverityMedium, models.SeverityHigh, models.SeverityCritical:
	default:
		return invalid("Severity", "unknown severity")
	}
	return ValidationResult{Valid: true}
}
