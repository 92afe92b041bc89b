package incidents

import (
	"github.com/terminal-bench/gridpulse/internal/concurrency"
	"github.com/terminal-bench/gridpulse/pkg/models"
)

// AnomalyLog keeps the most recent non-normal classifications.
type AnomalyLog struct {
	ring *concurrency.Ring[models.AnomalyResult]
}

// NewAnomalyLog creates an empty log.
func NewAnomalyLog() *AnomalyLog {
	return &AnomalyLog{ring: concurrency.NewRing[models.AnomalyResult](Capacity)}
}

// Append stores res. NORMAL results are dropped.
func (l *AnomalyLog) Append(res models.AnomalyResult) bool {
	if res.RiskLevel == models.RiskNormal {
		return false
	}
	l.ring.Push(res)
	return true
}

// Force stores res regardless of level. Used by manual injection.
func (l *AnomalyLog) Force(res models.AnomalyResult) {
	l.ring.Push(res)
}

// Recent returns anomalies most recent first. An empty societyID returns all.
func (l *AnomalyLog) Recent(societyID string) []models.AnomalyResult {
	return filter(l.ring.Snapshot(), societyID, func(a models.AnomalyResult) string { return a.SocietyID })
}
