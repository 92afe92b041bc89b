package scenario

import (
	"errors"
	"math"

	"github.com/terminal-bench/gridpulse/internal/risk"
	"github.com/terminal-bench/gridpulse/pkg/models"
)

var (
	// ErrInvalidCapacity is shared with the classifier so callers can test one value.
	ErrInvalidCapacity = risk.ErrInvalidCapacity
	// ErrNonFiniteProjection is returned when the inputs overflow the projected load.
	ErrNonFiniteProjection = errors.New("scenario inputs produce a non-finite projection")
)

const (
	kwhPerHousehold   = 1.2
	stressPerPercent  = 0.6
	savingPerPercent  = 0.35
	gridEmissionKgKwh = 0.82

	twinBaseLoadKw    = 180.0
	evLoadShare       = 0.3
	kwPerDegree       = 5.2
	solarOffsetShare  = 0.25
	safeLoadingRatio  = 0.7
	overloadGain      = 200.0
	maxLifeLossYears  = 8.0
	investmentTrigger = 50.0
	investmentPerPct  = 1.5
)

// DemandResponse projects the effect of participationPercent of households shifting
// load off-peak. Participation is clamped into [0,100].
func DemandResponse(participationPercent float64, society models.Society) models.DemandResponseScenario {
	p := clampPercent(participationPercent)
	households := math.Max(float64(society.HouseholdCount), 0)
	shift := (p / 100) * households * kwhPerHousehold
	return models.DemandResponseScenario{
		ParticipationPercent:   p,
		ShiftKwh:               shift,
		StressReductionPercent: p * stressPerPercent,
		CostSavingPercent:      p * savingPerPercent,
		CO2ReductionKg:         shift * gridEmissionKgKwh,
	}
}

// DemandResponseCurve evaluates DemandResponse at each participation step.
func DemandResponseCurve(society models.Society, steps []float64) []models.DemandResponseScenario {
	out := make([]models.DemandResponseScenario, 0, len(steps))
	for _, p := range steps {
		out = append(out, DemandResponse(p, society))
	}
	return out
}

// DefaultCurveSteps are the participation levels shown on the dashboard chart.
func DefaultCurveSteps() []float64 {
	return []float64{10, 20, 30, 40, 50, 60, 70, 80}
}

// DigitalTwin projects transformer load under EV growth, warming and rooftop solar.
// EV increase and solar share are clamped into [0,100]; capacity must be positive.
func DigitalTwin(evIncreasePercent, tempRiseC, solarPercent, capacity float64) (models.DigitalTwinScenario, error) {
	if !(capacity > 0) || math.IsInf(capacity, 1) {
		return models.DigitalTwinScenario{}, ErrInvalidCapacity
	}
	ev := clampPercent(evIncreasePercent)
	solar := clampPercent(solarPercent)
	if math.IsNaN(tempRiseC) || math.IsInf(tempRiseC, 0) {
		tempRiseC = 0
	}

	evLoad := twinBaseLoadKw * (ev / 100) * evLoadShare
	tempLoad := tempRiseC * kwPerDegree
	solarOffset := capacity * (solar / 100) * solarOffsetShare
	projected := twinBaseLoadKw + evLoad + tempLoad - solarOffset
	if math.IsInf(projected, 0) || math.IsNaN(projected) {
		return models.DigitalTwinScenario{}, ErrNonFiniteProjection
	}

	overload := clamp((projected/capacity-safeLoadingRatio)*overloadGain, 0, 100)
	investment := 0
	if overload > investmentTrigger {
		investment = int(math.Round(overload * investmentPerPct))
	}
	return models.DigitalTwinScenario{
		EVIncreasePercent:   ev,
		TempRiseC:           tempRiseC,
		SolarPercent:        solar,
		ProjectedLoad:       projected,
		OverloadProbability: overload,
		LifeReductionYears:  overload / 100 * maxLifeLossYears,
		InvestmentNeeded:    investment,
	}, nil
}

func clampPercent(v float64) float64 {
	return clamp(v, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
