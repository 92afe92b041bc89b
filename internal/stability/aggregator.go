package stability

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/terminal-bench/gridpulse/internal/entropy"
	"github.com/terminal-bench/gridpulse/internal/topology"
	"github.com/terminal-bench/gridpulse/pkg/models"
)

const (
	trendLength = 12
	trendNoise  = 6.0
	trendFloor  = 30
	trendCeil   = 100
)

// Fallback is the index reported for a scope with no transformers.
func Fallback() models.GridStabilityIndex {
	return models.GridStabilityIndex{
		GSI:    85,
		Status: models.StatusStable,
		Trend:  []int{82, 85, 80, 88, 85},
	}
}

// StatusFor maps an index value to its band.
func StatusFor(gsi int) models.StabilityStatus {
	switch {
	case gsi >= 80:
		return models.StatusStable
	case gsi >= 50:
		return models.StatusModerate
	default:
		return models.StatusCritical
	}
}

// BlackoutProbability weighs the critical-transformer ratio and mean utilization equally.
// It is 0 for an empty set.
func BlackoutProbability(statuses []models.TransformerStatus) float64 {
	if len(statuses) == 0 {
		return 0
	}
	utils := make([]float64, len(statuses))
	critical := 0
	for i, s := range statuses {
		utils[i] = clamp(s.UtilizationPercent, 0, 100)
		if s.RiskLevel == models.RiskCritical {
			critical++
		}
	}
	avg := stat.Mean(utils, nil)
	return clamp(0.5*float64(critical)/float64(len(statuses))+0.5*avg/100, 0, 1)
}

// Index computes the integer stability index of a non-empty set without a trend.
func Index(statuses []models.TransformerStatus) int {
	return int(math.Round((1 - BlackoutProbability(statuses)) * 100))
}

// Aggregator rolls transformer statuses up into stability indices.
type Aggregator struct {
	src entropy.Source
}

// NewAggregator creates an aggregator drawing trend noise from src.
func NewAggregator(src entropy.Source) *Aggregator {
	return &Aggregator{src: src}
}

// Aggregate computes the stability index of statuses. An empty set yields Fallback.
func (a *Aggregator) Aggregate(statuses []models.TransformerStatus) models.GridStabilityIndex {
	if len(statuses) == 0 {
		return Fallback()
	}
	gsi := Index(statuses)
	return models.GridStabilityIndex{
		GSI:    gsi,
		Status: StatusFor(gsi),
		Trend:  a.trend(gsi),
	}
}

// trend is a visual history only: eleven perturbed samples followed by the current value.
func (a *Aggregator) trend(gsi int) []int {
	out := make([]int, trendLength)
	for i := 0; i < trendLength-1; i++ {
		v := math.Round(float64(gsi) + a.src.Uniform(-trendNoise, trendNoise))
		out[i] = int(clamp(v, trendFloor, trendCeil))
	}
	out[trendLength-1] = int(clamp(float64(gsi), trendFloor, trendCeil))
	return out
}

// ZoneStatuses flattens the statuses of every society in zone, in zone order.
func ZoneStatuses(zone models.Zone, bySociety map[string][]models.TransformerStatus) []models.TransformerStatus {
	var out []models.TransformerStatus
	for _, sid := range zone.SocietyIDs {
		out = append(out, bySociety[sid]...)
	}
	return out
}

// CityStatuses flattens the statuses of every zone in city, in zone order.
func CityStatuses(tbl *topology.Table, city models.City, bySociety map[string][]models.TransformerStatus) []models.TransformerStatus {
	var out []models.TransformerStatus
	for _, z := range tbl.ZonesOf(city) {
		out = append(out, ZoneStatuses(z, bySociety)...)
	}
	return out
}

// AggregateZone is Aggregate over the flattened zone.
func (a *Aggregator) AggregateZone(zone models.Zone, bySociety map[string][]models.TransformerStatus) models.GridStabilityIndex {
	return a.Aggregate(ZoneStatuses(zone, bySociety))
}

// AggregateCity is Aggregate over the flattened city.
func (a *Aggregator) AggregateCity(tbl *topology.Table, city models.City, bySociety map[string][]models.TransformerStatus) models.GridStabilityIndex {
	return a.Aggregate(CityStatuses(tbl, city, bySociety))
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
