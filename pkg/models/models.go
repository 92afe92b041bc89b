package models

import "time"

// RiskLevel is the categorical classification of a transformer sample.
// Levels are ordered NORMAL < HIGH < CRITICAL.
type RiskLevel string

const (
	RiskNormal   RiskLevel = "NORMAL"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Rank orders risk levels so the worst of a set can be picked.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskCritical:
		return 2
	case RiskHigh:
		return 1
	default:
		return 0
	}
}

// Severity grades an incident.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// StabilityStatus is the categorical band of a grid stability index.
type StabilityStatus string

const (
	StatusStable   StabilityStatus = "Stable"
	StatusModerate StabilityStatus = "Moderate"
	StatusCritical StabilityStatus = "Critical"
)

// EnergyReading is one telemetry sample for a transformer.
type EnergyReading struct {
	Timestamp     time.Time `json:"timestamp"`
	Hour          int       `json:"hour"`
	LoadKw        float64   `json:"load_kw"`
	TemperatureC  float64   `json:"temperature_c"`
	EVCharging    bool      `json:"ev_charging"`
	SocietyID     string    `json:"society_id"`
	TransformerID string    `json:"transformer_id"`
}

// HybridRiskResult is the blended output of the risk classifier stages.
type HybridRiskResult struct {
	Utilization         float64   `json:"utilization"`
	AnomalyScore        float64   `json:"anomaly_score"`
	ForecastRisk        float64   `json:"forecast_risk"`
	BlackoutProbability float64   `json:"blackout_probability"`
	TotalRiskScore      float64   `json:"total_risk_score"`
	RiskLevel           RiskLevel `json:"risk_level"`
	RiskReason          string    `json:"risk_reason"`
	AnomalyDetected     bool      `json:"anomaly_detected"`
}

// AnomalyResult is a HybridRiskResult attributed to a transformer at a point in time.
type AnomalyResult struct {
	HybridRiskResult
	Timestamp           time.Time `json:"timestamp"`
	OverloadProbability float64   `json:"overload_probability"`
	SocietyID           string    `json:"society_id"`
	TransformerID       string    `json:"transformer_id"`
}

// TransformerStatus is the per-tick view of one transformer.
type TransformerStatus struct {
	ID                 string    `json:"id"`
	SocietyID          string    `json:"society_id"`
	Name               string    `json:"name"`
	CurrentLoad        float64   `json:"current_load"`
	Capacity           float64   `json:"capacity"`
	UtilizationPercent float64   `json:"utilization_percent"`
	RiskLevel          RiskLevel `json:"risk_level"`
	Temperature        float64   `json:"temperature"`
}

// GridStabilityIndex summarises blackout exposure for an aggregation scope.
type GridStabilityIndex struct {
	GSI    int             `json:"gsi"`
	Status StabilityStatus `json:"status"`
	Trend  []int           `json:"trend"`
}

// Society is a residential site fed by one or more transformers.
type Society struct {
	ID                  string  `json:"id" yaml:"id"`
	Name                string  `json:"name" yaml:"name"`
	Location            string  `json:"location" yaml:"location"`
	ZoneID              string  `json:"zone_id" yaml:"zone_id"`
	TransformerCapacity float64 `json:"transformer_capacity" yaml:"transformer_capacity"`
	HouseholdCount      int     `json:"household_count" yaml:"household_count"`
	TransformerCount    int     `json:"transformer_count" yaml:"transformer_count"`
}

// Zone groups societies within a city.
type Zone struct {
	ID         string   `json:"id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	CityID     string   `json:"city_id" yaml:"city_id"`
	SocietyIDs []string `json:"society_ids" yaml:"society_ids"`
}

// City owns an ordered list of zones.
type City struct {
	ID      string   `json:"id" yaml:"id"`
	Name    string   `json:"name" yaml:"name"`
	ZoneIDs []string `json:"zone_ids" yaml:"zone_ids"`
}

// DemandResponseScenario is the projected effect of shifting household load off-peak.
type DemandResponseScenario struct {
	ParticipationPercent   float64 `json:"participation_percent"`
	ShiftKwh               float64 `json:"shift_kwh"`
	StressReductionPercent float64 `json:"stress_reduction_percent"`
	CostSavingPercent      float64 `json:"cost_saving_percent"`
	CO2ReductionKg         float64 `json:"co2_reduction_kg"`
}

// DigitalTwinScenario is a what-if projection of transformer load.
type DigitalTwinScenario struct {
	EVIncreasePercent   float64 `json:"ev_increase_percent"`
	TempRiseC           float64 `json:"temp_rise_c"`
	SolarPercent        float64 `json:"solar_percent"`
	ProjectedLoad       float64 `json:"projected_load"`
	OverloadProbability float64 `json:"overload_probability"`
	LifeReductionYears  float64 `json:"life_reduction_years"`
	InvestmentNeeded    int     `json:"investment_needed"`
}

// CarbonMetrics is the emissions effect of shifting load from peak to off-peak.
type CarbonMetrics struct {
	ShiftedKwh            float64 `json:"shifted_kwh"`
	MonthlySavedKg        float64 `json:"monthly_saved_kg"`
	AnnualProjectionKg    float64 `json:"annual_projection_kg"`
	EquivalentTrees       int     `json:"equivalent_trees"`
	PeakEmissionFactor    float64 `json:"peak_emission_factor"`
	OffPeakEmissionFactor float64 `json:"off_peak_emission_factor"`
}

// Incident is an operator-facing record of a non-normal classification.
type Incident struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Severity    Severity  `json:"severity"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	SocietyID   string    `json:"society_id"`
	Resolved    bool      `json:"resolved"`
}

// SocietySummary condenses a society's transformers for the owner heatmap.
type SocietySummary struct {
	AvgUtilization float64   `json:"avg_utilization"`
	CriticalCount  int       `json:"critical_count"`
	WorstLevel     RiskLevel `json:"worst_level"`
}

// SocietySnapshot is one society's view within a grid snapshot.
type SocietySnapshot struct {
	SocietyID string              `json:"society_id"`
	Name      string              `json:"name"`
	ZoneID    string              `json:"zone_id"`
	Statuses  []TransformerStatus `json:"statuses"`
	Stability GridStabilityIndex  `json:"stability"`
	Summary   SocietySummary      `json:"summary"`
}

// GridSnapshot is the immutable result of one monitoring tick. Consumers must not
// mutate it.
type GridSnapshot struct {
	Seq       uint64                        `json:"seq"`
	Timestamp time.Time                     `json:"timestamp"`
	Societies []SocietySnapshot             `json:"societies"`
	Zones     map[string]GridStabilityIndex `json:"zones"`
	Cities    map[string]GridStabilityIndex `json:"cities"`
	Grid      GridStabilityIndex            `json:"grid"`
	Incidents []Incident                    `json:"incidents"`
}

// Society returns the view for id.
func (s *GridSnapshot) Society(id string) (SocietySnapshot, bool) {
	for _, v := range s.Societies {
		if v.SocietyID == id {
			return v, true
		}
	}
	return SocietySnapshot{}, false
}
