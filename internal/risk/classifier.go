package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/terminal-bench/gridpulse/internal/entropy"
	"github.com/terminal-bench/gridpulse/pkg/models"
)

var (
	// ErrInvalidCapacity is returned when a transformer capacity is not positive.
	ErrInvalidCapacity = errors.New("capacity must be positive")
	// ErrInvalidReading is returned for negative or non-finite loads.
	ErrInvalidReading = errors.New("load must be a finite non-negative number")
)

const nominalReason = "All systems nominal"

// Config holds the tunable parameters of the classifier.
type Config struct {
	AnomalyRate float64
	PeakHours   []int
}

// DefaultConfig returns the production classifier parameters.
func DefaultConfig() Config {
	return Config{
		AnomalyRate: 0.10,
		PeakHours:   []int{17, 18, 19, 20, 21},
	}
}

// Validate checks the classifier parameters.
func (c Config) Validate() error {
	if c.AnomalyRate < 0 || c.AnomalyRate > 1 || math.IsNaN(c.AnomalyRate) {
		return fmt.Errorf("anomaly rate must be 0..1, got %v", c.AnomalyRate)
	}
	for _, h := range c.PeakHours {
		if h < 0 || h > 23 {
			return fmt.Errorf("peak hour %d out of range 0..23", h)
		}
	}
	return nil
}

// Classifier turns a telemetry sample into a hybrid risk result.
type Classifier struct {
	rate float64
	peak [24]bool
}

// NewClassifier creates a classifier from cfg.
func NewClassifier(cfg Config) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Classifier{rate: cfg.AnomalyRate}
	for _, h := range cfg.PeakHours {
		c.peak[h] = true
	}
	return c, nil
}

// IsPeak reports whether hour falls inside the configured peak window.
func (c *Classifier) IsPeak(hour int) bool {
	return hour >= 0 && hour < 24 && c.peak[hour]
}

// Classify scores reading against capacity. Draws are taken from src in a fixed
// order: anomaly gate, anomaly score, forecast risk.
func (c *Classifier) Classify(reading models.EnergyReading, capacity float64, src entropy.Source) (models.HybridRiskResult, error) {
	if !(capacity > 0) || math.IsInf(capacity, 1) {
		return models.HybridRiskResult{}, ErrInvalidCapacity
	}
	if reading.LoadKw < 0 || math.IsNaN(reading.LoadKw) || math.IsInf(reading.LoadKw, 0) {
		return models.HybridRiskResult{}, ErrInvalidReading
	}

	utilization := reading.LoadKw / capacity
	if math.IsInf(utilization, 0) {
		return models.HybridRiskResult{}, fmt.Errorf("%w: load %g overflows capacity %g", ErrInvalidReading, reading.LoadKw, capacity)
	}
	anomalous, anomalyScore := isolationForest(src, c.rate)
	forecast := lstmForecast(src, c.IsPeak(reading.Hour))
	blackout := bayesianBlackout(utilization, anomalous, forecast)
	total := TotalRiskScore(anomalyScore, forecast, utilization)

	level, reason := decide(total, utilization, anomalous, anomalyScore)
	return models.HybridRiskResult{
		Utilization:         utilization,
		AnomalyScore:        anomalyScore,
		ForecastRisk:        forecast,
		BlackoutProbability: blackout,
		TotalRiskScore:      total,
		RiskLevel:           level,
		RiskReason:          reason,
		AnomalyDetected:     anomalous,
	}, nil
}

// Assess classifies reading and attributes the result to its transformer.
func (c *Classifier) Assess(reading models.EnergyReading, capacity float64, src entropy.Source) (models.AnomalyResult, error) {
	res, err := c.Classify(reading, capacity, src)
	if err != nil {
		return models.AnomalyResult{}, fmt.Errorf("assess %s: %w", reading.TransformerID, err)
	}
	return models.AnomalyResult{
		HybridRiskResult:    res,
		Timestamp:           reading.Timestamp,
		OverloadProbability: OverloadProbability(res.Utilization, res.AnomalyScore),
		SocietyID:           reading.SocietyID,
		TransformerID:       reading.TransformerID,
	}, nil
}

// TotalRiskScore blends the three signals, clamped to [0,1].
func TotalRiskScore(anomalyScore, forecast, utilization float64) float64 {
	return clamp(0.4*anomalyScore+0.4*forecast+0.2*utilization, 0, 1)
}

// OverloadProbability is the percentage chance of overload, in [0,100].
func OverloadProbability(utilization, anomalyScore float64) float64 {
	p := utilization * 100
	if anomalyScore > 0.5 {
		p += 15
	}
	return clamp(p, 0, 100)
}

// Level maps the numeric inputs to a risk level. First matching rule wins.
func Level(total, utilization float64, anomalous bool) models.RiskLevel {
	switch {
	case total > 0.7 || utilization > 0.9:
		return models.RiskCritical
	case total > 0.4 || anomalous:
		return models.RiskHigh
	default:
		return models.RiskNormal
	}
}

func decide(total, utilization float64, anomalous bool, anomalyScore float64) (models.RiskLevel, string) {
	level := Level(total, utilization, anomalous)
	switch level {
	case models.RiskCritical:
		return level, fmt.Sprintf("Hybrid risk %.0f%% with transformer at %.0f%% capacity - immediate attention required",
			total*100, utilization*100)
	case models.RiskHigh:
		if anomalous {
			return level, fmt.Sprintf("Anomalous load pattern detected by isolation forest (score %.2f)", anomalyScore)
		}
		return level, fmt.Sprintf("Forecast-elevated risk at %.0f%% from peak-load model", total*100)
	default:
		return level, nominalReason
	}
}
