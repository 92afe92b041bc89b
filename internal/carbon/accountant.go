package carbon

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/terminal-bench/gridpulse/internal/entropy"
	"github.com/terminal-bench/gridpulse/pkg/models"
)

// kg of CO2 absorbed by one tree per year.
var treeAbsorptionKg = decimal.NewFromInt(21)

// Factors are grid emission intensities in kg CO2 per kWh.
type Factors struct {
	Peak    float64
	OffPeak float64
}

// DefaultFactors returns the reference peak and off-peak intensities.
func DefaultFactors() Factors {
	return Factors{Peak: 0.92, OffPeak: 0.45}
}

// Validate checks that both factors are finite and non-negative.
func (f Factors) Validate() error {
	for _, v := range []float64{f.Peak, f.OffPeak} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("emission factor must be finite and non-negative, got %v", v)
		}
	}
	return nil
}

// ShiftBand is the range from which a society's monthly shifted energy is sampled.
type ShiftBand struct {
	MinKwh float64
	MaxKwh float64
}

// DefaultShiftBand is the reference sampling band.
func DefaultShiftBand() ShiftBand {
	return ShiftBand{MinKwh: 300, MaxKwh: 600}
}

// Accountant converts shifted energy into emissions avoided.
type Accountant struct {
	factors Factors
	band    ShiftBand
}

// NewAccountant creates an accountant.
func NewAccountant(f Factors, band ShiftBand) (*Accountant, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if band.MinKwh < 0 || band.MaxKwh < band.MinKwh {
		return nil, fmt.Errorf("invalid shift band %v..%v", band.MinKwh, band.MaxKwh)
	}
	return &Accountant{factors: f, band: band}, nil
}

// Metrics computes emissions avoided by moving shiftedKwh from peak to off-peak.
// Negative or non-finite inputs count as zero.
func (a *Accountant) Metrics(shiftedKwh float64) models.CarbonMetrics {
	return Metrics(shiftedKwh, a.factors)
}

// Sample draws a shifted quantity from the band and computes its metrics.
func (a *Accountant) Sample(src entropy.Source) models.CarbonMetrics {
	return a.Metrics(src.Uniform(a.band.MinKwh, a.band.MaxKwh))
}

// Metrics is the stateless form of Accountant.Metrics.
func Metrics(shiftedKwh float64, f Factors) models.CarbonMetrics {
	if shiftedKwh < 0 || math.IsNaN(shiftedKwh) || math.IsInf(shiftedKwh, 0) {
		shiftedKwh = 0
	}
	delta := decimal.NewFromFloat(f.Peak).Sub(decimal.NewFromFloat(f.OffPeak))
	monthly := decimal.NewFromFloat(shiftedKwh).Mul(delta)
	annual := monthly.Mul(decimal.NewFromInt(12))
	trees := annual.Div(treeAbsorptionKg).Round(0)

	return models.CarbonMetrics{
		ShiftedKwh:            shiftedKwh,
		MonthlySavedKg:        monthly.InexactFloat64(),
		AnnualProjectionKg:    annual.InexactFloat64(),
		EquivalentTrees:       int(trees.IntPart()),
		PeakEmissionFactor:    f.Peak,
		OffPeakEmissionFactor: f.OffPeak,
	}
}
