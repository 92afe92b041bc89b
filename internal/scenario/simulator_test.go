package scenario

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terminal-bench/gridpulse/internal/risk"
	"github.com/terminal-bench/gridpulse/internal/topology"
	"github.com/terminal-bench/gridpulse/pkg/models"
)

func TestDemandResponse(t *testing.T) {
	tbl := topology.Default()

	t.Run("should be all zero at zero participation for every society", func(t *testing.T) {
		for _, s := range tbl.Societies() {
			got := DemandResponse(0, s)
			assert.Zero(t, got.ShiftKwh)
			assert.Zero(t, got.StressReductionPercent)
			assert.Zero(t, got.CostSavingPercent)
			assert.Zero(t, got.CO2ReductionKg)
		}
	})

	t.Run("should scale with households", func(t *testing.T) {
		s, err := tbl.Society("s1")
		require.NoError(t, err)
		got := DemandResponse(35, s)
		assert.InDelta(t, 42.0, got.ShiftKwh, 1e-9)
		assert.InDelta(t, 21.0, got.StressReductionPercent, 1e-9)
		assert.InDelta(t, 12.25, got.CostSavingPercent, 1e-9)
		assert.InDelta(t, 34.44, got.CO2ReductionKg, 1e-9)
	})

	t.Run("should clamp participation into 0..100", func(t *testing.T) {
		s := models.Society{HouseholdCount: 100}
		assert.InDelta(t, 120.0, DemandResponse(150, s).ShiftKwh, 1e-9)
		assert.Equal(t, 100.0, DemandResponse(150, s).ParticipationPercent)
		assert.Zero(t, DemandResponse(-20, s).ShiftKwh)
		assert.Zero(t, DemandResponse(math.NaN(), s).ShiftKwh)
	})

	t.Run("should evaluate the default curve", func(t *testing.T) {
		curve := DemandResponseCurve(models.Society{HouseholdCount: 50}, DefaultCurveSteps())
		require.Len(t, curve, 8)
		for i := 1; i < len(curve); i++ {
			assert.Greater(t, curve[i].StressReductionPercent, curve[i-1].StressReductionPercent)
		}
		assert.InDelta(t, 48.0, curve[7].StressReductionPercent, 1e-9)
	})
}

func TestDigitalTwin(t *testing.T) {
	t.Run("should project base load with neutral knobs", func(t *testing.T) {
		for _, capacity := range []float64{150, 200, 257.14, 300, 1000} {
			got, err := DigitalTwin(0, 0, 0, capacity)
			require.NoError(t, err)
			assert.InDelta(t, 180.0, got.ProjectedLoad, 1e-9)
			want := math.Min(math.Max((180/capacity-0.7)*200, 0), 100)
			assert.InDelta(t, want, got.OverloadProbability, 1e-9)
		}
	})

	t.Run("should report partial overload without investment", func(t *testing.T) {
		got, err := DigitalTwin(0, 0, 0, 200)
		require.NoError(t, err)
		assert.InDelta(t, 40.0, got.OverloadProbability, 1e-9)
		assert.InDelta(t, 3.2, got.LifeReductionYears, 1e-9)
		assert.Zero(t, got.InvestmentNeeded)
	})

	t.Run("should require investment beyond 50 percent overload", func(t *testing.T) {
		got, err := DigitalTwin(100, 10, 0, 260)
		require.NoError(t, err)
		assert.InDelta(t, 286.0, got.ProjectedLoad, 1e-9)
		assert.InDelta(t, 80.0, got.OverloadProbability, 1e-6)
		assert.InDelta(t, 6.4, got.LifeReductionYears, 1e-6)
		assert.Equal(t, 120, got.InvestmentNeeded)
	})

	t.Run("should offset load with solar", func(t *testing.T) {
		got, err := DigitalTwin(20, 3, 15, 300)
		require.NoError(t, err)
		assert.InDelta(t, 195.15, got.ProjectedLoad, 1e-9)
		assert.Zero(t, got.OverloadProbability)
	})

	t.Run("should saturate at 100 percent", func(t *testing.T) {
		got, err := DigitalTwin(0, 0, 0, 150)
		require.NoError(t, err)
		assert.Equal(t, 100.0, got.OverloadProbability)
		assert.Equal(t, 150, got.InvestmentNeeded)
		assert.InDelta(t, 8.0, got.LifeReductionYears, 1e-9)
	})

	t.Run("should reject non-positive capacity", func(t *testing.T) {
		_, err := DigitalTwin(0, 0, 0, 0)
		assert.ErrorIs(t, err, risk.ErrInvalidCapacity)
		_, err = DigitalTwin(0, 0, 0, -5)
		assert.ErrorIs(t, err, ErrInvalidCapacity)
	})

	t.Run("should reject a warming step that overflows the projection", func(t *testing.T) {
		_, err := DigitalTwin(0, 1e308, 0, 300)
		assert.ErrorIs(t, err, ErrNonFiniteProjection)
		_, err = DigitalTwin(0, -1e308, 0, 300)
		assert.ErrorIs(t, err, ErrNonFiniteProjection)
	})

	t.Run("should stay finite on a vanishing capacity", func(t *testing.T) {
		got, err := DigitalTwin(0, 0, 0, 1e-300)
		require.NoError(t, err)
		assert.False(t, math.IsInf(got.ProjectedLoad, 0))
		assert.Equal(t, 100.0, got.OverloadProbability)
	})
}
