package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terminal-bench/gridpulse/internal/entropy"
)

var fixedNow = func() time.Time { return time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC) }

func TestReading(t *testing.T) {
	t.Run("should return the profile value with neutral jitter", func(t *testing.T) {
		src := NewProfileSource(entropy.NewSequence(0.5, 0.5, 0.9), fixedNow)
		r := src.Reading("s1", "s1-t2", 20)
		assert.InDelta(t, 270.0, r.LoadKw, 1e-9)
		assert.InDelta(t, 22.1, r.TemperatureC, 1e-9)
		assert.False(t, r.EVCharging)
		assert.Equal(t, 20, r.Hour)
		assert.Equal(t, "s1-t2", r.TransformerID)
		assert.Equal(t, fixedNow(), r.Timestamp)
	})

	t.Run("should bound load jitter to 20 percent", func(t *testing.T) {
		lo := NewProfileSource(entropy.NewSequence(0, 0.5, 0), fixedNow).Reading("s1", "t", 19)
		hi := NewProfileSource(entropy.NewSequence(1, 0.5, 0), fixedNow).Reading("s1", "t", 19)
		assert.InDelta(t, 241.48*0.8, lo.LoadKw, 1e-9)
		assert.InDelta(t, 241.48*1.2, hi.LoadKw, 1e-9)
		assert.True(t, lo.EVCharging)
	})

	t.Run("should wrap hours into the day", func(t *testing.T) {
		src := NewProfileSource(entropy.NewSequence(0.5), fixedNow)
		assert.Equal(t, 1, src.Reading("s1", "t", 25).Hour)
		assert.Equal(t, 23, src.Reading("s1", "t", -1).Hour)
		assert.Equal(t, ProfileLoad(0), ProfileLoad(24))
	})
}

func TestDayHistory(t *testing.T) {
	src := NewProfileSource(entropy.NewSequence(0.5), fixedNow)
	hist := src.DayHistory("s4")
	require.Len(t, hist, 24)
	for i, r := range hist {
		assert.Equal(t, i, r.Hour)
		assert.InDelta(t, ProfileLoad(i), r.LoadKw, 1e-9)
		assert.Equal(t, "s4-t1", r.TransformerID)
	}
	assert.Equal(t, fixedNow(), hist[23].Timestamp)
	assert.Equal(t, fixedNow().Add(-23*time.Hour), hist[0].Timestamp)
}

func TestBind(t *testing.T) {
	orig := entropy.NewSequence(0.5)
	p := NewProfileSource(orig, fixedNow)
	bound := p.Bind(entropy.NewSequence(1, 1, 0))

	r := bound.Reading("s1", "s1-t1", 20)
	assert.InDelta(t, 270.0*1.2, r.LoadKw, 1e-9)
	assert.True(t, r.EVCharging)
	assert.Zero(t, orig.Draws())

	r = p.Reading("s1", "s1-t1", 20)
	assert.InDelta(t, 270.0, r.LoadKw, 1e-9)
}
