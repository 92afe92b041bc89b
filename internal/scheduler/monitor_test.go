package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/terminal-bench/gridpulse/internal/engine"
	"github.com/terminal-bench/gridpulse/internal/entropy"
	"github.com/terminal-bench/gridpulse/internal/topology"
	"github.com/terminal-bench/gridpulse/pkg/models"
)

type flatTelemetry struct{ load float64 }

func (f flatTelemetry) Reading(societyID, transformerID string, hour int) models.EnergyReading {
	return models.EnergyReading{Hour: hour, LoadKw: f.load, SocietyID: societyID, TransformerID: transformerID}
}

func newEngine(t *testing.T, load float64) *engine.Engine {
	t.Helper()
	e, err := engine.New(topology.Default(),
		engine.WithEntropy(entropy.NewSequence(0.5)),
		engine.WithTelemetry(flatTelemetry{load: load}),
		engine.WithClock(func() time.Time { return time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC) }),
	)
	require.NoError(t, err)
	return e
}

func TestTick(t *testing.T) {
	t.Run("should publish a complete snapshot", func(t *testing.T) {
		m := NewMonitor(newEngine(t, 150))
		assert.Nil(t, m.Snapshot())

		snap, err := m.Tick(context.Background())
		require.NoError(t, err)
		assert.Same(t, snap, m.Snapshot())
		assert.Equal(t, uint64(1), snap.Seq)
		require.Len(t, snap.Societies, 5)
		assert.Len(t, snap.Zones, 5)
		assert.Len(t, snap.Cities, 3)
		assert.Empty(t, snap.Incidents)

		s1, ok := snap.Society("s1")
		require.True(t, ok)
		assert.Len(t, s1.Statuses, 3)
		assert.Equal(t, "z-gurugram", s1.ZoneID)
		assert.Equal(t, models.RiskNormal, s1.Summary.WorstLevel)
		assert.Equal(t, s1.Stability.GSI, snap.Zones["z-gurugram"].GSI)

		next, err := m.Tick(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(2), next.Seq)
	})

	t.Run("should record incidents for overloaded transformers", func(t *testing.T) {
		eng := newEngine(t, 600)
		snap, err := NewMonitor(eng).Tick(context.Background())
		require.NoError(t, err)
		assert.Len(t, snap.Incidents, 15)
		assert.Equal(t, models.StatusCritical, snap.Grid.Status)
		assert.Len(t, eng.RecentIncidents("s2"), 3)
		for _, s := range snap.Societies {
			assert.Equal(t, 3, s.Summary.CriticalCount)
			assert.Equal(t, models.RiskCritical, s.Summary.WorstLevel)
		}
	})

	t.Run("should discard a cancelled tick", func(t *testing.T) {
		eng := newEngine(t, 600)
		m := NewMonitor(eng)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := m.Tick(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, m.Snapshot())
		assert.Empty(t, eng.RecentIncidents(""))
	})

	t.Run("should log sink failures and keep publishing", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		var delivered atomic.Int32
		m := NewMonitor(newEngine(t, 150),
			WithLogger(zap.New(core)),
			WithSinks(
				SinkFunc(func(context.Context, *models.GridSnapshot) error { return errors.New("broker down") }),
				SinkFunc(func(context.Context, *models.GridSnapshot) error { delivered.Add(1); return nil }),
			))
		_, err := m.Tick(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int32(1), delivered.Load())
		require.Equal(t, 1, logs.FilterMessage("sink publish failed").Len())
	})
}

func TestStartStop(t *testing.T) {
	m := NewMonitor(newEngine(t, 150), WithInterval(10*time.Millisecond))
	assert.False(t, m.Stop())
	require.True(t, m.Start(context.Background()))
	assert.False(t, m.Start(context.Background()))
	assert.True(t, m.Running())

	require.Eventually(t, func() bool {
		s := m.Snapshot()
		return s != nil && s.Seq >= 2
	}, 2*time.Second, 5*time.Millisecond)

	assert.True(t, m.Stop())
	assert.False(t, m.Running())
	seq := m.Snapshot().Seq
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, seq, m.Snapshot().Seq)

	require.True(t, m.Start(context.Background()))
	assert.True(t, m.Stop())
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, models.SocietySummary{WorstLevel: models.RiskNormal}, Summarize(nil))
	got := Summarize([]models.TransformerStatus{
		{UtilizationPercent: 40, RiskLevel: models.RiskNormal},
		{UtilizationPercent: 80, RiskLevel: models.RiskHigh},
		{UtilizationPercent: 96, RiskLevel: models.RiskCritical},
	})
	assert.InDelta(t, 72.0, got.AvgUtilization, 1e-9)
	assert.Equal(t, 1, got.CriticalCount)
	assert.Equal(t, models.RiskCritical, got.WorstLevel)
}

func TestTickReproducibleWithSeed(t *testing.T) {
	clock := func() time.Time { return time.Date(2026, 5, 4, 19, 0, 0, 0, time.UTC) }
	run := func() []*models.GridSnapshot {
		eng, err := engine.New(topology.Default(),
			engine.WithEntropy(entropy.NewRand(42)),
			engine.WithClock(clock),
		)
		require.NoError(t, err)
		m := NewMonitor(eng, WithWorkers(5), WithClock(clock))
		var snaps []*models.GridSnapshot
		for i := 0; i < 3; i++ {
			snap, err := m.Tick(context.Background())
			require.NoError(t, err)
			snaps = append(snaps, snap)
		}
		return snaps
	}

	want := run()
	for i := 0; i < 20; i++ {
		got := run()
		for tick := range want {
			require.Len(t, got[tick].Societies, len(want[tick].Societies))
			for j, s := range want[tick].Societies {
				assert.Equal(t, s.Statuses, got[tick].Societies[j].Statuses, "tick %d society %s", tick+1, s.SocietyID)
				assert.Equal(t, s.Stability, got[tick].Societies[j].Stability)
			}
			assert.Equal(t, want[tick].Zones, got[tick].Zones)
			assert.Equal(t, want[tick].Cities, got[tick].Cities)
			assert.Equal(t, want[tick].Grid, got[tick].Grid)
			assert.Len(t, got[tick].Incidents, len(want[tick].Incidents))
		}
	}
	assert.NotEqual(t, want[0].Societies[0].Statuses, want[1].Societies[0].Statuses)
}

func TestTickPublishesManualIncidents(t *testing.T) {
	eng := newEngine(t, 150)
	m := NewMonitor(eng)

	inc, _, err := eng.InjectManualAnomaly("s4")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Tick(ctx)
	require.Error(t, err)

	snap, err := m.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Incidents, 1)
	assert.Equal(t, inc.ID, snap.Incidents[0].ID)
	assert.Equal(t, "s4", snap.Incidents[0].SocietyID)

	next, err := m.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, next.Incidents)
}
