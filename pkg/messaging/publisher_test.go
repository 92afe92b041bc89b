package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terminal-bench/gridpulse/pkg/models"
	"github.com/terminal-bench/gridpulse/shared/contracts"
)

type recordingBus struct {
	subjects []string
	payloads []any
	failOn   string
}

func (b *recordingBus) Publish(_ context.Context, subject string, data any) error {
	if subject == b.failOn {
		return errors.New("no responders")
	}
	b.subjects = append(b.subjects, subject)
	b.payloads = append(b.payloads, data)
	return nil
}

func snapshot() *models.GridSnapshot {
	return &models.GridSnapshot{
		Seq:       3,
		Timestamp: time.Date(2026, 4, 1, 18, 0, 0, 0, time.UTC),
		Grid:      models.GridStabilityIndex{GSI: 55, Status: models.StatusModerate},
		Incidents: []models.Incident{
			{ID: "a", SocietyID: "s1", Severity: models.SeverityHigh},
			{ID: "b", SocietyID: "s4", Severity: models.SeverityCritical},
		},
	}
}

func TestSnapshotPublisher(t *testing.T) {
	t.Run("should publish the snapshot and each incident", func(t *testing.T) {
		bus := &recordingBus{}
		require.NoError(t, NewSnapshotPublisher(bus).Publish(context.Background(), snapshot()))
		assert.Equal(t, []string{"grid.snapshot", "grid.incident.s1", "grid.incident.s4"}, bus.subjects)
		ev, ok := bus.payloads[0].(contracts.SnapshotEvent)
		require.True(t, ok)
		assert.Equal(t, 55, ev.GridGSI)
		assert.Equal(t, 2, ev.Incidents)
	})

	t.Run("should keep going after a failed subject", func(t *testing.T) {
		bus := &recordingBus{failOn: "grid.snapshot"}
		err := NewSnapshotPublisher(bus).Publish(context.Background(), snapshot())
		assert.ErrorContains(t, err, "publish snapshot 3")
		assert.Len(t, bus.subjects, 2)
	})

	t.Run("should refuse an unsequenced snapshot", func(t *testing.T) {
		bus := &recordingBus{}
		snap := snapshot()
		snap.Seq = 0
		assert.Error(t, NewSnapshotPublisher(bus).Publish(context.Background(), snap))
		assert.Empty(t, bus.subjects)
	})
}

func TestClientPublishWithoutConnection(t *testing.T) {
	c := &Client{}
	assert.ErrorContains(t, c.Publish(context.Background(), "grid.snapshot", 1), "not connected")
	assert.False(t, c.IsConnected())
	assert.NoError(t, c.Close())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Publish(ctx, "grid.snapshot", 1), context.Canceled)
}
