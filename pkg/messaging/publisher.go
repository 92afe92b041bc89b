package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/terminal-bench/gridpulse/pkg/models"
	"github.com/terminal-bench/gridpulse/shared/contracts"
)

// Publisher is the subset of Client the snapshot publisher needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, data any) error
}

// SnapshotPublisher forwards grid snapshots and their new incidents to the bus.
type SnapshotPublisher struct {
	pub Publisher
}

// NewSnapshotPublisher creates a publisher over pub.
func NewSnapshotPublisher(pub Publisher) *SnapshotPublisher {
	return &SnapshotPublisher{pub: pub}
}

// Publish sends one snapshot event and one incident event per new incident.
// Every message is attempted; failures are joined.
func (p *SnapshotPublisher) Publish(ctx context.Context, snap *models.GridSnapshot) error {
	ev := contracts.NewSnapshotEvent(snap)
	if res := ev.Validate(); !res.Valid {
		return fmt.Errorf("snapshot event: %s %s", res.Field, res.Message)
	}
	var errs []error
	if err := p.pub.Publish(ctx, contracts.SubjectSnapshot, ev); err != nil {
		errs = append(errs, fmt.Errorf("publish snapshot %d: %w", snap.Seq, err))
	}
	for _, inc := range snap.Incidents {
		iev := contracts.NewIncidentEvent(inc)
		if res := iev.Validate(); !res.Valid {
			errs = append(errs, fmt.Errorf("incident %s: %s %s", inc.ID, res.Field, res.Message))
			continue
		}
		if err := p.pub.Publish(ctx, contracts.IncidentSubject(inc.SocietyID), iev); err != nil {
			errs = append(errs, fmt.Errorf("publish incident %s: %w", inc.ID, err))
		}
	}
	return errors.Join(errs...)
}
