package scheduler

import (
	"context"

	"github.com/terminal-bench/gridpulse/pkg/circuit"
	"github.com/terminal-bench/gridpulse/pkg/models"
)

type guardedSink struct {
	sink    Sink
	breaker *circuit.Breaker
}

// Guard wraps sink so that it is skipped while breaker is open.
func Guard(sink Sink, breaker *circuit.Breaker) Sink {
	return &guardedSink{sink: sink, breaker: breaker}
}

func (g *guardedSink) Publish(ctx context.Context, snap *models.GridSnapshot) error {
	return g.breaker.Execute(func() error { return g.sink.Publish(ctx, snap) })
}
