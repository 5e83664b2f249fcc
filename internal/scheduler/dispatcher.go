package scheduler

import (
	"context"
	"time"

	"leadflow_backend/platform/logger"
)

// Dispatcher enqueues the periodic SLA sweep on a fixed interval.
type Dispatcher struct {
	client   *Client
	interval time.Duration
	log      *logger.Logger
}

// NewDispatcher creates a sweep dispatcher.
func NewDispatcher(client *Client, interval time.Duration, log *logger.Logger) *Dispatcher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Dispatcher{client: client, interval: interval, log: log}
}

// Run enqueues a sweep immediately and then on every tick until the context
// is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	d.dispatch(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Info("sweep dispatcher stopped")
			return
		case <-ticker.C:
			d.dispatch(ctx)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context) {
	// The uniqueness window matches the interval so a slow worker never has
	// identical sweeps piling up behind it.
	if err := d.client.EnqueueSLASweep(ctx, d.interval); err != nil {
		d.log.Error("failed to enqueue sla sweep", "error", err)
	}
}
