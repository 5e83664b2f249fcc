package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Client enqueues background tasks.
type Client struct {
	client *asynq.Client
	queue  string
	log    *logger.Logger
}

// NewClient creates an asynq client from the scheduler config.
func NewClient(cfg config.SchedulerConfig, log *logger.Logger) (*Client, error) {
	opt, err := redisConnOpt(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:      opt.Addr,
			Username:  opt.Username,
			Password:  opt.Password,
			DB:        opt.DB,
			TLSConfig: opt.TLSConfig,
		}),
		queue: cfg.GetAsynqQueueName(),
		log:   log,
	}, nil
}

// EnqueueSLASweep schedules one SLA sweep. The uniqueness window keeps
// overlapping dispatch ticks from stacking sweeps in the queue.
func (c *Client) EnqueueSLASweep(ctx context.Context, uniqueWindow time.Duration) error {
	task := asynq.NewTask(TaskSLASweep, nil)
	_, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.MaxRetry(3),
		asynq.Unique(uniqueWindow),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			c.log.Debug("sla sweep already queued, skipping")
			return nil
		}
		return fmt.Errorf("enqueue sla sweep: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connections.
func (c *Client) Close() error {
	return c.client.Close()
}
