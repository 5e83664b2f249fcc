package scheduler

import (
	"context"
	"fmt"

	slatransport "leadflow_backend/internal/sla/transport"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Sweeper runs one SLA sweep. Implemented by the SLA service.
type Sweeper interface {
	RunSweep(ctx context.Context) (slatransport.SweepResult, error)
}

// Worker consumes background tasks from Redis.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *logger.Logger
}

// NewWorker creates the asynq server with the task handlers registered.
func NewWorker(cfg config.SchedulerConfig, sweeper Sweeper, log *logger.Logger) (*Worker, error) {
	opt, err := redisConnOpt(cfg)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 4
	}

	server := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:      opt.Addr,
			Username:  opt.Username,
			Password:  opt.Password,
			DB:        opt.DB,
			TLSConfig: opt.TLSConfig,
		},
		asynq.Config{
			Concurrency: concurrency,
			Queues:      map[string]int{cfg.GetAsynqQueueName(): 1},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskSLASweep, func(ctx context.Context, _ *asynq.Task) error {
		result, err := sweeper.RunSweep(ctx)
		if err != nil {
			return fmt.Errorf("sla sweep task: %w", err)
		}
		log.Info("sla sweep task done",
			"checked", result.Checked,
			"warnings", result.Warnings,
			"overdue", result.Overdue,
			"failed", result.Failed,
		)
		return nil
	})

	return &Worker{server: server, mux: mux, log: log}, nil
}

// Run blocks processing tasks until the process receives a shutdown signal.
func (w *Worker) Run() error {
	return w.server.Run(w.mux)
}

// Shutdown stops the worker, waiting for in-flight tasks.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
}
