// Command scheduler runs the background worker: it dispatches the periodic
// SLA sweep into asynq and processes the queued tasks.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadflow_backend/internal/events"
	leadsrepo "leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/notification/inapp"
	"leadflow_backend/internal/scheduler"
	slarepo "leadflow_backend/internal/sla/repository"
	slaservice "leadflow_backend/internal/sla/service"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/db"
	"leadflow_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("production").Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env)

	if cfg.GetRedisURL() == "" {
		log.Error("REDIS_URL is required for the scheduler")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := connectWithRetry(ctx, cfg, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	bus := events.NewInMemoryBus(log)

	leadsRepository := leadsrepo.New(pool)
	notificationService := inapp.NewService(inapp.NewRepository(pool), log)
	slaService := slaservice.New(slarepo.New(pool), leadsRepository, notificationService, bus, cfg.GetSLADefaults(), log)

	client, err := scheduler.NewClient(cfg, log)
	if err != nil {
		log.Error("failed to create task client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	worker, err := scheduler.NewWorker(cfg, slaService, log)
	if err != nil {
		log.Error("failed to create worker", "error", err)
		os.Exit(1)
	}

	dispatcher := scheduler.NewDispatcher(client, cfg.GetSLASweepInterval(), log)
	go dispatcher.Run(ctx)

	go func() {
		<-ctx.Done()
		worker.Shutdown()
	}()

	log.Info("scheduler starting", "sweep_interval", cfg.GetSLASweepInterval().String())
	if err := worker.Run(); err != nil {
		log.Error("worker stopped unexpectedly", "error", err)
		os.Exit(1)
	}
}

func connectWithRetry(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*pgxpool.Pool, error) {
	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		pool, err := db.NewPool(ctx, cfg)
		if err == nil {
			return pool, nil
		}
		lastErr = err
		log.Warn("database connection failed, retrying", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	return nil, lastErr
}
