// Command api runs the HTTP API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadflow_backend/internal/distribution"
	disthandler "leadflow_backend/internal/distribution/handler"
	distrepo "leadflow_backend/internal/distribution/repository"
	distservice "leadflow_backend/internal/distribution/service"
	"leadflow_backend/internal/finance"
	financerepo "leadflow_backend/internal/finance/repository"
	financeservice "leadflow_backend/internal/finance/service"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/http/router"
	"leadflow_backend/internal/leads"
	leadshandler "leadflow_backend/internal/leads/handler"
	leadsrepo "leadflow_backend/internal/leads/repository"
	leadsservice "leadflow_backend/internal/leads/service"
	"leadflow_backend/internal/notification/inapp"
	"leadflow_backend/internal/sla"
	slahandler "leadflow_backend/internal/sla/handler"
	slarepo "leadflow_backend/internal/sla/repository"
	slaservice "leadflow_backend/internal/sla/service"
	"leadflow_backend/internal/webhook"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/db"
	"leadflow_backend/platform/events"
	"leadflow_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("production").Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Env)
	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := connectWithRetry(ctx, cfg, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, cfg, "migrations"); err != nil {
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	bus := events.NewInMemoryBus(log)

	// Leads.
	leadsRepository := leadsrepo.New(pool)

	// Notifications.
	notificationRepository := inapp.NewRepository(pool)
	notificationService := inapp.NewService(notificationRepository, log)

	// Finance.
	financeRepository := financerepo.New(pool)
	financeService := financeservice.New(financeRepository, bus, log)

	leadsService := leadsservice.New(leadsRepository, financeService, bus, log)

	// Distribution.
	distRepository := distrepo.New(pool)
	distService := distservice.New(distRepository, leadsRepository, notificationService, bus, cfg.GetDefaultMemberWeight(), log)
	leadsService.SetDistributor(distService)

	// SLA.
	slaRepository := slarepo.New(pool)
	slaService := slaservice.New(slaRepository, leadsRepository, notificationService, bus, cfg.GetSLADefaults(), log)

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: bus,
		Modules: []apphttp.Module{
			leads.NewModule(leadsRepository, leadsService, leadshandler.New(leadsService, log)),
			sla.NewModule(slaRepository, slaService, slahandler.New(slaService, log)),
			distribution.NewModule(distRepository, distService, disthandler.New(distService, log)),
			finance.NewModule(financeRepository, financeService, log),
			inapp.NewModule(notificationRepository, notificationService, log),
			webhook.NewModule(webhook.NewRepository(pool), leadsService, log),
		},
	}

	server := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("api server starting", "addr", cfg.GetHTTPAddr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped unexpectedly", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// connectWithRetry keeps trying the database during rolling deploys where the
// API can come up before the database accepts connections.
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
