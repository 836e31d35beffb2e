package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	cdhttp "github.com/kestrelworks/crewdeck/internal/adapter/http"
	cdnats "github.com/kestrelworks/crewdeck/internal/adapter/nats"
	cdotel "github.com/kestrelworks/crewdeck/internal/adapter/otel"
	"github.com/kestrelworks/crewdeck/internal/adapter/postgres"
	"github.com/kestrelworks/crewdeck/internal/adapter/ristretto"
	"github.com/kestrelworks/crewdeck/internal/adapter/ws"
	"github.com/kestrelworks/crewdeck/internal/config"
	"github.com/kestrelworks/crewdeck/internal/logger"
	"github.com/kestrelworks/crewdeck/internal/middleware"
	"github.com/kestrelworks/crewdeck/internal/service"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	slog.SetDefault(logger.New(cfg.Logging))

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"heartbeat_interval", cfg.Worker.HeartbeatInterval,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability ---
	var metrics *cdotel.Metrics
	if cfg.Telemetry.Enabled {
		shutdown, err := cdotel.Setup(ctx, cfg.Logging.Service, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			return fmt.Errorf("otel: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				slog.Error("otel shutdown", "error", err)
			}
		}()
		if metrics, err = cdotel.NewMetrics(); err != nil {
			return fmt.Errorf("otel metrics: %w", err)
		}
	}

	// --- Infrastructure ---
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	queue, err := cdnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	statusCache, err := ristretto.New(cfg.Daemon.CacheMaxBytes)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer statusCache.Close()

	// --- Services ---
	hub := ws.NewHub()
	store := postgres.NewStore(pool)
	activities := postgres.NewActivityLog(pool)
	events := service.NewEvents(queue, hub)

	taskSvc := service.NewTaskService(store, activities, events, metrics)
	agentSvc := service.NewAgentService(store, activities, events)
	messageSvc := service.NewMessageService(store, activities, events)
	notificationSvc := service.NewNotificationService(store, activities, events, metrics)
	documentSvc := service.NewDocumentService(store, activities, events)
	workCycleSvc := service.NewWorkCycleService(store, activities, events, metrics, taskSvc, messageSvc, cfg.Worker)
	webhookSvc := service.NewRunWebhookService(store, activities, events, taskSvc)
	standupSvc := service.NewStandupService(store, activities, events)
	statusSvc := service.NewStatusService(store, activities, statusCache)
	reconcileSvc := service.NewReconcileService(store, cfg.Reconcile.Interval)

	if err := agentSvc.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	// --- HTTP ---
	handlers := &cdhttp.Handlers{
		Tasks:         taskSvc,
		Agents:        agentSvc,
		Messages:      messageSvc,
		Notifications: notificationSvc,
		Documents:     documentSvc,
		WorkCycle:     workCycleSvc,
		Webhooks:      webhookSvc,
		Standup:       standupSvc,
		Status:        statusSvc,
		Reconcile:     reconcileSvc,
		Activities:    activities,
		Hub:           hub,
		Queue:         queue,
	}

	r := chi.NewRouter()
	r.Use(cdhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(cdhttp.SecurityHeaders)
	r.Use(cdhttp.Logger)
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	if cfg.Telemetry.Enabled {
		r.Use(cdotel.Middleware)
	}

	cdhttp.MountRoutes(r, handlers)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return ignoreCanceled(workCycleSvc.Loop(gctx))
	})

	g.Go(func() error {
		return ignoreCanceled(reconcileSvc.Loop(gctx))
	})

	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
