// The crewdeck-daemon binary drains the notification queue into live agent
// sessions through the session gateway. It runs beside the core service
// against the same store.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"log/slog"

	"github.com/kestrelworks/crewdeck/internal/adapter/gateway"
	cdotel "github.com/kestrelworks/crewdeck/internal/adapter/otel"
	"github.com/kestrelworks/crewdeck/internal/adapter/postgres"
	"github.com/kestrelworks/crewdeck/internal/adapter/ristretto"
	"github.com/kestrelworks/crewdeck/internal/config"
	"github.com/kestrelworks/crewdeck/internal/logger"
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
	cfg.Logging.Service = "crewdeck-daemon"
	slog.SetDefault(logger.New(cfg.Logging))

	// Without a gateway there is nowhere to deliver to; refuse to start
	// rather than silently draining nothing.
	if cfg.Gateway.BaseURL == "" {
		return errors.New("gateway.base_url is required (CREWDECK_GATEWAY_URL)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metrics *cdotel.Metrics
	if cfg.Telemetry.Enabled {
		shutdown, err := cdotel.Setup(ctx, cfg.Logging.Service, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			return fmt.Errorf("otel: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				slog.Error("otel shutdown", "error", err)
			}
		}()
		if metrics, err = cdotel.NewMetrics(); err != nil {
			return fmt.Errorf("otel metrics: %w", err)
		}
	}

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	routeCache, err := ristretto.New(cfg.Daemon.CacheMaxBytes)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer routeCache.Close()

	store := postgres.NewStore(pool)
	sender := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Timeout)
	delivery := service.NewDeliveryService(store, sender, routeCache, metrics, cfg.Daemon.PollInterval)

	slog.Info("daemon started", "gateway", cfg.Gateway.BaseURL, "poll_interval", cfg.Daemon.PollInterval)
	if err := delivery.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
