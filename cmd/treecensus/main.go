package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"treecensus/internal/amqp"
	"treecensus/internal/backend"
	"treecensus/internal/cli"
	"treecensus/internal/config"
	apphttp "treecensus/internal/http"
	"treecensus/internal/log"
	"treecensus/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Dashboard stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return fmt.Errorf("backend config: %w", err)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return fmt.Errorf("create %s backend: %w", backendCfg.Type, err)
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Warn("Failed to close backend", log.FieldError, err)
		}
	}()

	ds, _, err := services.LoadDataset(ctx, res.Source, cfg.StrictCategories, res.SnapshotID, logger)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}

	var (
		watcher   *amqp.Watcher
		snapshots apphttp.SnapshotWatcher
	)
	if cfg.AMQPURL != "" {
		watcher = amqp.NewWatcher(amqp.Dialer(cfg.AMQPURL, cfg.AMQPExchange), logger)
		snapshots = watcher
	} else {
		logger.Info("Snapshot watcher disabled - no AMQP_URL provided")
	}

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CacheSize:          cfg.CacheSize,
		CacheTTL:           cfg.CacheTTL,
		Store:              res.Store,
	}, ds, snapshots, logger)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting treecensus dashboard",
			"port", cfg.Port,
			"backend", string(backendCfg.Type),
			"species", len(ds.Species()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	if watcher != nil {
		g.Go(func() error { return watcher.Run(gctx) })
	}
	return g.Wait()
}
