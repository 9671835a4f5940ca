package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"treecensus/internal/amqp"
	"treecensus/internal/backend"
	"treecensus/internal/census"
	"treecensus/internal/cli"
	"treecensus/internal/config"
	"treecensus/internal/core"
	"treecensus/internal/log"
	"treecensus/internal/services"
	"treecensus/internal/sheets"
	gsheet "treecensus/internal/sheets/google"
	"treecensus/internal/worker"
)

const stopTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	logger = logger.WithComponent(log.ComponentWorker)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	logger.Info("Starting census-sync", "interval", cfg.SyncInterval, "db_path", cfg.SQLiteDBPath)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Census sync failed", log.FieldError, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	source := census.NewClient(backend.CensusConfig(cfg), nil, logger)

	var exporter sheets.AggregateExporter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			HealthSheet:        cfg.GoogleHealthSheet,
			StewardSheet:       cfg.GoogleStewardSheet,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			return fmt.Errorf("init google sheets: %w", err)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	var publisher services.SnapshotPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return fmt.Errorf("init amqp: %w", err)
		}
		defer client.Close()
		publisher = client
		logger.Info("Snapshot announcements enabled", "exchange", cfg.AMQPExchange)
	}

	svc := services.NewSyncService(source, repo, exporter, publisher, services.SyncConfig{
		SourceURL: cfg.DatasetURL,
		Strict:    cfg.StrictCategories,
		Keep:      cfg.SnapshotKeep,
	}, logger)

	if cfg.SyncInterval <= 0 {
		res, err := svc.Run(ctx)
		if res.Snapshot.ID != "" {
			logger.Info("Snapshot stored",
				log.FieldSnapshotID, res.Snapshot.ID,
				log.FieldRecords, res.Snapshot.RecordCount,
				"pruned", res.Pruned)
			if counts, cerr := repo.RecordsByBorough(ctx, res.Snapshot.ID); cerr == nil {
				for _, b := range core.Boroughs() {
					logger.Debug("Stored borough rows", log.FieldBorough, string(b), log.FieldRecords, counts[b])
				}
			}
		}
		return err
	}

	w := worker.NewSyncWorker(svc, cfg.SyncInterval, logger)
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start sync worker: %w", err)
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop sync worker: %w", err)
	}
	runs, failures, _ := w.Stats()
	logger.Info("Census sync worker stopped", "runs", runs, "failures", failures)
	return nil
}
