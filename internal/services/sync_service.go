package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"treecensus/internal/amqp"
	"treecensus/internal/census"
	"treecensus/internal/core"
	"treecensus/internal/dataset"
	"treecensus/internal/log"
	"treecensus/internal/sheets"
	"treecensus/internal/storage"
)

// ErrExport marks a sync whose snapshot was saved but whose spreadsheet
// export failed.
var ErrExport = errors.New("aggregate export failed")

// ErrPublish marks a sync whose snapshot was saved but not announced.
var ErrPublish = errors.New("snapshot announcement failed")

// SnapshotStore persists fetched records.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap storage.Snapshot, recs []core.RawRecord) (storage.Snapshot, error)
	PruneSnapshots(ctx context.Context, keep int) (int, error)
}

// SnapshotPublisher announces stored snapshots.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, msg *amqp.SnapshotMessage) error
}

// SyncConfig holds configuration for the sync pipeline
type SyncConfig struct {
	SourceURL string
	Strict    bool
	// Keep is how many snapshots survive pruning; 0 disables pruning.
	Keep int
}

// SyncResult describes one completed sync.
type SyncResult struct {
	Snapshot     storage.Snapshot
	Report       dataset.Report
	Meta         dataset.Meta
	Pruned       int
	HealthRange  string
	StewardRange string
	Published    bool
}

// SyncService fetches the census, validates it by building the dataset,
// stores it as a snapshot, then optionally exports and announces it.
type SyncService struct {
	source    census.Source
	store     SnapshotStore
	exporter  sheets.AggregateExporter
	publisher SnapshotPublisher
	config    SyncConfig
	logger    *log.Logger
	now       func() time.Time
}

// NewSyncService creates a sync pipeline. exporter and publisher may be nil.
func NewSyncService(
	source census.Source,
	store SnapshotStore,
	exporter sheets.AggregateExporter,
	publisher SnapshotPublisher,
	config SyncConfig,
	logger *log.Logger,
) *SyncService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SyncService{
		source:    source,
		store:     store,
		exporter:  exporter,
		publisher: publisher,
		config:    config,
		logger:    logger.WithComponent(log.ComponentWorker),
		now:       time.Now,
	}
}

// Run performs one sync. A fetch, build or save failure aborts before
// anything is written. Export and publish failures are returned joined, with
// the result of the saved snapshot.
func (s *SyncService) Run(ctx context.Context) (SyncResult, error) {
	var res SyncResult
	fetchedAt := s.now()

	recs, err := s.source.FetchAll(ctx)
	if err != nil {
		return res, fmt.Errorf("fetch census: %w", err)
	}

	ds, rep, err := dataset.Build(recs, dataset.BuildOptions{Strict: s.config.Strict, Now: s.now})
	res.Report = rep
	if err != nil {
		return res, fmt.Errorf("build dataset: %w", err)
	}

	snap, err := s.store.SaveSnapshot(ctx, storage.Snapshot{SourceURL: s.config.SourceURL, FetchedAt: fetchedAt}, recs)
	if err != nil {
		return res, fmt.Errorf("save snapshot: %w", err)
	}
	res.Snapshot = snap
	res.Meta = ds.Meta()
	log.NewStructuredLogger(s.logger).LogDatasetBuilt(ctx, snap.ID, rep.Kept, rep.DroppedMissing, rep.RejectedCategory)

	if s.config.Keep > 0 {
		pruned, err := s.store.PruneSnapshots(ctx, s.config.Keep)
		if err != nil {
			s.logger.WarnContext(ctx, "Failed to prune old snapshots", log.FieldError, err)
		}
		res.Pruned = pruned
	}

	var errs []error
	if s.publisher != nil {
		msg := amqp.NewSnapshotMessage(snap.ID, snap.RecordCount, snap.FetchedAt)
		if err := s.publisher.PublishSnapshot(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrPublish, err))
		} else {
			res.Published = true
		}
	}

	if s.exporter != nil {
		if err := s.export(ctx, ds, &res); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrExport, err))
		}
	}

	s.logger.InfoContext(ctx, "Census sync complete",
		log.FieldSnapshotID, snap.ID,
		log.FieldRecords, snap.RecordCount,
		"pruned", res.Pruned,
		"published", res.Published,
		"exported", res.HealthRange != "" && res.StewardRange != "")

	return res, errors.Join(errs...)
}

func (s *SyncService) export(ctx context.Context, ds *dataset.Dataset, res *SyncResult) error {
	rng, err := s.exporter.ExportHealth(ctx, ds.HealthRows())
	if err != nil {
		return fmt.Errorf("health view: %w", err)
	}
	res.HealthRange = rng

	rng, err = s.exporter.ExportStewards(ctx, ds.StewardRows())
	if err != nil {
		return fmt.Errorf("steward view: %w", err)
	}
	res.StewardRange = rng

	s.logger.InfoContext(ctx, "Aggregates exported",
		log.FieldSheetsRange, res.HealthRange,
		"steward_range", res.StewardRange)
	return nil
}
