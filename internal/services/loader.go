package services

import (
	"context"
	"fmt"

	"treecensus/internal/census"
	"treecensus/internal/dataset"
	"treecensus/internal/log"
)

// LoadDataset fetches every record from src and builds the immutable
// dataset. snapshotID, when non-nil, is asked for the id of the snapshot the
// source served after the fetch.
func LoadDataset(ctx context.Context, src census.Source, strict bool, snapshotID func() string, logger *log.Logger) (*dataset.Dataset, dataset.Report, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentDataset)

	recs, err := src.FetchAll(ctx)
	if err != nil {
		return nil, dataset.Report{}, fmt.Errorf("load census records: %w", err)
	}

	opts := dataset.BuildOptions{Strict: strict}
	if snapshotID != nil {
		opts.SnapshotID = snapshotID()
	}
	ds, rep, err := dataset.Build(recs, opts)
	if err != nil {
		logger.ErrorContext(ctx, "Dataset rejected",
			log.FieldError, err,
			log.FieldRejected, rep.RejectedCategory)
		return nil, rep, fmt.Errorf("build dataset: %w", err)
	}

	log.NewStructuredLogger(logger).LogDatasetBuilt(ctx, opts.SnapshotID, rep.Kept, rep.DroppedMissing, rep.RejectedCategory)
	for _, s := range rep.Samples {
		logger.DebugContext(ctx, "Rejected census row",
			log.FieldBorough, s.Borough,
			log.FieldSpecies, s.Species,
			"health", s.Health,
			"steward", s.Steward,
			"reason", s.Reason)
	}
	m := ds.Meta()
	logger.InfoContext(ctx, "Dataset ready",
		"rows", m.Rows,
		"species", m.SpeciesSeen,
		"trees", m.TotalTrees)
	return ds, rep, nil
}
