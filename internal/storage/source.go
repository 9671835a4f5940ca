package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"treecensus/internal/census"
	"treecensus/internal/core"
	"treecensus/internal/log"
)

// SnapshotSource serves the latest stored snapshot as a census.Source. When
// the store is empty and a Fallback is set, it fetches from the fallback and
// saves the result as the first snapshot.
type SnapshotSource struct {
	repo      *SQLiteRepository
	fallback  census.Source
	sourceURL string
	logger    *log.Logger

	mu         sync.Mutex
	snapshotID string
}

var _ census.Source = (*SnapshotSource)(nil)

func NewSnapshotSource(repo *SQLiteRepository, fallback census.Source, sourceURL string, logger *log.Logger) *SnapshotSource {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SnapshotSource{
		repo:      repo,
		fallback:  fallback,
		sourceURL: sourceURL,
		logger:    logger.WithComponent(log.ComponentStorage),
	}
}

// FetchAll loads the records of the newest snapshot.
func (s *SnapshotSource) FetchAll(ctx context.Context) ([]core.RawRecord, error) {
	snap, err := s.repo.LatestSnapshot(ctx)
	if errors.Is(err, ErrNoSnapshot) && s.fallback != nil {
		return s.seed(ctx)
	}
	if err != nil {
		return nil, err
	}

	recs, err := s.repo.LoadRecords(ctx, snap.ID)
	if err != nil {
		return nil, err
	}
	s.setSnapshotID(snap.ID)

	s.logger.InfoContext(ctx, "Loaded stored snapshot",
		log.FieldSnapshotID, snap.ID,
		log.FieldRecords, len(recs),
		"fetched_at", snap.FetchedAt)
	return recs, nil
}

func (s *SnapshotSource) seed(ctx context.Context) ([]core.RawRecord, error) {
	s.logger.InfoContext(ctx, "No stored snapshot, fetching from remote source")

	recs, err := s.fallback.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := s.repo.SaveSnapshot(ctx, Snapshot{SourceURL: s.sourceURL}, recs)
	if err != nil {
		return nil, fmt.Errorf("save initial snapshot: %w", err)
	}
	s.setSnapshotID(snap.ID)
	return recs, nil
}

// SnapshotID returns the id of the snapshot served by the last FetchAll.
func (s *SnapshotSource) SnapshotID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotID
}

func (s *SnapshotSource) setSnapshotID(id string) {
	s.mu.Lock()
	s.snapshotID = id
	s.mu.Unlock()
}
