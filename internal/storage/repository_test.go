package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treecensus/internal/core"
	"treecensus/internal/log"
)

func newTestRepo(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "census.db")
	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo, path
}

func sampleRecords() []core.RawRecord {
	return []core.RawRecord{
		{Borough: core.Bronx, Species: core.Str("pin oak"), Health: core.Str("Good"), Steward: core.Str("None"), Count: core.Count(4)},
		{Borough: core.Bronx, Species: core.Str("pin oak"), Health: core.Str("Fair"), Steward: core.Str("1or2"), Count: core.Count(2)},
		{Borough: core.Queens, Species: nil, Health: core.Str("Good"), Steward: nil, Count: core.NullCount{}},
	}
}

func TestNewSQLiteRepository_Migrates(t *testing.T) {
	_, path := newTestRepo(t)

	version, dirty, err := SchemaVersion(path)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// Running again is a no-op.
	require.NoError(t, RunMigrations(path))
}

func TestLatestSnapshot_Empty(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, err := repo.LatestSnapshot(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestSaveAndLoadSnapshot(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 12, 30, 0, 123456789, time.UTC)

	saved, err := repo.SaveSnapshot(ctx, Snapshot{SourceURL: "https://example.test/trees.json", FetchedAt: at}, sampleRecords())
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, 3, saved.RecordCount)
	assert.Equal(t, at.Truncate(time.Millisecond), saved.FetchedAt)

	latest, err := repo.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved, latest)

	recs, err := repo.LoadRecords(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, sampleRecords(), recs)

	counts, err := repo.RecordsByBorough(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, map[core.Borough]int{core.Bronx: 2, core.Queens: 1}, counts)
}

func TestLoadRecords_UnknownSnapshot(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, err := repo.LoadRecords(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestLatestSnapshot_NewestWins(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "newest", "middle"} {
		offset := []time.Duration{0, 2 * time.Hour, time.Hour}[i]
		_, err := repo.SaveSnapshot(ctx, Snapshot{ID: id, SourceURL: "u", FetchedAt: base.Add(offset)}, sampleRecords()[:1])
		require.NoError(t, err)
	}

	latest, err := repo.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "newest", latest.ID)

	all, err := repo.ListSnapshots(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(all))
	for _, s := range all {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"newest", "middle", "old"}, ids)
}

func TestSaveSnapshot_DuplicateIDRollsBack(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.SaveSnapshot(ctx, Snapshot{ID: "dup", SourceURL: "u"}, sampleRecords())
	require.NoError(t, err)
	_, err = repo.SaveSnapshot(ctx, Snapshot{ID: "dup", SourceURL: "u"}, sampleRecords()[:1])
	require.Error(t, err)

	recs, err := repo.LoadRecords(ctx, "dup")
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

func TestPruneSnapshots(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		_, err := repo.SaveSnapshot(ctx, Snapshot{SourceURL: "u", FetchedAt: base.Add(time.Duration(i) * time.Hour)}, sampleRecords())
		require.NoError(t, err)
	}

	removed, err := repo.PruneSnapshots(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	all, err := repo.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, base.Add(3*time.Hour), all[0].FetchedAt)

	removed, err = repo.PruneSnapshots(ctx, 2)
	require.NoError(t, err)
	assert.Zero(t, removed)

	_, err = repo.PruneSnapshots(ctx, 0)
	assert.Error(t, err)
}

type stubSource struct {
	recs  []core.RawRecord
	err   error
	calls int
}

func (s *stubSource) FetchAll(context.Context) ([]core.RawRecord, error) {
	s.calls++
	return s.recs, s.err
}

func TestSnapshotSource_SeedsFromFallback(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	remote := &stubSource{recs: sampleRecords()}

	src := NewSnapshotSource(repo, remote, "https://example.test", log.Discard())
	recs, err := src.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleRecords(), recs)
	assert.Equal(t, 1, remote.calls)
	seeded := src.SnapshotID()
	require.NotEmpty(t, seeded)

	// A second load is served from the store.
	again := NewSnapshotSource(repo, remote, "https://example.test", log.Discard())
	recs, err = again.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleRecords(), recs)
	assert.Equal(t, 1, remote.calls)
	assert.Equal(t, seeded, again.SnapshotID())
}

func TestSnapshotSource_EmptyStoreWithoutFallback(t *testing.T) {
	repo, _ := newTestRepo(t)
	src := NewSnapshotSource(repo, nil, "", log.Discard())
	_, err := src.FetchAll(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestSnapshotSource_FallbackErrorSavesNothing(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	boom := errors.New("boom")

	src := NewSnapshotSource(repo, &stubSource{err: boom}, "", log.Discard())
	_, err := src.FetchAll(ctx)
	assert.ErrorIs(t, err, boom)

	_, err = repo.LatestSnapshot(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)
}
