package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"treecensus/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNoSnapshot is returned when the store holds no snapshot yet.
var ErrNoSnapshot = errors.New("no snapshot stored")

// ErrSnapshotNotFound is returned when a snapshot id is unknown.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot describes one persisted fetch of the census.
type Snapshot struct {
	ID          string    `json:"id"`
	SourceURL   string    `json:"source_url"`
	FetchedAt   time.Time `json:"fetched_at"`
	RecordCount int       `json:"record_count"`
}

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SaveSnapshot stores snap and its raw records in one transaction. An empty
// ID gets a fresh UUID and a zero FetchedAt gets the current time. The
// stored snapshot is returned.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, snap Snapshot, recs []core.RawRecord) (Snapshot, error) {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now()
	}
	snap.FetchedAt = snap.FetchedAt.UTC().Truncate(time.Millisecond)
	snap.RecordCount = len(recs)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := r.queries.WithTx(tx)
	if err := q.InsertSnapshot(ctx, SnapshotRow{
		ID:          snap.ID,
		SourceURL:   snap.SourceURL,
		FetchedAt:   snap.FetchedAt.UnixMilli(),
		RecordCount: int64(snap.RecordCount),
	}); err != nil {
		return Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}

	rows := make([]RecordRow, 0, len(recs))
	for i, rec := range recs {
		rows = append(rows, toRecordRow(int64(i), rec))
	}
	if err := q.InsertRecords(ctx, snap.ID, rows); err != nil {
		return Snapshot{}, err
	}

	if err := tx.Commit(); err != nil {
		return Snapshot{}, fmt.Errorf("commit snapshot: %w", err)
	}

	slog.InfoContext(ctx, "Snapshot saved to SQLite",
		"snapshot_id", snap.ID,
		"records", snap.RecordCount,
		"fetched_at", snap.FetchedAt)

	return snap, nil
}

// LatestSnapshot returns the most recently fetched snapshot, or
// ErrNoSnapshot.
func (r *SQLiteRepository) LatestSnapshot(ctx context.Context) (Snapshot, error) {
	row, err := r.queries.GetLatestSnapshot(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("get latest snapshot: %w", err)
	}
	return fromSnapshotRow(row), nil
}

func (r *SQLiteRepository) GetSnapshot(ctx context.Context, id string) (Snapshot, error) {
	row, err := r.queries.GetSnapshot(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("get snapshot %s: %w", id, err)
	}
	return fromSnapshotRow(row), nil
}

// ListSnapshots returns every snapshot, newest first.
func (r *SQLiteRepository) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	rows, err := r.queries.ListSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	out := make([]Snapshot, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromSnapshotRow(row))
	}
	return out, nil
}

// LoadRecords returns the raw records of one snapshot in their original
// order.
func (r *SQLiteRepository) LoadRecords(ctx context.Context, id string) ([]core.RawRecord, error) {
	if _, err := r.GetSnapshot(ctx, id); err != nil {
		return nil, err
	}
	rows, err := r.queries.ListRecords(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list records for snapshot %s: %w", id, err)
	}
	out := make([]core.RawRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRecordRow(row))
	}
	return out, nil
}

// RecordsByBorough counts stored rows per borough for one snapshot.
func (r *SQLiteRepository) RecordsByBorough(ctx context.Context, id string) (map[core.Borough]int, error) {
	rows, err := r.queries.CountRecordsByBorough(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count records for snapshot %s: %w", id, err)
	}
	out := make(map[core.Borough]int, len(rows))
	for _, row := range rows {
		out[core.Borough(row.Borough)] = int(row.Rows)
	}
	return out, nil
}

// PruneSnapshots deletes all but the newest keep snapshots and returns how
// many were removed.
func (r *SQLiteRepository) PruneSnapshots(ctx context.Context, keep int) (int, error) {
	if keep < 1 {
		return 0, fmt.Errorf("keep must be at least 1, got %d", keep)
	}
	snaps, err := r.queries.ListSnapshots(ctx)
	if err != nil {
		return 0, fmt.Errorf("list snapshots: %w", err)
	}
	if len(snaps) <= keep {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := r.queries.WithTx(tx)
	stale := snaps[keep:]
	for _, s := range stale {
		if err := q.DeleteRecords(ctx, s.ID); err != nil {
			return 0, fmt.Errorf("delete records of %s: %w", s.ID, err)
		}
		if err := q.DeleteSnapshot(ctx, s.ID); err != nil {
			return 0, fmt.Errorf("delete snapshot %s: %w", s.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}

	slog.InfoContext(ctx, "Old snapshots pruned", "removed", len(stale), "kept", keep)
	return len(stale), nil
}

func fromSnapshotRow(row SnapshotRow) Snapshot {
	return Snapshot{
		ID:          row.ID,
		SourceURL:   row.SourceURL,
		FetchedAt:   time.UnixMilli(row.FetchedAt).UTC(),
		RecordCount: int(row.RecordCount),
	}
}

func toRecordRow(seq int64, rec core.RawRecord) RecordRow {
	return RecordRow{
		Seq:     seq,
		Borough: string(rec.Borough),
		Species: nullString(rec.Species),
		Health:  nullString(rec.Health),
		Steward: nullString(rec.Steward),
		Count:   sql.NullInt64{Int64: rec.Count.Value, Valid: rec.Count.Valid},
	}
}

func fromRecordRow(row RecordRow) core.RawRecord {
	return core.RawRecord{
		Borough: core.Borough(row.Borough),
		Species: stringPtr(row.Species),
		Health:  stringPtr(row.Health),
		Steward: stringPtr(row.Steward),
		Count:   core.NullCount{Value: row.Count.Int64, Valid: row.Count.Valid},
	}
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
