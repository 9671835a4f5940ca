package storage

import (
	"context"
	"database/sql"
	"fmt"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type SnapshotRow struct {
	ID          string
	SourceURL   string
	FetchedAt   int64
	RecordCount int64
}

type RecordRow struct {
	Seq     int64
	Borough string
	Species sql.NullString
	Health  sql.NullString
	Steward sql.NullString
	Count   sql.NullInt64
}

type BoroughCountRow struct {
	Borough string
	Rows    int64
}

const insertSnapshot = `
INSERT INTO snapshots (id, source_url, fetched_at, record_count)
VALUES (?, ?, ?, ?)
`

func (q *Queries) InsertSnapshot(ctx context.Context, arg SnapshotRow) error {
	_, err := q.db.ExecContext(ctx, insertSnapshot, arg.ID, arg.SourceURL, arg.FetchedAt, arg.RecordCount)
	return err
}

const insertRecord = `
INSERT INTO snapshot_records (snapshot_id, seq, borough, species, health, steward, count)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

// InsertRecords writes rows through one prepared statement.
func (q *Queries) InsertRecords(ctx context.Context, snapshotID string, rows []RecordRow) error {
	stmt, err := q.db.PrepareContext(ctx, insertRecord)
	if err != nil {
		return fmt.Errorf("prepare insert record: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, snapshotID, r.Seq, r.Borough, r.Species, r.Health, r.Steward, r.Count); err != nil {
			return fmt.Errorf("insert record %d: %w", r.Seq, err)
		}
	}
	return nil
}

const getLatestSnapshot = `
SELECT id, source_url, fetched_at, record_count
FROM snapshots
ORDER BY fetched_at DESC, id DESC
LIMIT 1
`

func (q *Queries) GetLatestSnapshot(ctx context.Context) (SnapshotRow, error) {
	row := q.db.QueryRowContext(ctx, getLatestSnapshot)
	var s SnapshotRow
	err := row.Scan(&s.ID, &s.SourceURL, &s.FetchedAt, &s.RecordCount)
	return s, err
}

const getSnapshot = `
SELECT id, source_url, fetched_at, record_count
FROM snapshots
WHERE id = ?
`

func (q *Queries) GetSnapshot(ctx context.Context, id string) (SnapshotRow, error) {
	row := q.db.QueryRowContext(ctx, getSnapshot, id)
	var s SnapshotRow
	err := row.Scan(&s.ID, &s.SourceURL, &s.FetchedAt, &s.RecordCount)
	return s, err
}

const listSnapshots = `
SELECT id, source_url, fetched_at, record_count
FROM snapshots
ORDER BY fetched_at DESC, id DESC
`

func (q *Queries) ListSnapshots(ctx context.Context) ([]SnapshotRow, error) {
	rows, err := q.db.QueryContext(ctx, listSnapshots)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []SnapshotRow
	for rows.Next() {
		var s SnapshotRow
		if err := rows.Scan(&s.ID, &s.SourceURL, &s.FetchedAt, &s.RecordCount); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

const listRecords = `
SELECT seq, borough, species, health, steward, count
FROM snapshot_records
WHERE snapshot_id = ?
ORDER BY seq
`

func (q *Queries) ListRecords(ctx context.Context, snapshotID string) ([]RecordRow, error) {
	rows, err := q.db.QueryContext(ctx, listRecords, snapshotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []RecordRow
	for rows.Next() {
		var r RecordRow
		if err := rows.Scan(&r.Seq, &r.Borough, &r.Species, &r.Health, &r.Steward, &r.Count); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const countRecordsByBorough = `
SELECT borough, COUNT(*)
FROM snapshot_records
WHERE snapshot_id = ?
GROUP BY borough
`

func (q *Queries) CountRecordsByBorough(ctx context.Context, snapshotID string) ([]BoroughCountRow, error) {
	rows, err := q.db.QueryContext(ctx, countRecordsByBorough, snapshotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []BoroughCountRow
	for rows.Next() {
		var r BoroughCountRow
		if err := rows.Scan(&r.Borough, &r.Rows); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const deleteRecords = `DELETE FROM snapshot_records WHERE snapshot_id = ?`

func (q *Queries) DeleteRecords(ctx context.Context, snapshotID string) error {
	_, err := q.db.ExecContext(ctx, deleteRecords, snapshotID)
	return err
}

const deleteSnapshot = `DELETE FROM snapshots WHERE id = ?`

func (q *Queries) DeleteSnapshot(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, deleteSnapshot, id)
	return err
}
