// Package backend selects where the dashboard reads its census records from.
package backend

import (
	"context"

	"treecensus/internal/census"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BackendResult contains the record source and optional cleanup function.
// Store is set only for backends that keep a database open.
type BackendResult struct {
	Type    BackendType
	Source  census.Source
	Store   Pinger
	Cleanup CleanupFunc
}

// snapshotter is implemented by sources that serve a stored snapshot.
type snapshotter interface {
	SnapshotID() string
}

// SnapshotID returns the id of the snapshot the source served last, or ""
// for sources that read the live API.
func (r *BackendResult) SnapshotID() string {
	if s, ok := r.Source.(snapshotter); ok {
		return s.SnapshotID()
	}
	return ""
}

// Close runs the cleanup function, if any.
func (r *BackendResult) Close() error {
	if r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates record sources based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Census API, used directly by the remote backend and to seed an empty
	// sqlite store.
	Census census.Config

	// SQLite specific
	SQLiteDBPath string
}

// BackendType represents the type of backend
type BackendType string

const (
	RemoteBackend BackendType = "remote"
	SQLiteBackend BackendType = "sqlite"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case RemoteBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}
