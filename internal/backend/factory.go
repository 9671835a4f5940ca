package backend

import (
	"context"
	"fmt"

	"treecensus/internal/census"
	"treecensus/internal/log"
	"treecensus/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case RemoteBackend:
		return f.createRemoteBackend(ctx, config)
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createRemoteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	client := census.NewClient(config.Census, nil, f.logger)

	f.logger.InfoContext(ctx, "Initialized remote backend",
		"dataset_url", config.Census.BaseURL,
		"concurrency", config.Census.Concurrency)

	return &BackendResult{
		Type:   RemoteBackend,
		Source: client,
	}, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	remote := census.NewClient(config.Census, nil, f.logger)
	source := storage.NewSnapshotSource(repo, remote, config.Census.BaseURL, f.logger)

	f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Type:    SQLiteBackend,
		Source:  source,
		Store:   repo,
		Cleanup: repo.Close,
	}, nil
}
