// Package app wires configuration into the storage, ingestion and migration services.
package app

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-partitions/internal/blobstore"
	"github.com/dvloznov/statement-partitions/internal/config"
	"github.com/dvloznov/statement-partitions/internal/fetch"
	infraBQ "github.com/dvloznov/statement-partitions/internal/infra/bigquery"
	"github.com/dvloznov/statement-partitions/internal/infra/postgres"
	"github.com/dvloznov/statement-partitions/internal/migration"
	"github.com/dvloznov/statement-partitions/internal/partition"
	"github.com/dvloznov/statement-partitions/internal/pipeline"
)

// ErrNoBucket is returned when GCS_BUCKET is not configured.
var ErrNoBucket = errors.New("GCS_BUCKET is not set")

// Services holds the long-lived clients shared by every request.
type Services struct {
	Config   *config.Config
	Storage  *storage.Client
	Store    *blobstore.GCSStore
	Writer   *partition.Writer
	Fetcher  *fetch.Fetcher
	Ingester *pipeline.Ingester

	log     zerolog.Logger
	closers []func() error
}

// Open creates the storage client and the services built on it.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Services, error) {
	if cfg.GCSBucket == "" {
		return nil, fmt.Errorf("Open: %w", ErrNoBucket)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("Open: creating storage client: %w", err)
	}

	s := &Services{Config: cfg, Storage: client, log: log}
	s.closers = append(s.closers, client.Close)

	s.Store = blobstore.NewGCSStore(client, cfg.GCSBucket)
	s.Writer = partition.NewWriter(s.Store, cfg.PartitionPrefix, partition.WithLogger(log))
	s.Fetcher = fetch.New(client, cfg.FetchTimeout, cfg.MaxWorkbookBytes)
	s.Ingester = pipeline.NewIngester(s.Fetcher, s.Writer,
		pipeline.WithLocation(cfg.Location()),
		pipeline.WithLogger(log),
	)
	return s, nil
}

// OpenSource connects to the configured migration source.
func (s *Services) OpenSource(ctx context.Context) (migration.Source, error) {
	src, closeFn, err := OpenSource(ctx, s.Config)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, closeFn)
	return src, nil
}

// NewMigrationJob builds a Job over src writing through the shared partition writer.
func (s *Services) NewMigrationJob(src migration.Source) *migration.Job {
	return migration.NewJob(src, s.Writer, migration.Options{
		PageSize:       s.Config.MigrationPageSize,
		FlushThreshold: s.Config.MigrationFlushThreshold,
	}, s.log)
}

// Close releases every client in reverse order of creation.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenSource selects the migration source by SOURCE_DRIVER.
func OpenSource(ctx context.Context, cfg *config.Config) (migration.Source, func() error, error) {
	switch cfg.SourceDriver {
	case config.DriverBigQuery:
		if cfg.GCPProject == "" {
			return nil, nil, fmt.Errorf("OpenSource: GCP_PROJECT is required for the bigquery source")
		}
		src, err := infraBQ.OpenIncomeSource(ctx, cfg.GCPProject, cfg.BQDataset, cfg.BQSourceTable)
		if err != nil {
			return nil, nil, fmt.Errorf("OpenSource: %w", err)
		}
		return src, src.Close, nil

	case config.DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("OpenSource: DATABASE_URL is required for the postgres source")
		}
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("OpenSource: %w", err)
		}
		closeFn := func() error {
			pool.Close()
			return nil
		}
		return postgres.NewIncomeSource(pool, cfg.PGSourceTable), closeFn, nil

	default:
		return nil, nil, fmt.Errorf("OpenSource: unknown driver %q", cfg.SourceDriver)
	}
}
