package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dvloznov/statement-partitions/internal/app"
	"github.com/dvloznov/statement-partitions/internal/config"
	"github.com/dvloznov/statement-partitions/internal/logger"
	"github.com/dvloznov/statement-partitions/internal/migration"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	var (
		from           = flag.String("from", "", "First month to migrate, YYYY-MM (optional)")
		to             = flag.String("to", "", "Last month to migrate, YYYY-MM (optional)")
		dryRun         = flag.Bool("dry-run", false, "Count rows without writing partitions")
		rewrite        = flag.Bool("rewrite", false, "Replace each month's partition on its first flush")
		startAfter     = flag.String("start-after", "", "Resume after this document id")
		driver         = flag.String("driver", cfg.SourceDriver, "Source driver: bigquery or postgres")
		bucket         = flag.String("bucket", cfg.GCSBucket, "GCS bucket holding month partitions")
		pageSize       = flag.Int("page-size", cfg.MigrationPageSize, "Rows read per page")
		flushThreshold = flag.Int("flush-threshold", cfg.MigrationFlushThreshold, "Buffered rows that trigger a flush")
		timeout        = flag.Duration("timeout", 2*time.Hour, "Overall run timeout")
	)
	flag.Parse()

	cfg.SourceDriver, cfg.GCSBucket = *driver, *bucket
	cfg.MigrationPageSize, cfg.MigrationFlushThreshold = *pageSize, *flushThreshold
	if err := cfg.Validate(); err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}

	log := logger.NewFromConfig(cfg.LogLevel, cfg.LogFormat)

	// Create context with timeout so the job doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	svc, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer svc.Close()

	src, err := svc.OpenSource(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open migration source")
	}

	params := migration.Params{
		FromMonth:   *from,
		ToMonth:     *to,
		DryRun:      *dryRun,
		RewriteOnce: *rewrite,
		StartAfter:  *startAfter,
	}
	log.Info().Interface("params", params).Msg("Starting migration")

	res, runErr := svc.NewMigrationJob(src).Run(ctx, params)
	if err := writeResult(os.Stdout, res); err != nil {
		log.Error().Err(err).Msg("Failed to print result")
	}
	if runErr != nil {
		if res != nil && res.LastDocID != "" {
			fmt.Fprintf(os.Stderr, "Resume with: -start-after %s\n", res.LastDocID)
		}
		svc.Close()
		log.Fatal().Err(runErr).Msg("Migration failed")
	}
}

// writeResult prints res as indented JSON. A nil result prints nothing.
func writeResult(w io.Writer, res *migration.Result) error {
	if res == nil {
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
