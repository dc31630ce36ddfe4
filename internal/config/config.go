// Package config loads runtime settings from the environment and an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Source drivers for the migration job.
const (
	DriverBigQuery = "bigquery"
	DriverPostgres = "postgres"
)

// Config holds every tunable the services read at startup.
type Config struct {
	Port string

	GCSBucket       string
	PartitionPrefix string

	GCPProject    string
	BQDataset     string
	BQSourceTable string

	SourceDriver  string
	DatabaseURL   string
	PGSourceTable string

	MigrationPageSize       int
	MigrationFlushThreshold int

	TimeZone string

	LogLevel  string
	LogFormat string

	FetchTimeout     time.Duration
	MaxWorkbookBytes int64
}

// Load reads .env files (missing files are ignored) and then the process
// environment. Variables already set in the environment win over .env.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("Load: reading %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		Port:            get("PORT", "8080"),
		GCSBucket:       get("GCS_BUCKET", ""),
		PartitionPrefix: get("PARTITION_PREFIX", "acct_income_json"),
		GCPProject:      get("GCP_PROJECT", get("GOOGLE_CLOUD_PROJECT", "")),
		BQDataset:       get("BQ_DATASET", "finance"),
		BQSourceTable:   get("BQ_SOURCE_TABLE", "acct_income"),
		SourceDriver:    strings.ToLower(get("SOURCE_DRIVER", DriverBigQuery)),
		DatabaseURL:     get("DATABASE_URL", ""),
		PGSourceTable:   get("PG_SOURCE_TABLE", "public.acct_income"),
		TimeZone:        get("TIME_ZONE", "Asia/Seoul"),
		LogLevel:        get("LOG_LEVEL", "info"),
		LogFormat:       get("LOG_FORMAT", "console"),
	}

	var err error
	if cfg.MigrationPageSize, err = atoi(get("MIGRATION_PAGE_SIZE", "5000")); err != nil {
		return nil, fmt.Errorf("FromEnv: MIGRATION_PAGE_SIZE: %w", err)
	}
	if cfg.MigrationFlushThreshold, err = atoi(get("MIGRATION_FLUSH_THRESHOLD", "100000")); err != nil {
		return nil, fmt.Errorf("FromEnv: MIGRATION_FLUSH_THRESHOLD: %w", err)
	}
	if cfg.FetchTimeout, err = time.ParseDuration(get("FETCH_TIMEOUT", "60s")); err != nil {
		return nil, fmt.Errorf("FromEnv: FETCH_TIMEOUT: %w", err)
	}
	maxBytes, err := atoi(get("MAX_WORKBOOK_BYTES", "33554432"))
	if err != nil {
		return nil, fmt.Errorf("FromEnv: MAX_WORKBOOK_BYTES: %w", err)
	}
	cfg.MaxWorkbookBytes = int64(maxBytes)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func atoi(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return n, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.SourceDriver {
	case DriverBigQuery, DriverPostgres:
	default:
		return fmt.Errorf("Validate: SOURCE_DRIVER %q: want %s or %s", c.SourceDriver, DriverBigQuery, DriverPostgres)
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("Validate: TIME_ZONE: %w", err)
	}
	return nil
}

// Location returns the configured time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
