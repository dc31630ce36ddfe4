package pipeline

import (
	"context"

	"github.com/dvloznov/statement-partitions/internal/domain"
	"github.com/dvloznov/statement-partitions/internal/partition"
)

// SourceFetcher retrieves the raw bytes of a workbook.
// This interface enables mocking of gs:// and http(s) downloads in tests.
type SourceFetcher interface {
	Fetch(ctx context.Context, sourceURL string) ([]byte, error)
}

// PartitionWriter merges records into month partitions.
type PartitionWriter interface {
	Merge(ctx context.Context, monthKey string, items map[string]domain.Record, mode partition.MergeMode) (int, error)
}
