package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/dvloznov/statement-partitions/internal/domain"
	"github.com/dvloznov/statement-partitions/internal/logger"
	"github.com/dvloznov/statement-partitions/internal/partition"
	"github.com/dvloznov/statement-partitions/internal/statement"
)

// PipelineStep represents a single step in the ingestion pipeline.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	RunID     string
	SourceURL string
	Data      []byte
	Workbook  *statement.Workbook
	Layout    statement.Layout
	Records   []domain.Record

	// HotMonths holds the month keys counted as hot.
	HotMonths map[string]bool

	Result IngestResult
}

// FetchWorkbookStep downloads the workbook bytes.
type FetchWorkbookStep struct {
	Fetcher SourceFetcher
}

func (s *FetchWorkbookStep) Name() string { return "fetch_workbook" }

func (s *FetchWorkbookStep) Execute(ctx context.Context, state *PipelineState) error {
	data, err := s.Fetcher.Fetch(ctx, state.SourceURL)
	if err != nil {
		return fmt.Errorf("FetchWorkbookStep: %w", err)
	}
	state.Data = data
	return nil
}

// ExtractGridStep opens the first worksheet as a cell grid.
type ExtractGridStep struct{}

func (s *ExtractGridStep) Name() string { return "extract_grid" }

func (s *ExtractGridStep) Execute(ctx context.Context, state *PipelineState) error {
	wb, err := statement.OpenWorkbook(state.Data)
	if err != nil {
		return fmt.Errorf("ExtractGridStep: %w", err)
	}
	state.Workbook = wb
	state.Data = nil
	return nil
}

// DetectLayoutStep finds the header row and account metadata.
type DetectLayoutStep struct {
	Detector statement.LayoutDetector
}

func (s *DetectLayoutStep) Name() string { return "detect_layout" }

func (s *DetectLayoutStep) Execute(ctx context.Context, state *PipelineState) error {
	layout, err := s.Detector.Detect(state.Workbook.Grid)
	if err != nil {
		return fmt.Errorf("DetectLayoutStep: %w", err)
	}
	state.Layout = layout

	log := logger.FromContext(ctx)
	log.Debug().
		Int("header_row", layout.HeaderRow).
		Str("account_no", layout.Meta.AccountNo).
		Msg("Layout detected")
	return nil
}

// NormalizeRecordsStep turns data rows into canonical records.
type NormalizeRecordsStep struct{}

func (s *NormalizeRecordsStep) Name() string { return "normalize_records" }

func (s *NormalizeRecordsStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Records = statement.NormalizeRecords(state.Workbook.Grid, state.Layout, state.Workbook.DateOptions())
	return nil
}

// WritePartitionsStep groups records by month and merges each group.
type WritePartitionsStep struct {
	Writer PartitionWriter
}

func (s *WritePartitionsStep) Name() string { return "write_partitions" }

func (s *WritePartitionsStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)

	byMonth := GroupByMonth(state.Records)
	months := make([]string, 0, len(byMonth))
	for mk := range byMonth {
		months = append(months, mk)
	}
	sort.Strings(months)

	for _, mk := range months {
		items := byMonth[mk]
		if _, err := s.Writer.Merge(ctx, mk, items, partition.MergeModeMerge); err != nil {
			return fmt.Errorf("WritePartitionsStep: month %s: %w", mk, err)
		}

		n := len(items)
		state.Result.Total += n
		if state.HotMonths[mk] {
			state.Result.HotSaved += n
		} else {
			state.Result.ColdSaved += n
		}
		log.Info().Str("month_key", mk).Int("items", n).Msg("Month merged")
	}
	return nil
}

// GroupByMonth buckets dated records into id-keyed maps per month.
// Records without a date are dropped.
func GroupByMonth(records []domain.Record) map[string]map[string]domain.Record {
	out := make(map[string]map[string]domain.Record)
	for _, r := range records {
		if !r.HasDate() {
			continue
		}
		r.AssignID()
		items, ok := out[r.MonthKey]
		if !ok {
			items = make(map[string]domain.Record)
			out[r.MonthKey] = items
		}
		items[r.ID] = r
	}
	return out
}
