package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-partitions/internal/logger"
	"github.com/dvloznov/statement-partitions/internal/statement"
)

// IngestResult reports how many items were merged, split by the hot window.
type IngestResult struct {
	Total     int `json:"total"`
	HotSaved  int `json:"hotSaved"`
	ColdSaved int `json:"coldSaved"`
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)
	for i, step := range p.steps {
		start := time.Now()
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
		log.Debug().
			Str("step", step.Name()).
			Dur("duration", time.Since(start)).
			Msg("Step completed")
	}
	return nil
}

// Ingester turns statement workbooks into merged month partitions.
type Ingester struct {
	fetcher  SourceFetcher
	writer   PartitionWriter
	detector statement.LayoutDetector
	now      func() time.Time
	loc      *time.Location
	log      zerolog.Logger
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithDetector replaces the keyword layout detector.
func WithDetector(d statement.LayoutDetector) Option {
	return func(in *Ingester) { in.detector = d }
}

// WithClock overrides the clock used for the hot window.
func WithClock(now func() time.Time) Option {
	return func(in *Ingester) { in.now = now }
}

// WithLocation sets the time zone the hot window is computed in.
func WithLocation(loc *time.Location) Option {
	return func(in *Ingester) {
		if loc != nil {
			in.loc = loc
		}
	}
}

// WithLogger sets the ingester's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(in *Ingester) { in.log = log }
}

// NewIngester creates an Ingester. fetcher may be nil when only
// IngestWorkbook is used.
func NewIngester(fetcher SourceFetcher, writer PartitionWriter, opts ...Option) *Ingester {
	in := &Ingester{
		fetcher:  fetcher,
		writer:   writer,
		detector: statement.NewKeywordDetector(),
		now:      time.Now,
		loc:      time.UTC,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// IngestFromSource downloads, parses and merges the workbook at sourceURL.
func (in *Ingester) IngestFromSource(ctx context.Context, sourceURL string, recentMonths int) (*IngestResult, error) {
	if in.fetcher == nil {
		return nil, fmt.Errorf("IngestFromSource: no fetcher configured")
	}
	state := in.newState(recentMonths)
	state.SourceURL = sourceURL

	p := NewPipeline(
		&FetchWorkbookStep{Fetcher: in.fetcher},
		&ExtractGridStep{},
		&DetectLayoutStep{Detector: in.detector},
		&NormalizeRecordsStep{},
		&WritePartitionsStep{Writer: in.writer},
	)
	return in.run(ctx, p, state)
}

// IngestWorkbook parses and merges an already opened workbook.
func (in *Ingester) IngestWorkbook(ctx context.Context, wb *statement.Workbook, recentMonths int) (*IngestResult, error) {
	if wb == nil {
		return nil, fmt.Errorf("IngestWorkbook: %w", statement.ErrNoWorksheet)
	}
	state := in.newState(recentMonths)
	state.Workbook = wb

	p := NewPipeline(
		&DetectLayoutStep{Detector: in.detector},
		&NormalizeRecordsStep{},
		&WritePartitionsStep{Writer: in.writer},
	)
	return in.run(ctx, p, state)
}

func (in *Ingester) newState(recentMonths int) *PipelineState {
	return &PipelineState{
		RunID:     uuid.NewString(),
		HotMonths: HotMonths(in.now().In(in.loc), recentMonths),
	}
}

func (in *Ingester) run(ctx context.Context, p *Pipeline, state *PipelineState) (*IngestResult, error) {
	log := in.log.With().Str("run_id", state.RunID).Logger()
	if state.SourceURL != "" {
		log = log.With().Str("source_url", state.SourceURL).Logger()
	}
	ctx = logger.WithContext(ctx, log)

	log.Info().Msg("Starting statement ingestion")
	if err := p.Execute(ctx, state); err != nil {
		log.Error().Err(err).Msg("Statement ingestion failed")
		return nil, err
	}

	res := state.Result
	log.Info().
		Int("records", len(state.Records)).
		Int("total", res.Total).
		Int("hot_saved", res.HotSaved).
		Int("cold_saved", res.ColdSaved).
		Msg("Statement ingestion completed")
	return &res, nil
}

// HotMonths returns the month keys of the n calendar months ending with now's month.
func HotMonths(now time.Time, n int) map[string]bool {
	out := make(map[string]bool, max(n, 0))
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	for i := 0; i < n; i++ {
		out[first.AddDate(0, -i, 0).Format("2006-01")] = true
	}
	return out
}
