// Package migration rebuilds month partitions from a transactional collection.
package migration

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-partitions/internal/domain"
	"github.com/dvloznov/statement-partitions/internal/partition"
)

// Defaults for Options.
const (
	DefaultPageSize       = 5000
	DefaultFlushThreshold = 100000
)

var (
	// ErrInvalidParams is returned when a month bound is not YYYY-MM.
	ErrInvalidParams = errors.New("invalid migration parameters")
	// ErrCursorStalled is returned when a source page does not advance past the cursor.
	ErrCursorStalled = errors.New("source page did not advance cursor")
)

// PartitionWriter merges records into month partitions.
type PartitionWriter interface {
	Merge(ctx context.Context, monthKey string, items map[string]domain.Record, mode partition.MergeMode) (int, error)
}

// Options tunes paging and memory use.
type Options struct {
	PageSize       int
	FlushThreshold int
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.FlushThreshold <= 0 {
		o.FlushThreshold = DefaultFlushThreshold
	}
	return o
}

// Params are the per-run inputs.
type Params struct {
	FromMonth   string `json:"fromMonth,omitempty"` // inclusive lower bound, optional
	ToMonth     string `json:"toMonth,omitempty"`   // inclusive upper bound, optional
	DryRun      bool   `json:"dryRun"`
	RewriteOnce bool   `json:"rewriteOnce"` // first flush of each month replaces the stored partition
	StartAfter  string `json:"startAfter,omitempty"`
}

// Validate checks the month bounds.
func (p Params) Validate() error {
	if p.FromMonth != "" && !domain.IsMonthKey(p.FromMonth) {
		return fmt.Errorf("from %q: %w", p.FromMonth, ErrInvalidParams)
	}
	if p.ToMonth != "" && !domain.IsMonthKey(p.ToMonth) {
		return fmt.Errorf("to %q: %w", p.ToMonth, ErrInvalidParams)
	}
	if p.FromMonth != "" && p.ToMonth != "" && p.FromMonth > p.ToMonth {
		return fmt.Errorf("from %q after to %q: %w", p.FromMonth, p.ToMonth, ErrInvalidParams)
	}
	return nil
}

func (p Params) inRange(monthKey string) bool {
	if p.FromMonth != "" && monthKey < p.FromMonth {
		return false
	}
	if p.ToMonth != "" && monthKey > p.ToMonth {
		return false
	}
	return true
}

// Result summarizes a run. On failure it still reports progress, and
// LastDocID is a cursor that is safe to resume from.
type Result struct {
	Migrated  int    `json:"migrated"`
	LastDocID string `json:"lastDocId"`
	Loops     int    `json:"loops"`
	DryRun    bool   `json:"dryRun"`
	FromMonth string `json:"fromMonth"`
	ToMonth   string `json:"toMonth"`
}

// Job copies source documents into month partitions.
type Job struct {
	source Source
	writer PartitionWriter
	opts   Options
	log    zerolog.Logger
}

// NewJob creates a Job. Zero option values take the defaults.
func NewJob(source Source, writer PartitionWriter, opts Options, log zerolog.Logger) *Job {
	return &Job{
		source: source,
		writer: writer,
		opts:   opts.withDefaults(),
		log:    log,
	}
}

// run is the mutable state of one invocation.
type run struct {
	job      *Job
	params   Params
	buffers  map[string]map[string]domain.Record
	buffered int
	flushed  map[string]bool
	migrated int
}

// Run pages through the source and merges every accepted row into its
// month partition.
func (j *Job) Run(ctx context.Context, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("Run: %w", err)
	}

	res := &Result{
		LastDocID: p.StartAfter,
		DryRun:    p.DryRun,
		FromMonth: p.FromMonth,
		ToMonth:   p.ToMonth,
	}
	r := &run{
		job:     j,
		params:  p,
		buffers: make(map[string]map[string]domain.Record),
		flushed: make(map[string]bool),
	}
	log := j.log.With().Bool("dry_run", p.DryRun).Bool("rewrite", p.RewriteOnce).Logger()

	// cursor is the last document read; durable is the last cursor whose
	// rows have all been written.
	cursor, durable := p.StartAfter, p.StartAfter
	skipped, filtered := 0, 0

	for {
		res.Loops++
		page, err := j.source.Page(ctx, cursor, j.opts.PageSize)
		if err != nil {
			if ferr := r.flush(ctx); ferr != nil {
				res.Migrated, res.LastDocID = r.migrated, durable
				return res, fmt.Errorf("Run: reading page after %q: %w", cursor, errors.Join(err, ferr))
			}
			res.Migrated, res.LastDocID = r.migrated, cursor
			return res, fmt.Errorf("Run: reading page after %q: %w", cursor, err)
		}
		if len(page) == 0 {
			break
		}

		for _, doc := range page {
			if cursor != "" && doc.DocID <= cursor {
				res.Migrated, res.LastDocID = r.migrated, durable
				return res, fmt.Errorf("Run: document %q after cursor %q: %w", doc.DocID, cursor, ErrCursorStalled)
			}
			cursor = doc.DocID

			rec, ok := toRecord(doc)
			if !ok {
				skipped++
				continue
			}
			if !p.inRange(rec.MonthKey) {
				filtered++
				continue
			}
			r.add(rec)
		}

		if r.buffered >= j.opts.FlushThreshold {
			if err := r.flush(ctx); err != nil {
				res.Migrated, res.LastDocID = r.migrated, durable
				return res, fmt.Errorf("Run: %w", err)
			}
		}
		if r.buffered == 0 {
			durable = cursor
		}

		log.Debug().
			Int("loop", res.Loops).
			Int("page_size", len(page)).
			Int("buffered", r.buffered).
			Str("last_doc_id", cursor).
			Msg("Page processed")
	}

	if err := r.flush(ctx); err != nil {
		res.Migrated, res.LastDocID = r.migrated, durable
		return res, fmt.Errorf("Run: %w", err)
	}
	res.Migrated, res.LastDocID = r.migrated, cursor

	log.Info().
		Int("migrated", res.Migrated).
		Int("loops", res.Loops).
		Int("skipped", skipped).
		Int("filtered", filtered).
		Str("last_doc_id", res.LastDocID).
		Msg("Migration completed")
	return res, nil
}

func (r *run) add(rec domain.Record) {
	items, ok := r.buffers[rec.MonthKey]
	if !ok {
		items = make(map[string]domain.Record)
		r.buffers[rec.MonthKey] = items
	}
	if _, dup := items[rec.ID]; !dup {
		r.buffered++
	}
	items[rec.ID] = rec
}

// flush writes every non-empty buffer in month order. Buffers that were
// written are dropped even if a later month fails.
func (r *run) flush(ctx context.Context) error {
	months := make([]string, 0, len(r.buffers))
	for mk, items := range r.buffers {
		if len(items) > 0 {
			months = append(months, mk)
		}
	}
	sort.Strings(months)

	for _, mk := range months {
		items := r.buffers[mk]
		mode := partition.MergeModeMerge
		if r.params.RewriteOnce && !r.flushed[mk] {
			mode = partition.MergeModeReplace
		}

		if !r.params.DryRun {
			if _, err := r.job.writer.Merge(ctx, mk, items, mode); err != nil {
				return fmt.Errorf("flush: month %s: %w", mk, err)
			}
		}

		r.flushed[mk] = true
		r.migrated += len(items)
		r.buffered -= len(items)
		delete(r.buffers, mk)

		r.job.log.Info().
			Str("month_key", mk).
			Str("mode", string(mode)).
			Int("items", len(items)).
			Bool("dry_run", r.params.DryRun).
			Msg("Month flushed")
	}
	return nil
}
