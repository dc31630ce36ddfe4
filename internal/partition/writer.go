package partition

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-partitions/internal/blobstore"
	"github.com/dvloznov/statement-partitions/internal/domain"
)

// Writer merges records into month partitions. Concurrent writers to the
// same month are last-writer-wins; no locking is attempted.
type Writer struct {
	store  blobstore.Store
	prefix string
	now    func() time.Time
	log    zerolog.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithClock overrides the clock used for meta.updatedAt.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// WithLogger sets the writer's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(w *Writer) { w.log = log }
}

// NewWriter creates a Writer storing partitions under prefix.
func NewWriter(store blobstore.Store, prefix string, opts ...Option) *Writer {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	w := &Writer{
		store:  store,
		prefix: prefix,
		now:    time.Now,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Path returns the object name for monthKey.
func (w *Writer) Path(monthKey string) string {
	return path.Join(w.prefix, monthKey+".json")
}

// Merge writes items into the partition for monthKey and returns the number
// of items the partition holds afterwards.
func (w *Writer) Merge(ctx context.Context, monthKey string, items map[string]domain.Record, mode MergeMode) (int, error) {
	if !domain.IsMonthKey(monthKey) {
		return 0, fmt.Errorf("Merge: %q: %w", monthKey, ErrInvalidMonthKey)
	}

	merged := make(map[string]domain.Record, len(items))
	if mode != MergeModeReplace {
		for id, item := range w.existing(ctx, monthKey) {
			merged[id] = item
		}
	}
	for id, item := range items {
		merged[id] = item
	}

	data, err := Encode(&Partition{
		Meta:  Meta{UpdatedAt: w.now().UnixMilli()},
		Items: merged,
	})
	if err != nil {
		return 0, fmt.Errorf("Merge: %w", err)
	}

	name := w.Path(monthKey)
	if err := w.store.Write(ctx, name, data, ContentType); err != nil {
		return 0, fmt.Errorf("Merge: writing %s: %w", name, err)
	}

	w.log.Debug().
		Str("month_key", monthKey).
		Str("mode", string(mode)).
		Int("new_items", len(items)).
		Int("items", len(merged)).
		Msg("Partition written")

	return len(merged), nil
}

// existing reads the stored items, treating any failure as an empty partition.
func (w *Writer) existing(ctx context.Context, monthKey string) map[string]domain.Record {
	p, err := w.Load(ctx, monthKey)
	if err != nil {
		if !errors.Is(err, blobstore.ErrNotExist) {
			w.log.Warn().Err(err).Str("month_key", monthKey).Msg("Unreadable partition, starting empty")
		}
		return nil
	}
	return p.Items
}

// Load reads and strictly decodes the partition for monthKey.
func (w *Writer) Load(ctx context.Context, monthKey string) (*Partition, error) {
	if !domain.IsMonthKey(monthKey) {
		return nil, fmt.Errorf("Load: %q: %w", monthKey, ErrInvalidMonthKey)
	}

	name := w.Path(monthKey)
	data, err := w.store.Read(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("Load: reading %s: %w", name, err)
	}

	p, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("Load: %s: %w", name, err)
	}
	return p, nil
}
