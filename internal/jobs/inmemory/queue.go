package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-partitions/internal/jobs"
	"github.com/dvloznov/statement-partitions/internal/migration"
)

// Queue runs migrations one at a time and records each run in a Store.
// Synchronous calls to Run and queued submissions share the same lock, so two
// migrations never read-modify-write the same partitions concurrently.
type Queue struct {
	runner    jobs.Runner
	store     jobs.Store
	pending   chan *jobs.Run
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	exec      sync.Mutex
	now       func() time.Time
	log       zerolog.Logger
}

// NewQueue creates a queue. bufferSize bounds how many submissions may wait
// for the worker before Submit reports ErrQueueFull.
func NewQueue(bufferSize int, runner jobs.Runner, store jobs.Store, log zerolog.Logger) *Queue {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Queue{
		runner:    runner,
		store:     store,
		pending:   make(chan *jobs.Run, bufferSize),
		closeChan: make(chan struct{}),
		now:       time.Now,
		log:       log,
	}
}

func (q *Queue) newRun(p migration.Params) *jobs.Run {
	return &jobs.Run{
		ID:        uuid.NewString(),
		Params:    p,
		Status:    jobs.StatusPending,
		CreatedAt: q.now(),
	}
}

// Submit validates p and enqueues it for the background worker.
func (q *Queue) Submit(ctx context.Context, p migration.Params) (*jobs.Run, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("Submit: %w", err)
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return nil, fmt.Errorf("Submit: %w", jobs.ErrClosed)
	}

	run := q.newRun(p)
	if err := q.store.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("Submit: saving run: %w", err)
	}

	select {
	case q.pending <- run:
		return run, nil
	default:
		q.finish(ctx, run, nil, jobs.ErrQueueFull)
		return nil, fmt.Errorf("Submit: %w", jobs.ErrQueueFull)
	}
}

// Run executes p synchronously, waiting for any migration already in progress.
// It fails with ErrClosed once the queue has been stopped.
func (q *Queue) Run(ctx context.Context, p migration.Params) (*migration.Result, error) {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("Run: %w", jobs.ErrClosed)
	}

	run := q.newRun(p)
	if err := q.store.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("Run: saving run: %w", err)
	}
	return q.execute(ctx, run)
}

// Get returns a recorded run.
func (q *Queue) Get(ctx context.Context, id string) (*jobs.Run, error) {
	return q.store.GetRun(ctx, id)
}

// List returns recorded runs newest first.
func (q *Queue) List(ctx context.Context, filter jobs.Filter) ([]*jobs.Run, error) {
	return q.store.ListRuns(ctx, filter)
}

// Start launches the background worker.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return fmt.Errorf("Start: %w", jobs.ErrClosed)
	}

	q.wg.Add(1)
	go q.worker(ctx)
	return nil
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case run := <-q.pending:
			_, _ = q.execute(ctx, run)
		}
	}
}

func (q *Queue) execute(ctx context.Context, run *jobs.Run) (*migration.Result, error) {
	q.exec.Lock()
	defer q.exec.Unlock()

	started := q.now()
	run.Status = jobs.StatusRunning
	run.StartedAt = &started
	_ = q.store.SaveRun(ctx, run)

	q.log.Info().Str("run_id", run.ID).Interface("params", run.Params).Msg("Migration run started")

	res, err := q.runner.Run(ctx, run.Params)
	q.finish(ctx, run, res, err)
	return res, err
}

func (q *Queue) finish(ctx context.Context, run *jobs.Run, res *migration.Result, err error) {
	completed := q.now()
	run.CompletedAt = &completed
	run.Result = res
	if err != nil {
		run.Status = jobs.StatusFailed
		run.Error = err.Error()
	} else {
		run.Status = jobs.StatusCompleted
		run.Error = ""
	}

	// The run's own context may already be cancelled; the record must still land.
	_ = q.store.SaveRun(context.WithoutCancel(ctx), run)

	event := q.log.Info()
	if err != nil {
		event = q.log.Error().Err(err)
	}
	if res != nil {
		event = event.Int("migrated", res.Migrated).Str("last_doc_id", res.LastDocID)
	}
	event.Str("run_id", run.ID).Str("status", string(run.Status)).Msg("Migration run finished")
}

// Stop stops the worker and waits for an in-flight run to complete.
// Submissions still waiting in the buffer are marked failed.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	for {
		select {
		case run := <-q.pending:
			q.finish(ctx, run, nil, jobs.ErrClosed)
		default:
			return nil
		}
	}
}

// Close stops the queue without a deadline.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Runner = (*Queue)(nil)
