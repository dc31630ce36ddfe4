package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/statement-partitions/internal/migration"
)

var (
	// ErrNotFound is returned when no run has the requested ID.
	ErrNotFound = errors.New("migration run not found")
	// ErrQueueFull is returned when the pending buffer has no room.
	ErrQueueFull = errors.New("migration queue is full")
	// ErrClosed is returned once the queue has been stopped.
	ErrClosed = errors.New("migration queue is closed")
)

// Status represents the current status of a migration run.
type Status string

const (
	// StatusPending indicates the run is waiting for the worker.
	StatusPending Status = "pending"
	// StatusRunning indicates the run is currently executing.
	StatusRunning Status = "running"
	// StatusCompleted indicates the run reached the end of the source.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the run stopped early; LastDocID in Result is the resume point.
	StatusFailed Status = "failed"
)

// Run records one migration invocation, synchronous or queued.
type Run struct {
	ID     string           `json:"id"`
	Params migration.Params `json:"params"`
	Status Status           `json:"status"`

	// Result is the job's final report, kept for failed runs as well.
	Result *migration.Result `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Runner executes one migration.
type Runner interface {
	Run(ctx context.Context, p migration.Params) (*migration.Result, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, p migration.Params) (*migration.Result, error)

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, p migration.Params) (*migration.Result, error) {
	return f(ctx, p)
}

// Store keeps the history of migration runs.
type Store interface {
	// SaveRun saves or updates a run.
	SaveRun(ctx context.Context, run *Run) error

	// GetRun retrieves a run by ID.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context, filter Filter) ([]*Run, error)
}

// Filter narrows ListRuns.
type Filter struct {
	Status Status
	Limit  int
}
