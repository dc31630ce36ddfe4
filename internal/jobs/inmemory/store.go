package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/statement-partitions/internal/jobs"
)

// Store is an in-memory implementation of jobs.Store.
// History is lost on restart.
type Store struct {
	mu   sync.RWMutex
	runs map[string]*jobs.Run
}

// NewStore creates a new in-memory run store.
func NewStore() *Store {
	return &Store{runs: make(map[string]*jobs.Run)}
}

// SaveRun saves or updates a run.
func (s *Store) SaveRun(ctx context.Context, run *jobs.Run) error {
	if run.ID == "" {
		return fmt.Errorf("SaveRun: run ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = clone(run)
	return nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*jobs.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("GetRun: %s: %w", id, jobs.ErrNotFound)
	}
	return clone(run), nil
}

// ListRuns returns runs newest first, optionally filtered by status.
func (s *Store) ListRuns(ctx context.Context, filter jobs.Filter) ([]*jobs.Run, error) {
	s.mu.RLock()
	result := make([]*jobs.Run, 0, len(s.runs))
	for _, run := range s.runs {
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		result = append(result, clone(run))
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// clone copies run deeply enough that callers cannot mutate stored state.
func clone(run *jobs.Run) *jobs.Run {
	c := *run
	if run.Result != nil {
		res := *run.Result
		c.Result = &res
	}
	if run.StartedAt != nil {
		t := *run.StartedAt
		c.StartedAt = &t
	}
	if run.CompletedAt != nil {
		t := *run.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

var _ jobs.Store = (*Store)(nil)
