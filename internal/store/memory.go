package store

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// InMemoryRunStore implements RunStore for testing and development.
type InMemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]Run
}

// NewInMemoryRunStore creates a new in-memory store.
func NewInMemoryRunStore() *InMemoryRunStore {
	return &InMemoryRunStore{runs: make(map[string]Run)}
}

// SaveRun stores a copy of run.
func (s *InMemoryRunStore) SaveRun(ctx context.Context, run Run) (string, error) {
	if err := prepare(&run); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = copyRun(run)
	return run.ID, nil
}

// GetRun retrieves a run by ID. Returns nil if not found.
func (s *InMemoryRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[id]
	if !exists {
		return nil, nil
	}
	run = copyRun(run)
	return &run, nil
}

// ListRuns returns matching runs, newest first.
func (s *InMemoryRunStore) ListRuns(ctx context.Context, filter Filter) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []Run
	for _, run := range s.runs {
		if filter.match(run) {
			run = copyRun(run)
			run.Pairs = nil
			results = append(results, run)
		}
	}
	slices.SortFunc(results, func(a, b Run) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}
	return results, nil
}

// DeleteRun removes a run. Deleting an unknown ID is not an error.
func (s *InMemoryRunStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runs, id)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryRunStore) Close() error {
	return nil
}

func copyRun(run Run) Run {
	run.Options = maps.Clone(run.Options)
	run.Pairs = slices.Clone(run.Pairs)
	return run
}
