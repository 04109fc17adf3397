// Package memory provides an in-memory ResultStore.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/pregelhq/pregel/store"
	"golang.org/x/xerrors"
)

// Compile-time check for ensuring InMemoryStore implements store.ResultStore.
var _ store.ResultStore = (*InMemoryStore)(nil)

// InMemoryStore keeps job results in memory.
type InMemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]map[string]store.VertexResult
}

// NewInMemoryStore returns an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{jobs: make(map[string]map[string]store.VertexResult)}
}

// StoreResults implements store.ResultStore.
func (s *InMemoryStore) StoreResults(_ context.Context, jobID string, results []store.VertexResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.jobs[jobID]
	if job == nil {
		job = make(map[string]store.VertexResult, len(results))
		s.jobs[jobID] = job
	}

	for _, res := range results {
		res.Value = append([]byte(nil), res.Value...)
		job[res.VertexID] = res
	}
	return nil
}

// Results implements store.ResultStore.
func (s *InMemoryStore) Results(_ context.Context, jobID string) ([]store.VertexResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, xerrors.Errorf("results for job %q: %w", jobID, store.ErrNotFound)
	}

	list := make([]store.VertexResult, 0, len(job))
	for _, res := range job {
		list = append(list, res)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].VertexID < list[j].VertexID })
	return list, nil
}

// DeleteResults implements store.ResultStore.
func (s *InMemoryStore) DeleteResults(_ context.Context, jobID string) error {
	s.mu.Lock()
	delete(s.jobs, jobID)
	s.mu.Unlock()
	return nil
}
