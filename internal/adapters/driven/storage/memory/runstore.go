package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/gen-mind/echo-mind/internal/core/domain"
	"github.com/gen-mind/echo-mind/internal/core/ports/driven"
)

// Ensure RunStore implements the interface.
var _ driven.RunStore = (*RunStore)(nil)

// RunStore is an in-memory implementation of driven.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]domain.SyncRun
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]domain.SyncRun),
	}
}

// Save stores or updates a run record.
func (s *RunStore) Save(_ context.Context, run domain.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	return nil
}

// ListByConnector returns the runs for a connector, most recent first.
func (s *RunStore) ListByConnector(_ context.Context, connectorID string) ([]domain.SyncRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.SyncRun
	for _, run := range s.runs {
		if run.ConnectorID == connectorID {
			out = append(out, run)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}
