// Package memory provides in-memory implementations of the driven storage
// ports, used in tests and as lightweight defaults.
package memory

import (
	"context"
	"sync"

	"github.com/gen-mind/echo-mind/internal/core/domain"
	"github.com/gen-mind/echo-mind/internal/core/ports/driven"
)

// Ensure CheckpointStore implements the interface.
var _ driven.CheckpointStore = (*CheckpointStore)(nil)

// CheckpointStore is an in-memory implementation of driven.CheckpointStore.
type CheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[string][]byte
}

// NewCheckpointStore creates a new in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		checkpoints: make(map[string][]byte),
	}
}

// Save stores or updates the serialized checkpoint for a connector.
func (s *CheckpointStore) Save(_ context.Context, connectorID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	s.checkpoints[connectorID] = stored
	return nil
}

// Get retrieves the serialized checkpoint for a connector.
func (s *CheckpointStore) Get(_ context.Context, connectorID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.checkpoints[connectorID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Delete removes the checkpoint for a connector.
func (s *CheckpointStore) Delete(_ context.Context, connectorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, connectorID)
	return nil
}
