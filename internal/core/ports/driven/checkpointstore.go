package driven

import "context"

// CheckpointStore persists serialized checkpoints keyed by connector ID.
type CheckpointStore interface {
	// Save upserts the serialized checkpoint for a connector.
	Save(ctx context.Context, connectorID string, data []byte) error

	// Get returns the stored checkpoint, or domain.ErrNotFound when the
	// connector has never completed a persisted run.
	Get(ctx context.Context, connectorID string) ([]byte, error)

	// Delete removes the checkpoint so the next run starts from scratch.
	// Deleting a missing checkpoint is not an error.
	Delete(ctx context.Context, connectorID string) error
}
