package driven

import (
	"context"

	"github.com/gen-mind/echo-mind/internal/core/domain"
)

// RunStore persists the history of sync runs.
type RunStore interface {
	// Save stores or updates a run record.
	Save(ctx context.Context, run domain.SyncRun) error

	// ListByConnector returns the runs for a connector, most recent first.
	ListByConnector(ctx context.Context, connectorID string) ([]domain.SyncRun, error)
}
