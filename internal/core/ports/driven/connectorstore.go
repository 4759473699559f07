package driven

import (
	"context"

	"github.com/gen-mind/echo-mind/internal/core/domain"
)

// ConnectorStore holds connector definitions: which providers are
// configured, with what credentials and options.
type ConnectorStore interface {
	// List returns all configured connectors.
	List(ctx context.Context) ([]domain.Connector, error)

	// Get returns one connector by ID, or domain.ErrNotFound.
	Get(ctx context.Context, id string) (domain.Connector, error)
}
