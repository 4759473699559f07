// Package driving defines the ports through which the outside world drives
// the sync engine.
package driving

import "context"

// SyncStatus reports the live state of a connector's sync.
type SyncStatus struct {
	// ConnectorID identifies the connector.
	ConnectorID string

	// Running reports whether a sync is currently in flight.
	Running bool

	// DocumentsProcessed counts items processed during the current run.
	DocumentsProcessed int

	// ErrorCount counts per-item recoverable failures during the current run.
	ErrorCount int

	// HasMore reports whether the last completed run left work remaining.
	HasMore bool
}

// SyncOrchestrator coordinates connector synchronisation.
type SyncOrchestrator interface {
	// Sync runs one sync pass for a connector.
	Sync(ctx context.Context, connectorID string) error

	// SyncAll runs one sync pass for every configured connector.
	SyncAll(ctx context.Context) error

	// Status returns the sync status for a connector.
	Status(ctx context.Context, connectorID string) (*SyncStatus, error)
}
