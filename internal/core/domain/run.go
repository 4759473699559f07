package domain

import "time"

// SyncRun records one execution of a connector's sync pipeline.
type SyncRun struct {
	// ID is the unique identifier for the run.
	ID string

	// ConnectorID identifies the connector that was synced.
	ConnectorID string

	// StartedAt is when the run began.
	StartedAt time.Time

	// FinishedAt is when the run ended, nil while it is in flight.
	FinishedAt *time.Time

	// Documents counts items processed for the first time during the run.
	Documents int

	// Errors counts per-item recoverable failures during the run.
	Errors int

	// HasMore reports whether the run ended with work remaining.
	HasMore bool

	// Failure holds the run-aborting error message, empty on success.
	Failure string
}
