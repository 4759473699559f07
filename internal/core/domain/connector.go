package domain

import "time"

// Connector represents a configured link to one external content system.
// Each connector produces documents via a provider and owns one checkpoint.
type Connector struct {
	// ID is the unique identifier for the connector.
	ID string

	// Provider identifies the provider type (e.g. "google_drive", "msgraph").
	Provider string

	// Name is the human-readable name for this connector.
	Name string

	// Config contains provider-specific configuration.
	Config Config

	// CreatedAt is when the connector was created.
	CreatedAt time.Time

	// UpdatedAt is when the connector was last updated.
	UpdatedAt time.Time
}
