// Package domain holds the value types shared across the sync engine:
// transfer records, the external access model, connector configuration and
// the error taxonomy. Types here have no dependencies on providers or
// adapters.
package domain
