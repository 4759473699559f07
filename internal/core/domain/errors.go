package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors represent sync failures the orchestration layer reacts to.
// Fatal conditions use sentinel errors; per-item and rate-limit conditions
// use typed errors carrying the data the caller needs.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedProvider indicates an unknown provider name.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrSyncInProgress indicates a sync is already running for a connector.
	ErrSyncInProgress = errors.New("sync in progress")

	// ErrProviderClosed indicates the provider has been closed.
	ErrProviderClosed = errors.New("provider closed")

	// ErrUnknownCheckpointType indicates a serialized checkpoint carries an
	// unrecognised type discriminator. Never silently defaulted.
	ErrUnknownCheckpointType = errors.New("unknown checkpoint type")
)

// AuthenticationError indicates missing or invalid credentials.
// Fatal for the whole run: no partial credential is usable.
type AuthenticationError struct {
	Provider string
	Err      error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: authentication failed: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: authentication failed", e.Provider)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// RateLimitError indicates the source API rejected a request for quota
// reasons. It aborts the current batch; the checkpoint remains valid to
// resume from and the caller decides backoff using RetryAfter.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limited, retry after %s", e.Provider, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// DownloadError indicates a single item's content could not be fetched.
// Per-item and recoverable: the run skips the item and continues.
type DownloadError struct {
	SourceID string
	Err      error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %v", e.SourceID, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ExportError indicates a derived-format export failed. Per-item and
// recoverable, like DownloadError.
type ExportError struct {
	SourceID string
	Err      error
	Hint     string
}

func (e *ExportError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("export %s: %v (%s)", e.SourceID, e.Err, e.Hint)
	}
	return fmt.Sprintf("export %s: %v", e.SourceID, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// FileTooLargeError indicates an item exceeds the configured size limit.
// Per-item and recoverable.
type FileTooLargeError struct {
	SourceID string
	Size     int64
	Limit    int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file %s is %d bytes, exceeds limit of %d bytes", e.SourceID, e.Size, e.Limit)
}

// IsRecoverable reports whether the error is a per-item failure that the
// sync loop should account for and skip rather than abort on.
func IsRecoverable(err error) bool {
	var de *DownloadError
	var ee *ExportError
	var fe *FileTooLargeError
	return errors.As(err, &de) || errors.As(err, &ee) || errors.As(err, &fe)
}

// IsRateLimited reports whether the error carries a rate-limit condition.
func IsRateLimited(err error) bool {
	var re *RateLimitError
	return errors.As(err, &re)
}
