package driven

import (
	"context"

	"github.com/gen-mind/echo-mind/internal/checkpoint"
	"github.com/gen-mind/echo-mind/internal/core/domain"
)

// Provider implements the sync protocol for one external content system.
// Each provider type (google_drive, msgraph, gmail, ...) implements this
// interface; the orchestration loop is generic over it.
//
// A provider instance services at most one in-flight Sync call at a time;
// the checkpoint passed in is exclusively owned by that call. Serialising
// runs per connector is the caller's job.
type Provider interface {
	// Name returns the stable provider identifier.
	Name() string

	// Authenticate establishes a usable credential from the config,
	// refreshing if near expiry. Returns *domain.AuthenticationError on
	// missing or invalid credentials.
	Authenticate(ctx context.Context, cfg domain.Config) error

	// CheckConnection is a cheap liveness probe. It never returns an
	// error; failures report false.
	CheckConnection(ctx context.Context) bool

	// Changes produces a lazy, finite-per-call, non-restartable sequence
	// of change events, mutating the checkpoint's cursors as pages are
	// consumed. The channels close when the sequence is exhausted; fatal
	// errors arrive on the error channel.
	Changes(ctx context.Context, cfg domain.Config, cp checkpoint.Checkpoint) (<-chan domain.FileChange, <-chan error)

	// DownloadFile materialises the full content of one item, enforcing
	// the configured size limit before and after transfer.
	DownloadFile(ctx context.Context, file *domain.FileMetadata, cfg domain.Config) (*domain.DownloadedFile, error)

	// StreamToStorage delivers the same content to a storage sink in
	// bounded chunks where the source API allows true streaming.
	StreamToStorage(ctx context.Context, file *domain.FileMetadata, cfg domain.Config, storage StorageClient, bucket, key string) (*domain.StreamResult, error)

	// FilePermissions fetches and normalises the item's ACL. Best effort:
	// any failure degrades to domain.EmptyAccess rather than propagating.
	FilePermissions(ctx context.Context, file *domain.FileMetadata, cfg domain.Config) domain.ExternalAccess

	// Sync drives the full authenticate → detect → download pipeline and
	// returns the lazy sequence of downloaded and deleted files. The
	// checkpoint is mutated item by item, so a partially consumed
	// sequence leaves it valid and resumable.
	Sync(ctx context.Context, cfg domain.Config, cp checkpoint.Checkpoint) (<-chan domain.SyncItem, <-chan error)

	// CreateCheckpoint returns a fresh zero-value checkpoint for this
	// provider.
	CreateCheckpoint() checkpoint.Checkpoint

	// Close releases any self-owned clients. Safe to call more than once.
	Close() error
}
