// Package syncer implements the sync loop shared by every provider:
// consume a change stream, dedupe against the checkpoint, download changed
// content and emit the resulting item stream. Providers supply change
// detection and download; the loop owns error accounting and progress.
package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/gen-mind/echo-mind/internal/checkpoint"
	"github.com/gen-mind/echo-mind/internal/core/domain"
	"github.com/gen-mind/echo-mind/internal/logger"
)

// Complete is sent on a change producer's error channel to mark a clean end
// of the pass. HasMore reports whether another pass would find more work.
type Complete struct {
	HasMore bool
}

// Error implements the error interface so Complete can travel the error
// channel.
func (Complete) Error() string {
	return "change feed complete"
}

// IsComplete checks if an error is actually a successful completion.
func IsComplete(err error) (*Complete, bool) {
	var c *Complete
	if errors.As(err, &c) {
		return c, true
	}
	return nil, false
}

// Downloader materialises the content of one changed item.
type Downloader func(ctx context.Context, file *domain.FileMetadata) (*domain.DownloadedFile, error)

// Run consumes the change stream and produces the item stream, mutating the
// checkpoint item by item so the caller can persist it at any time.
//
// Deletions are forwarded immediately and never deduped. Creates and updates
// pass through the checkpoint's dedupe set; already-seen items are skipped.
// Per-item recoverable failures increment ErrorCount and the loop continues;
// any other error aborts the run, leaving the checkpoint valid to resume
// from. HasMore is updated only on a clean end of the pass.
func Run(
	ctx context.Context,
	cp checkpoint.Checkpoint,
	changes <-chan domain.FileChange,
	changeErrs <-chan error,
	download Downloader,
) (<-chan domain.SyncItem, <-chan error) {
	items := make(chan domain.SyncItem)
	errs := make(chan error, 1)

	base := cp.Base()
	base.LastSyncStart = time.Now().UTC()

	go func() {
		defer close(items)
		defer close(errs)

		hasMore := false

		for changes != nil || changeErrs != nil {
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return

			case err, ok := <-changeErrs:
				if !ok {
					changeErrs = nil
					continue
				}
				if c, done := IsComplete(err); done {
					hasMore = c.HasMore
					continue
				}
				errs <- err
				return

			case change, ok := <-changes:
				if !ok {
					changes = nil
					continue
				}

				if change.Action == domain.ChangeDelete {
					// Deletions bypass dedupe: a delete arriving after the
					// item was downloaded must still reach the consumer.
					if !send(ctx, items, errs, domain.DeletedItem(change.SourceID)) {
						return
					}
					continue
				}

				if change.File == nil {
					continue
				}
				if !cp.MarkRetrieved(change.SourceID) {
					logger.Debug("skipping already-processed item %s", change.SourceID)
					continue
				}

				file, err := download(ctx, change.File)
				if err != nil {
					if domain.IsRecoverable(err) {
						base.ErrorCount++
						logger.Warn("skipping item %s: %v", change.SourceID, err)
						continue
					}
					errs <- err
					return
				}

				if !send(ctx, items, errs, domain.DownloadedItem(file)) {
					return
				}
			}
		}

		base.HasMore = hasMore
	}()

	return items, errs
}

func send(ctx context.Context, items chan<- domain.SyncItem, errs chan<- error, item domain.SyncItem) bool {
	select {
	case items <- item:
		return true
	case <-ctx.Done():
		errs <- ctx.Err()
		return false
	}
}
