package googledrive

import (
	"context"
	"fmt"

	"github.com/gen-mind/echo-mind/internal/checkpoint"
	"github.com/gen-mind/echo-mind/internal/core/domain"
	"github.com/gen-mind/echo-mind/internal/logger"
)

// incrementalChanges pages the changes feed from the stored cursor,
// translating removed entries to deletes and everything else to updates.
// The cursor is replaced page by page so losing power between pages cannot
// lose progress: an intermediate nextPageToken resumes mid-feed, and the
// final newStartPageToken becomes the cursor for the next run.
func (p *Provider) incrementalChanges(
	ctx context.Context,
	cfg *Config,
	cp *checkpoint.DriveCheckpoint,
	out chan<- domain.FileChange,
) error {
	pageToken := cp.ChangesStartPageToken

	for pageToken != "" {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}

		resp, err := p.svc.Changes.List(pageToken).
			PageSize(cfg.PageSize).
			Fields("nextPageToken, newStartPageToken, changes(fileId, removed, file("+fileFields+"))").
			IncludeItemsFromAllDrives(cfg.IncludeSharedDrives).
			SupportsAllDrives(true).
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("list changes: %w", p.wrapErr(err))
		}

		for _, change := range resp.Changes {
			if change.Removed || (change.File != nil && change.File.Trashed) {
				if !emit(ctx, out, domain.FileChange{SourceID: change.FileId, Action: domain.ChangeDelete}) {
					return ctx.Err()
				}
				continue
			}
			if change.File == nil || change.File.MimeType == mimeTypeFolder {
				continue
			}
			if !emit(ctx, out, domain.FileChange{
				SourceID: change.FileId,
				Action:   domain.ChangeUpdate,
				File:     fileToMetadata(change.File),
			}) {
				return ctx.Err()
			}
		}

		if resp.NextPageToken != "" {
			pageToken = resp.NextPageToken
			cp.ChangesStartPageToken = resp.NextPageToken
			continue
		}

		logger.Debug("changes feed exhausted, next cursor %q", resp.NewStartPageToken)
		cp.ChangesStartPageToken = resp.NewStartPageToken
		pageToken = ""
	}

	return nil
}

// emit sends one change, honouring cancellation.
func emit(ctx context.Context, out chan<- domain.FileChange, change domain.FileChange) bool {
	select {
	case out <- change:
		return true
	case <-ctx.Done():
		return false
	}
}
