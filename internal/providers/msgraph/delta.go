package msgraph

import (
	"context"
	"fmt"

	"github.com/gen-mind/echo-mind/internal/core/domain"
)

// deltaURL builds the first request of a delta walk: the stored link when
// resuming, or the drive's delta root for an initial enumeration.
func deltaURL(driveID, link string) string {
	if link != "" {
		return link
	}
	return fmt.Sprintf("/drives/%s/root/delta", driveID)
}

// walkDelta pages one drive's delta feed, emitting change events and
// advancing the cursor page by page through setCursor: an intermediate
// nextLink is itself a resumable cursor, so losing power between pages
// cannot lose progress. The caller decides where the cursor lands, the
// single-drive slot or a per-drive map entry.
func (p *Provider) walkDelta(
	ctx context.Context,
	cfg *Config,
	driveID string,
	startLink string,
	action domain.ChangeAction,
	setCursor func(link string),
	out chan<- domain.FileChange,
) error {
	url := deltaURL(driveID, startLink)

	for url != "" {
		var resp deltaResponse
		if err := p.client.getJSON(ctx, url, &resp); err != nil {
			return err
		}

		for i := range resp.Value {
			item := &resp.Value[i]

			if item.Deleted != nil {
				if !emit(ctx, out, domain.FileChange{SourceID: item.ID, Action: domain.ChangeDelete}) {
					return ctx.Err()
				}
				continue
			}
			if item.Folder != nil || item.File == nil {
				continue
			}
			if !underFolder(item, cfg.FolderPath) {
				continue
			}
			if !emit(ctx, out, domain.FileChange{
				SourceID: item.ID,
				Action:   action,
				File:     itemToMetadata(item, driveID),
			}) {
				return ctx.Err()
			}
		}

		if resp.NextLink != "" {
			url = resp.NextLink
			setCursor(resp.NextLink)
			continue
		}

		if resp.DeltaLink != "" {
			setCursor(resp.DeltaLink)
		}
		url = ""
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
