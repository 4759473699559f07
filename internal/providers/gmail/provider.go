// Package gmail implements the sync provider for Gmail mailboxes via the
// History API: a full message listing on first sync, history-based
// incremental detection afterwards.
package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/gen-mind/echo-mind/internal/checkpoint"
	"github.com/gen-mind/echo-mind/internal/core/domain"
	"github.com/gen-mind/echo-mind/internal/core/ports/driven"
	"github.com/gen-mind/echo-mind/internal/logger"
	"github.com/gen-mind/echo-mind/internal/providers/google"
	"github.com/gen-mind/echo-mind/internal/providers/syncer"
)

// ProviderName is the stable identifier for this provider.
const ProviderName = "gmail"

// mimeTypeRFC822 is the MIME type of raw downloaded messages.
const mimeTypeRFC822 = "message/rfc822"

const defaultPageSize = 100

// Ensure Provider implements the driven port.
var _ driven.Provider = (*Provider)(nil)

// Provider syncs messages from a Gmail mailbox.
type Provider struct {
	svc     *gmailapi.Service
	limiter *google.RateLimiter
	closed  bool
}

// New creates a Gmail provider.
func New() *Provider {
	return &Provider{limiter: google.NewRateLimiter(google.ServiceGmail)}
}

// Name returns the stable provider identifier.
func (p *Provider) Name() string { return ProviderName }

// Authenticate builds the Gmail service from the connector credentials.
func (p *Provider) Authenticate(ctx context.Context, cfg domain.Config) error {
	if p.closed {
		return domain.ErrProviderClosed
	}
	ts, err := google.TokenSourceFromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	svc, err := google.NewGmailService(ctx, ts)
	if err != nil {
		return &domain.AuthenticationError{Provider: ProviderName, Err: err}
	}
	p.svc = svc
	return nil
}

// CheckConnection probes the mailbox profile.
func (p *Provider) CheckConnection(ctx context.Context) bool {
	if p.svc == nil {
		return false
	}
	_, err := p.svc.Users.GetProfile("me").Context(ctx).Do()
	return err == nil
}

// CreateCheckpoint returns a fresh Gmail checkpoint.
func (p *Provider) CreateCheckpoint() checkpoint.Checkpoint {
	return checkpoint.NewGmailCheckpoint()
}

// Changes produces the change stream. A known history ID selects
// incremental mode; otherwise the full mailbox listing runs, with the
// profile's history ID captured up front and promoted to the incremental
// cursor once the listing drains, so nothing between listing and first
// incremental run is lost.
func (p *Provider) Changes(ctx context.Context, cfg domain.Config, cp checkpoint.Checkpoint) (<-chan domain.FileChange, <-chan error) {
	out := make(chan domain.FileChange)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		if p.svc == nil {
			errs <- &domain.AuthenticationError{Provider: ProviderName, Err: errors.New("not authenticated")}
			return
		}

		gcp := coerceCheckpoint(cp)

		var err error
		if gcp.Incremental() {
			err = p.historyChanges(ctx, gcp, out)
		} else {
			err = p.fullListing(ctx, gcp, out)
		}
		if err != nil {
			errs <- err
			return
		}
		errs <- &syncer.Complete{HasMore: false}
	}()

	return out, errs
}

// fullListing pages every message in the mailbox, resuming from the stored
// page token after an interruption.
func (p *Provider) fullListing(ctx context.Context, cp *checkpoint.GmailCheckpoint, out chan<- domain.FileChange) error {
	// Capture the history cursor before listing so changes made during the
	// listing surface in the first incremental run. It stays pending until
	// the listing drains; an abandoned listing resumes here with the stored
	// messages-list page token.
	if cp.PendingHistoryID == 0 {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		profile, err := p.svc.Users.GetProfile("me").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("get profile: %w", p.wrapErr(err))
		}
		cp.PendingHistoryID = profile.HistoryId
		logger.Debug("captured history cursor %d", profile.HistoryId)
	}

	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		resp, err := p.svc.Users.Messages.List("me").
			MaxResults(defaultPageSize).
			PageToken(cp.PageToken).
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("list messages: %w", p.wrapErr(err))
		}

		for _, msg := range resp.Messages {
			if !emit(ctx, out, domain.FileChange{
				SourceID: msg.Id,
				Action:   domain.ChangeCreate,
				File:     &domain.FileMetadata{SourceID: msg.Id, MIMEType: mimeTypeRFC822},
			}) {
				return ctx.Err()
			}
		}

		cp.PageToken = resp.NextPageToken
		if resp.NextPageToken == "" {
			cp.HistoryID = cp.PendingHistoryID
			cp.PendingHistoryID = 0
			return nil
		}
	}
}

// historyChanges walks the history feed from the stored cursor. An expired
// cursor resets the checkpoint to full-listing mode and aborts so the next
// run starts over.
func (p *Provider) historyChanges(ctx context.Context, cp *checkpoint.GmailCheckpoint, out chan<- domain.FileChange) error {
	pageToken := cp.PageToken
	lastHistoryID := cp.HistoryID

	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		call := p.svc.Users.History.List("me").
			StartHistoryId(cp.HistoryID).
			MaxResults(defaultPageSize)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			if google.IsHistoryIDExpired(err) {
				logger.Warn("history cursor expired, resetting to full listing")
				cp.HistoryID = 0
				cp.PageToken = ""
				return fmt.Errorf("history listing: %w", google.ErrHistoryIDExpired)
			}
			return fmt.Errorf("list history: %w", p.wrapErr(err))
		}

		for _, h := range resp.History {
			for _, added := range h.MessagesAdded {
				if added.Message == nil {
					continue
				}
				if !emit(ctx, out, domain.FileChange{
					SourceID: added.Message.Id,
					Action:   domain.ChangeCreate,
					File:     &domain.FileMetadata{SourceID: added.Message.Id, MIMEType: mimeTypeRFC822},
				}) {
					return ctx.Err()
				}
			}
			for _, deleted := range h.MessagesDeleted {
				if deleted.Message == nil {
					continue
				}
				if !emit(ctx, out, domain.FileChange{SourceID: deleted.Message.Id, Action: domain.ChangeDelete}) {
					return ctx.Err()
				}
			}
		}
		if resp.HistoryId > lastHistoryID {
			lastHistoryID = resp.HistoryId
		}

		pageToken = resp.NextPageToken
		cp.PageToken = resp.NextPageToken
		if resp.NextPageToken == "" {
			cp.HistoryID = lastHistoryID
			return nil
		}
	}
}

// DownloadFile fetches the raw RFC 822 message.
func (p *Provider) DownloadFile(ctx context.Context, file *domain.FileMetadata, cfg domain.Config) (*domain.DownloadedFile, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	msg, err := p.svc.Users.Messages.Get("me", file.SourceID).Format("raw").Context(ctx).Do()
	if err != nil {
		return nil, &domain.DownloadError{SourceID: file.SourceID, Err: p.wrapErr(err)}
	}

	content, err := base64.URLEncoding.DecodeString(msg.Raw)
	if err != nil {
		return nil, &domain.DownloadError{SourceID: file.SourceID, Err: fmt.Errorf("decode raw message: %w", err)}
	}

	downloaded := &domain.DownloadedFile{
		SourceID: file.SourceID,
		Name:     fmt.Sprintf("%s.eml", file.SourceID),
		Content:  content,
		MIMEType: mimeTypeRFC822,
	}
	if msg.InternalDate > 0 {
		t := time.UnixMilli(msg.InternalDate).UTC()
		downloaded.ModifiedAt = &t
	}
	return downloaded, nil
}

// StreamToStorage delivers the raw message to the storage sink. Gmail has no
// streaming fetch, so content is buffered like the export paths elsewhere.
func (p *Provider) StreamToStorage(
	ctx context.Context,
	file *domain.FileMetadata,
	cfg domain.Config,
	storage driven.StorageClient,
	bucket, key string,
) (*domain.StreamResult, error) {
	downloaded, err := p.DownloadFile(ctx, file, cfg)
	if err != nil {
		return nil, err
	}
	etag, err := storage.Upload(ctx, bucket, key, downloaded.Content, mimeTypeRFC822)
	if err != nil {
		return nil, &domain.DownloadError{SourceID: file.SourceID, Err: fmt.Errorf("upload to storage: %w", err)}
	}
	return &domain.StreamResult{
		StoragePath: fmt.Sprintf("%s/%s", bucket, key),
		ETag:        etag,
		Size:        int64(len(downloaded.Content)),
	}, nil
}

// FilePermissions always reports empty access: a mailbox has no external
// sharing model.
func (p *Provider) FilePermissions(context.Context, *domain.FileMetadata, domain.Config) domain.ExternalAccess {
	return domain.EmptyAccess()
}

// Sync drives the full pipeline for one run.
func (p *Provider) Sync(ctx context.Context, cfg domain.Config, cp checkpoint.Checkpoint) (<-chan domain.SyncItem, <-chan error) {
	gcp := coerceCheckpoint(cp)

	if p.svc == nil {
		if err := p.Authenticate(ctx, cfg); err != nil {
			items := make(chan domain.SyncItem)
			errs := make(chan error, 1)
			errs <- err
			close(items)
			close(errs)
			return items, errs
		}
	}

	changes, changeErrs := p.Changes(ctx, cfg, gcp)
	download := func(ctx context.Context, file *domain.FileMetadata) (*domain.DownloadedFile, error) {
		return p.DownloadFile(ctx, file, cfg)
	}
	return syncer.Run(ctx, gcp, changes, changeErrs, download)
}

// Close releases the provider. Safe to call more than once.
func (p *Provider) Close() error {
	p.svc = nil
	p.closed = true
	return nil
}

func coerceCheckpoint(cp checkpoint.Checkpoint) *checkpoint.GmailCheckpoint {
	if gcp, ok := cp.(*checkpoint.GmailCheckpoint); ok {
		return gcp
	}
	return checkpoint.NewGmailCheckpoint()
}

func (p *Provider) wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if google.IsRateLimited(err) {
		p.limiter.RecordRateLimitError(0)
		return &domain.RateLimitError{Provider: ProviderName, RetryAfter: time.Minute, Err: err}
	}
	if google.IsUnauthorized(err) {
		return &domain.AuthenticationError{Provider: ProviderName, Err: err}
	}
	return err
}

func emit(ctx context.Context, out chan<- domain.FileChange, change domain.FileChange) bool {
	select {
	case out <- change:
		return true
	case <-ctx.Done():
		return false
	}
}
