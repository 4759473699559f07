// Package gcontacts implements the sync provider for Google Contacts via the
// People API connections feed and its sync tokens.
package gcontacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/people/v1"

	"github.com/gen-mind/echo-mind/internal/checkpoint"
	"github.com/gen-mind/echo-mind/internal/core/domain"
	"github.com/gen-mind/echo-mind/internal/core/ports/driven"
	"github.com/gen-mind/echo-mind/internal/logger"
	"github.com/gen-mind/echo-mind/internal/providers/google"
	"github.com/gen-mind/echo-mind/internal/providers/syncer"
)

// ProviderName is the stable identifier for this provider.
const ProviderName = "google_contacts"

const mimeTypeContactJSON = "application/json"

const defaultPageSize = 100

// personFields selects the contact attributes worth indexing.
const personFields = "names,emailAddresses,phoneNumbers,organizations,metadata"

var _ driven.Provider = (*Provider)(nil)

// Provider syncs the authenticated user's contacts.
type Provider struct {
	svc     *people.Service
	limiter *google.RateLimiter
	closed  bool
}

// New creates a Contacts provider.
func New() *Provider {
	return &Provider{limiter: google.NewRateLimiter(google.ServicePeople)}
}

// Name returns the stable provider identifier.
func (p *Provider) Name() string { return ProviderName }

// Authenticate builds the People service from the connector credentials.
func (p *Provider) Authenticate(ctx context.Context, cfg domain.Config) error {
	if p.closed {
		return domain.ErrProviderClosed
	}
	ts, err := google.TokenSourceFromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	svc, err := google.NewPeopleService(ctx, ts)
	if err != nil {
		return &domain.AuthenticationError{Provider: ProviderName, Err: err}
	}
	p.svc = svc
	return nil
}

// CheckConnection probes the connections feed.
func (p *Provider) CheckConnection(ctx context.Context) bool {
	if p.svc == nil {
		return false
	}
	_, err := p.svc.People.Connections.List("people/me").
		PersonFields("names").
		PageSize(1).
		Context(ctx).
		Do()
	return err == nil
}

// CreateCheckpoint returns a fresh Contacts checkpoint.
func (p *Provider) CreateCheckpoint() checkpoint.Checkpoint {
	return checkpoint.NewContactsCheckpoint()
}

// Changes produces the change stream. The connections feed covers both
// modes: a stored sync token makes it incremental, and the page token
// resumes pagination mid-feed either way. An expired token resets the
// checkpoint to a full listing.
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

		ccp := coerceCheckpoint(cp)
		if err := p.walkConnections(ctx, ccp, out); err != nil {
			errs <- err
			return
		}
		errs <- &syncer.Complete{HasMore: false}
	}()

	return out, errs
}

func (p *Provider) walkConnections(ctx context.Context, cp *checkpoint.ContactsCheckpoint, out chan<- domain.FileChange) error {
	incremental := cp.Incremental()

	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		call := p.svc.People.Connections.List("people/me").
			PersonFields(personFields).
			PageSize(defaultPageSize).
			RequestSyncToken(true)
		if cp.SyncToken != "" {
			call = call.SyncToken(cp.SyncToken)
		}
		if cp.PageToken != "" {
			call = call.PageToken(cp.PageToken)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			if google.IsSyncTokenExpired(err) {
				logger.Warn("contacts sync token expired, resetting to full listing")
				cp.SyncToken = ""
				cp.PageToken = ""
				return fmt.Errorf("list connections: %w", google.ErrSyncTokenExpired)
			}
			return fmt.Errorf("list connections: %w", p.wrapErr(err))
		}

		for _, person := range resp.Connections {
			if !emit(ctx, out, personToChange(person, incremental)) {
				return ctx.Err()
			}
		}

		cp.PageToken = resp.NextPageToken
		if resp.NextPageToken == "" {
			cp.SyncToken = resp.NextSyncToken
			return nil
		}
	}
}

// personToChange maps one feed entry to a change. Tombstoned contacts are
// deletions; anything else is an upsert.
func personToChange(person *people.Person, incremental bool) domain.FileChange {
	if person.Metadata != nil && person.Metadata.Deleted {
		return domain.FileChange{SourceID: person.ResourceName, Action: domain.ChangeDelete}
	}

	action := domain.ChangeCreate
	if incremental {
		action = domain.ChangeUpdate
	}
	meta := &domain.FileMetadata{
		SourceID: person.ResourceName,
		Name:     displayName(person),
		MIMEType: mimeTypeContactJSON,
	}
	return domain.FileChange{SourceID: person.ResourceName, Action: action, File: meta}
}

func displayName(person *people.Person) string {
	for _, name := range person.Names {
		if name.DisplayName != "" {
			return name.DisplayName
		}
	}
	return person.ResourceName
}

// DownloadFile fetches the contact and renders it as JSON.
func (p *Provider) DownloadFile(ctx context.Context, file *domain.FileMetadata, cfg domain.Config) (*domain.DownloadedFile, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	person, err := p.svc.People.Get(file.SourceID).PersonFields(personFields).Context(ctx).Do()
	if err != nil {
		return nil, &domain.DownloadError{SourceID: file.SourceID, Err: p.wrapErr(err)}
	}

	content, err := json.Marshal(person)
	if err != nil {
		return nil, &domain.DownloadError{SourceID: file.SourceID, Err: fmt.Errorf("encode contact: %w", err)}
	}

	return &domain.DownloadedFile{
		SourceID: file.SourceID,
		Name:     fmt.Sprintf("%s.json", contactFileName(person)),
		Content:  content,
		MIMEType: mimeTypeContactJSON,
	}, nil
}

// contactFileName derives a storage-safe name from the contact.
func contactFileName(person *people.Person) string {
	name := displayName(person)
	name = strings.ReplaceAll(name, "/", "-")
	return name
}

// StreamToStorage delivers the rendered contact to the storage sink.
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
	etag, err := storage.Upload(ctx, bucket, key, downloaded.Content, mimeTypeContactJSON)
	if err != nil {
		return nil, &domain.DownloadError{SourceID: file.SourceID, Err: fmt.Errorf("upload to storage: %w", err)}
	}
	return &domain.StreamResult{
		StoragePath: fmt.Sprintf("%s/%s", bucket, key),
		ETag:        etag,
		Size:        int64(len(downloaded.Content)),
	}, nil
}

// FilePermissions reports empty access: a contact list is private to its
// owner.
func (p *Provider) FilePermissions(context.Context, *domain.FileMetadata, domain.Config) domain.ExternalAccess {
	return domain.EmptyAccess()
}

// Sync drives the full pipeline for one run.
func (p *Provider) Sync(ctx context.Context, cfg domain.Config, cp checkpoint.Checkpoint) (<-chan domain.SyncItem, <-chan error) {
	ccp := coerceCheckpoint(cp)

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

	changes, changeErrs := p.Changes(ctx, cfg, ccp)
	download := func(ctx context.Context, file *domain.FileMetadata) (*domain.DownloadedFile, error) {
		return p.DownloadFile(ctx, file, cfg)
	}
	return syncer.Run(ctx, ccp, changes, changeErrs, download)
}

// Close releases the provider. Safe to call more than once.
func (p *Provider) Close() error {
	p.svc = nil
	p.closed = true
	return nil
}

func coerceCheckpoint(cp checkpoint.Checkpoint) *checkpoint.ContactsCheckpoint {
	if ccp, ok := cp.(*checkpoint.ContactsCheckpoint); ok {
		return ccp
	}
	return checkpoint.NewContactsCheckpoint()
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
