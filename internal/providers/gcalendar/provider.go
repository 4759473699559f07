// Package gcalendar implements the sync provider for Google Calendar. Each
// calendar carries its own sync token; a pass walks the calendar list in
// order and resumes from the calendar it was interrupted on.
package gcalendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/gen-mind/echo-mind/internal/checkpoint"
	"github.com/gen-mind/echo-mind/internal/core/domain"
	"github.com/gen-mind/echo-mind/internal/core/ports/driven"
	"github.com/gen-mind/echo-mind/internal/logger"
	"github.com/gen-mind/echo-mind/internal/providers/google"
	"github.com/gen-mind/echo-mind/internal/providers/syncer"
)

// ProviderName is the stable identifier for this provider.
const ProviderName = "google_calendar"

const mimeTypeEventJSON = "application/json"

const defaultPageSize = 250

var _ driven.Provider = (*Provider)(nil)

// Provider syncs events from the calendars visible to the authenticated user.
type Provider struct {
	svc     *calendar.Service
	limiter *google.RateLimiter
	closed  bool
}

// New creates a Calendar provider.
func New() *Provider {
	return &Provider{limiter: google.NewRateLimiter(google.ServiceCalendar)}
}

// Name returns the stable provider identifier.
func (p *Provider) Name() string { return ProviderName }

// Authenticate builds the Calendar service from the connector credentials.
func (p *Provider) Authenticate(ctx context.Context, cfg domain.Config) error {
	if p.closed {
		return domain.ErrProviderClosed
	}
	ts, err := google.TokenSourceFromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	svc, err := google.NewCalendarService(ctx, ts)
	if err != nil {
		return &domain.AuthenticationError{Provider: ProviderName, Err: err}
	}
	p.svc = svc
	return nil
}

// CheckConnection probes the calendar list.
func (p *Provider) CheckConnection(ctx context.Context) bool {
	if p.svc == nil {
		return false
	}
	_, err := p.svc.CalendarList.List().MaxResults(1).Context(ctx).Do()
	return err == nil
}

// CreateCheckpoint returns a fresh Calendar checkpoint.
func (p *Provider) CreateCheckpoint() checkpoint.Checkpoint {
	return checkpoint.NewCalendarCheckpoint()
}

// Changes produces the change stream. The calendar list is captured once per
// pass; CurrentCalendarIdx resumes the pass after an interruption, and each
// calendar's sync token keeps its own feed incremental.
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

		if len(ccp.CalendarIDs) == 0 {
			ids, err := p.listCalendars(ctx, cfg)
			if err != nil {
				errs <- err
				return
			}
			ccp.CalendarIDs = ids
			ccp.CurrentCalendarIdx = 0
			logger.Debug("captured %d calendars for this pass", len(ids))
		}

		for ccp.CurrentCalendarIdx < len(ccp.CalendarIDs) {
			calID := ccp.CalendarIDs[ccp.CurrentCalendarIdx]
			if err := p.syncCalendar(ctx, ccp, calID, out); err != nil {
				errs <- err
				return
			}
			ccp.CurrentCalendarIdx++
		}

		// Pass complete: the next run captures a fresh calendar list.
		ccp.CalendarIDs = []string{}
		ccp.CurrentCalendarIdx = 0
		errs <- &syncer.Complete{HasMore: false}
	}()

	return out, errs
}

// listCalendars resolves the calendars for a pass: the configured IDs if
// given, otherwise every calendar on the user's list.
func (p *Provider) listCalendars(ctx context.Context, cfg domain.Config) ([]string, error) {
	if raw := strings.TrimSpace(cfg["calendar_ids"]); raw != "" {
		var ids []string
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		sort.Strings(ids)
		return ids, nil
	}

	var ids []string
	pageToken := ""
	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		call := p.svc.CalendarList.List().MaxResults(defaultPageSize)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("list calendars: %w", p.wrapErr(err))
		}
		for _, item := range resp.Items {
			ids = append(ids, item.Id)
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	sort.Strings(ids)
	return ids, nil
}

// syncCalendar walks one calendar's event feed. With a stored sync token the
// feed is incremental; an expired token (410) falls back to a full listing
// for that calendar only.
func (p *Provider) syncCalendar(ctx context.Context, cp *checkpoint.CalendarCheckpoint, calID string, out chan<- domain.FileChange) error {
	token := cp.SyncToken(calID)

	err := p.walkEvents(ctx, cp, calID, token, out)
	if token != "" && google.IsSyncTokenExpired(err) {
		logger.Warn("sync token for calendar %s expired, relisting", calID)
		cp.SetSyncToken(calID, "")
		err = p.walkEvents(ctx, cp, calID, "", out)
	}
	return err
}

func (p *Provider) walkEvents(ctx context.Context, cp *checkpoint.CalendarCheckpoint, calID, token string, out chan<- domain.FileChange) error {
	pageToken := ""
	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		call := p.svc.Events.List(calID).
			MaxResults(defaultPageSize).
			ShowDeleted(true)
		if token != "" {
			call = call.SyncToken(token)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			if google.IsSyncTokenExpired(err) {
				return fmt.Errorf("events for %s: %w", calID, google.ErrSyncTokenExpired)
			}
			return fmt.Errorf("list events for %s: %w", calID, p.wrapErr(err))
		}

		for _, event := range resp.Items {
			change := eventToChange(event, calID, token != "")
			if !emit(ctx, out, change) {
				return ctx.Err()
			}
		}

		if resp.NextPageToken == "" {
			cp.SetSyncToken(calID, resp.NextSyncToken)
			return nil
		}
		pageToken = resp.NextPageToken
	}
}

// eventToChange maps a feed entry to a change. Cancelled events are
// deletions; anything else is an upsert.
func eventToChange(event *calendar.Event, calID string, incremental bool) domain.FileChange {
	sourceID := fmt.Sprintf("%s/%s", calID, event.Id)

	if event.Status == "cancelled" {
		return domain.FileChange{SourceID: sourceID, Action: domain.ChangeDelete}
	}

	action := domain.ChangeCreate
	if incremental {
		action = domain.ChangeUpdate
	}
	meta := &domain.FileMetadata{
		SourceID: sourceID,
		Name:     event.Summary,
		MIMEType: mimeTypeEventJSON,
		Extra:    map[string]string{"calendar_id": calID, "event_id": event.Id},
	}
	if t, err := time.Parse(time.RFC3339, event.Updated); err == nil {
		meta.ModifiedAt = &t
	}
	return domain.FileChange{SourceID: sourceID, Action: action, File: meta}
}

// DownloadFile fetches the event and renders it as JSON.
func (p *Provider) DownloadFile(ctx context.Context, file *domain.FileMetadata, cfg domain.Config) (*domain.DownloadedFile, error) {
	calID := file.Extra["calendar_id"]
	eventID := file.Extra["event_id"]
	if calID == "" || eventID == "" {
		return nil, &domain.DownloadError{SourceID: file.SourceID, Err: errors.New("change is missing calendar or event ID")}
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	event, err := p.svc.Events.Get(calID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, &domain.DownloadError{SourceID: file.SourceID, Err: p.wrapErr(err)}
	}

	content, err := json.Marshal(event)
	if err != nil {
		return nil, &domain.DownloadError{SourceID: file.SourceID, Err: fmt.Errorf("encode event: %w", err)}
	}

	downloaded := &domain.DownloadedFile{
		SourceID: file.SourceID,
		Name:     fmt.Sprintf("%s.json", eventID),
		Content:  content,
		MIMEType: mimeTypeEventJSON,
	}
	if event.Summary != "" {
		downloaded.Name = fmt.Sprintf("%s.json", event.Summary)
	}
	if t, err := time.Parse(time.RFC3339, event.Updated); err == nil {
		downloaded.ModifiedAt = &t
	}
	return downloaded, nil
}

// StreamToStorage delivers the rendered event to the storage sink.
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
	etag, err := storage.Upload(ctx, bucket, key, downloaded.Content, mimeTypeEventJSON)
	if err != nil {
		return nil, &domain.DownloadError{SourceID: file.SourceID, Err: fmt.Errorf("upload to storage: %w", err)}
	}
	return &domain.StreamResult{
		StoragePath: fmt.Sprintf("%s/%s", bucket, key),
		ETag:        etag,
		Size:        int64(len(downloaded.Content)),
	}, nil
}

// FilePermissions reports empty access: event visibility follows the
// calendar, which the connector already scopes.
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

func coerceCheckpoint(cp checkpoint.Checkpoint) *checkpoint.CalendarCheckpoint {
	if ccp, ok := cp.(*checkpoint.CalendarCheckpoint); ok {
		return ccp
	}
	return checkpoint.NewCalendarCheckpoint()
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
