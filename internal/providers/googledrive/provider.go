// Package googledrive implements the sync provider for Google Drive,
// including shared-drive enumeration, the changes-feed incremental mode and
// the export path for Google Workspace document types.
package googledrive

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/gen-mind/echo-mind/internal/checkpoint"
	"github.com/gen-mind/echo-mind/internal/core/domain"
	"github.com/gen-mind/echo-mind/internal/core/ports/driven"
	"github.com/gen-mind/echo-mind/internal/logger"
	"github.com/gen-mind/echo-mind/internal/providers/google"
	"github.com/gen-mind/echo-mind/internal/providers/syncer"
)

// ProviderName is the stable identifier for this provider.
const ProviderName = "google_drive"

// Ensure Provider implements the driven port.
var _ driven.Provider = (*Provider)(nil)

// Provider syncs files from Google Drive.
type Provider struct {
	svc     *drive.Service
	limiter *google.RateLimiter
	closed  bool
}

// New creates a Google Drive provider. The Drive service is created lazily
// by Authenticate.
func New() *Provider {
	return &Provider{
		limiter: google.NewRateLimiter(google.ServiceDrive),
	}
}

// Name returns the stable provider identifier.
func (p *Provider) Name() string { return ProviderName }

// Authenticate builds the Drive service from the connector credentials.
func (p *Provider) Authenticate(ctx context.Context, cfg domain.Config) error {
	if p.closed {
		return domain.ErrProviderClosed
	}

	ts, err := google.TokenSourceFromConfig(ctx, cfg)
	if err != nil {
		return err
	}

	svc, err := google.NewDriveService(ctx, ts)
	if err != nil {
		return &domain.AuthenticationError{Provider: ProviderName, Err: err}
	}
	p.svc = svc
	return nil
}

// CheckConnection probes the Drive API with a minimal about query.
func (p *Provider) CheckConnection(ctx context.Context) bool {
	if p.svc == nil {
		return false
	}
	_, err := p.svc.About.Get().Fields("user").Context(ctx).Do()
	return err == nil
}

// CreateCheckpoint returns a fresh Drive checkpoint.
func (p *Provider) CreateCheckpoint() checkpoint.Checkpoint {
	return checkpoint.NewDriveCheckpoint()
}

// Changes produces the change stream. Mode selection is checkpoint-driven:
// without a change-feed cursor this is a first sync and runs the staged full
// enumeration; with a cursor it pages the changes feed.
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

		dcp := coerceCheckpoint(cp)
		conf := ParseConfig(cfg)

		var err error
		if fullScanPending(dcp) {
			logger.Section("google_drive full scan")
			err = p.fullScan(ctx, conf, dcp, out)
		} else {
			logger.Section("google_drive incremental")
			err = p.incrementalChanges(ctx, conf, dcp, out)
		}

		if err != nil {
			errs <- err
			return
		}
		errs <- &syncer.Complete{HasMore: false}
	}()

	return out, errs
}

// Sync drives the full pipeline for one run.
func (p *Provider) Sync(ctx context.Context, cfg domain.Config, cp checkpoint.Checkpoint) (<-chan domain.SyncItem, <-chan error) {
	dcp := coerceCheckpoint(cp)

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

	changes, changeErrs := p.Changes(ctx, cfg, dcp)
	download := func(ctx context.Context, file *domain.FileMetadata) (*domain.DownloadedFile, error) {
		downloaded, err := p.DownloadFile(ctx, file, cfg)
		if err != nil {
			return nil, err
		}
		downloaded.ExternalAccess = p.FilePermissions(ctx, file, cfg)
		return downloaded, nil
	}

	return syncer.Run(ctx, dcp, changes, changeErrs, download)
}

// Close releases the provider. Safe to call more than once.
func (p *Provider) Close() error {
	p.svc = nil
	p.closed = true
	return nil
}

// coerceCheckpoint returns the Drive variant, replacing a foreign or nil
// checkpoint with a fresh one.
func coerceCheckpoint(cp checkpoint.Checkpoint) *checkpoint.DriveCheckpoint {
	if dcp, ok := cp.(*checkpoint.DriveCheckpoint); ok {
		return dcp
	}
	return checkpoint.NewDriveCheckpoint()
}

// fullScanPending reports whether the staged full enumeration still has work.
// A missing cursor always means a first sync; a present cursor re-enters the
// scan only when an earlier pass recorded per-identity progress and did not
// reach done.
func fullScanPending(cp *checkpoint.DriveCheckpoint) bool {
	if cp.ChangesStartPageToken == "" {
		return true
	}
	return len(cp.CompletionMap) > 0 && cp.CompletionStage != checkpoint.StageDone
}

// wrapErr classifies a Drive API failure into the domain error taxonomy.
func (p *Provider) wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if google.IsRateLimited(err) {
		retryAfter := retryAfterOf(err)
		p.limiter.RecordRateLimitError(int(retryAfter / time.Second))
		return &domain.RateLimitError{Provider: ProviderName, RetryAfter: retryAfter, Err: err}
	}
	if google.IsUnauthorized(err) {
		return &domain.AuthenticationError{Provider: ProviderName, Err: err}
	}
	return err
}

// retryAfterOf extracts the Retry-After delay from a 429, accepting both
// delta-seconds and HTTP-date forms, defaulting to a minute.
func retryAfterOf(err error) time.Duration {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Header != nil {
		if d, ok := parseRetryAfter(gerr.Header.Get("Retry-After")); ok {
			return d
		}
	}
	return time.Minute
}

// parseRetryAfter reads a Retry-After value in either delta-seconds or
// HTTP-date form.
func parseRetryAfter(val string) (time.Duration, bool) {
	if val == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(val); err == nil {
		if secs > 0 {
			return time.Duration(secs) * time.Second, true
		}
		return 0, false
	}
	if at, err := http.ParseTime(val); err == nil {
		if d := time.Until(at); d > 0 {
			return d, true
		}
	}
	return 0, false
}
