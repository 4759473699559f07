package msgraph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/gen-mind/echo-mind/internal/checkpoint"
	"github.com/gen-mind/echo-mind/internal/core/domain"
	"github.com/gen-mind/echo-mind/internal/core/ports/driven"
	"github.com/gen-mind/echo-mind/internal/logger"
	"github.com/gen-mind/echo-mind/internal/providers/syncer"
)

// ProviderName is the stable identifier for this provider.
const ProviderName = "msgraph"

// streamChunkSize is the read size used when forwarding content to storage.
const streamChunkSize = 32 * 1024

// Ensure Provider implements the driven port.
var _ driven.Provider = (*Provider)(nil)

// Provider syncs files from Microsoft Graph drives.
type Provider struct {
	client *client
	closed bool
}

// New creates a Microsoft Graph provider. The API client is created by
// Authenticate.
func New() *Provider {
	return &Provider{}
}

// Name returns the stable provider identifier.
func (p *Provider) Name() string { return ProviderName }

// Authenticate builds the Graph client. Tenant credentials take the
// client-credential flow; a bare access token is used as-is.
func (p *Provider) Authenticate(ctx context.Context, cfg domain.Config) error {
	if p.closed {
		return domain.ErrProviderClosed
	}

	conf := ParseConfig(cfg)

	var ts oauth2.TokenSource
	switch {
	case conf.TenantID != "" && conf.ClientID != "" && conf.ClientSecret != "":
		cc := &clientcredentials.Config{
			ClientID:     conf.ClientID,
			ClientSecret: conf.ClientSecret,
			TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", conf.TenantID),
			Scopes:       []string{"https://graph.microsoft.com/.default"},
		}
		ts = cc.TokenSource(ctx)
	case cfg["access_token"] != "":
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg["access_token"], TokenType: "Bearer"})
	default:
		return &domain.AuthenticationError{
			Provider: ProviderName,
			Err:      errors.New("config missing tenant_id/client_id/client_secret or access_token"),
		}
	}

	p.client = newClient(conf.BaseURL, nil, ts)
	return nil
}

// CheckConnection probes the Graph API with a minimal drives query.
func (p *Provider) CheckConnection(ctx context.Context) bool {
	if p.client == nil {
		return false
	}
	var resp driveListResponse
	return p.client.getJSON(ctx, "/sites?search=*&$top=1", &resp) == nil
}

// CreateCheckpoint returns a fresh Graph checkpoint.
func (p *Provider) CreateCheckpoint() checkpoint.Checkpoint {
	return checkpoint.NewGraphCheckpoint()
}

// Changes produces the change stream. A stored delta cursor selects
// incremental mode, either the single-drive link or the per-drive links
// left by a completed enumeration; otherwise the initial enumeration runs,
// scoped to one drive when configured or walking the site/drive work queues
// when not.
func (p *Provider) Changes(ctx context.Context, cfg domain.Config, cp checkpoint.Checkpoint) (<-chan domain.FileChange, <-chan error) {
	out := make(chan domain.FileChange)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		if p.client == nil {
			errs <- &domain.AuthenticationError{Provider: ProviderName, Err: errors.New("not authenticated")}
			return
		}

		gcp := coerceCheckpoint(cp)
		conf := ParseConfig(cfg)

		var err error
		switch {
		case gcp.DeltaLink != "":
			logger.Section("msgraph incremental")
			err = p.walkDelta(ctx, conf, conf.DriveID, gcp.DeltaLink, domain.ChangeUpdate,
				func(link string) { gcp.DeltaLink = link }, out)

		case gcp.Incremental():
			logger.Section("msgraph incremental (per-drive)")
			err = p.walkDriveCursors(ctx, conf, gcp, out)

		case conf.DriveID != "":
			logger.Section("msgraph initial (single drive)")
			err = p.walkDelta(ctx, conf, conf.DriveID, "", domain.ChangeCreate,
				func(link string) { gcp.DeltaLink = link }, out)

		default:
			logger.Section("msgraph initial (site enumeration)")
			err = p.enumerate(ctx, conf, gcp, out)
		}

		if err != nil {
			errs <- err
			return
		}
		errs <- &syncer.Complete{HasMore: false}
	}()

	return out, errs
}

// enumerate walks every site and drive in the tenant, consuming the
// checkpointed FIFO queues so a crash resumes from the next unconsumed
// entry instead of re-discovering. Each drive's delta cursor is recorded in
// the per-drive link map as its walk progresses; once the queues drain
// those cursors carry incremental detection for later passes.
func (p *Provider) enumerate(ctx context.Context, cfg *Config, cp *checkpoint.GraphCheckpoint, out chan<- domain.FileChange) error {
	if cp.CurrentSiteDescriptor == nil && len(cp.CachedSiteDescriptors) == 0 {
		sites, err := p.discoverSites(ctx)
		if err != nil {
			return err
		}
		cp.CachedSiteDescriptors = sites
	}

	site := cp.CurrentSiteDescriptor
	if site == nil {
		site = cp.PopNextSite()
	}

	for site != nil {
		if err := p.enumerateSite(ctx, cfg, cp, site, out); err != nil {
			return err
		}
		site = cp.PopNextSite()
	}
	return nil
}

// enumerateSite drains one site's drive queue, discovering drives first when
// the queue is fresh.
func (p *Provider) enumerateSite(
	ctx context.Context,
	cfg *Config,
	cp *checkpoint.GraphCheckpoint,
	site *checkpoint.SiteDescriptor,
	out chan<- domain.FileChange,
) error {
	if cp.CurrentDriveName == "" && len(cp.CachedDriveNames) == 0 {
		drives, err := p.discoverDrives(ctx, site.ID)
		if err != nil {
			return err
		}
		cp.CachedDriveNames = drives
		logger.Debug("site %s has %d drives", site.ID, len(drives))
	}

	driveID := cp.CurrentDriveName
	if driveID == "" {
		var ok bool
		if driveID, ok = cp.PopNextDrive(); !ok {
			return nil
		}
	}

	for {
		id := driveID
		err := p.walkDelta(ctx, cfg, id, cp.DriveDeltaLink(id), domain.ChangeCreate,
			func(link string) { cp.SetDriveDeltaLink(id, link) }, out)
		if err != nil {
			return err
		}
		var ok bool
		if driveID, ok = cp.PopNextDrive(); !ok {
			return nil
		}
	}
}

// walkDriveCursors replays every stored per-drive delta cursor in a stable
// order, advancing each drive's cursor as its feed drains.
func (p *Provider) walkDriveCursors(ctx context.Context, cfg *Config, cp *checkpoint.GraphCheckpoint, out chan<- domain.FileChange) error {
	ids := make([]string, 0, len(cp.DriveDeltaLinks))
	for id := range cp.DriveDeltaLinks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		driveID := id
		err := p.walkDelta(ctx, cfg, driveID, cp.DriveDeltaLink(driveID), domain.ChangeUpdate,
			func(link string) { cp.SetDriveDeltaLink(driveID, link) }, out)
		if err != nil {
			return err
		}
	}
	return nil
}

// DownloadFile materialises one item, enforcing the configured size limit
// before and after transfer.
func (p *Provider) DownloadFile(ctx context.Context, file *domain.FileMetadata, cfg domain.Config) (*domain.DownloadedFile, error) {
	conf := ParseConfig(cfg)

	if file.Size != nil && *file.Size > conf.MaxFileSize {
		return nil, &domain.FileTooLargeError{SourceID: file.SourceID, Size: *file.Size, Limit: conf.MaxFileSize}
	}

	body, err := p.openContent(ctx, file, conf)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	content, err := io.ReadAll(io.LimitReader(body, conf.MaxFileSize+1))
	if err != nil {
		return nil, &domain.DownloadError{SourceID: file.SourceID, Err: err}
	}
	if int64(len(content)) > conf.MaxFileSize {
		return nil, &domain.FileTooLargeError{SourceID: file.SourceID, Size: int64(len(content)), Limit: conf.MaxFileSize}
	}

	return &domain.DownloadedFile{
		SourceID:    file.SourceID,
		Name:        file.Name,
		Content:     content,
		MIMEType:    file.MIMEType,
		ContentHash: file.ContentHash,
		ModifiedAt:  file.ModifiedAt,
		ParentID:    file.ParentID,
		OriginalURL: file.WebURL,
	}, nil
}

// StreamToStorage forwards one item's content to the storage sink in
// bounded chunks, accumulated only because the sink needs a total length.
// No size limit applies on this path.
func (p *Provider) StreamToStorage(
	ctx context.Context,
	file *domain.FileMetadata,
	cfg domain.Config,
	storage driven.StorageClient,
	bucket, key string,
) (*domain.StreamResult, error) {
	conf := ParseConfig(cfg)

	body, err := p.openContent(ctx, file, conf)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var content []byte
	buf := make([]byte, streamChunkSize)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			content = append(content, buf[:n]...)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, &domain.DownloadError{SourceID: file.SourceID, Err: rerr}
		}
	}

	etag, err := storage.Upload(ctx, bucket, key, content, file.MIMEType)
	if err != nil {
		return nil, &domain.DownloadError{SourceID: file.SourceID, Err: fmt.Errorf("upload to storage: %w", err)}
	}

	return &domain.StreamResult{
		StoragePath: fmt.Sprintf("%s/%s", bucket, key),
		ETag:        etag,
		Size:        int64(len(content)),
		ContentHash: file.ContentHash,
	}, nil
}

// openContent opens the item's content stream.
func (p *Provider) openContent(ctx context.Context, file *domain.FileMetadata, conf *Config) (io.ReadCloser, error) {
	driveID := conf.DriveID
	if file.Extra != nil && file.Extra["drive_id"] != "" {
		driveID = file.Extra["drive_id"]
	}
	if driveID == "" {
		return nil, &domain.DownloadError{SourceID: file.SourceID, Err: errors.New("no drive id for item")}
	}

	resp, err := p.client.get(ctx, fmt.Sprintf("/drives/%s/items/%s/content", driveID, file.SourceID))
	if err != nil {
		if domain.IsRateLimited(err) {
			return nil, err
		}
		var ae *domain.AuthenticationError
		if errors.As(err, &ae) {
			return nil, err
		}
		return nil, &domain.DownloadError{SourceID: file.SourceID, Err: err}
	}
	return resp.Body, nil
}

// FilePermissions fetches and normalises the item's ACL. Best effort: any
// failure degrades to the empty access model.
func (p *Provider) FilePermissions(ctx context.Context, file *domain.FileMetadata, cfg domain.Config) domain.ExternalAccess {
	conf := ParseConfig(cfg)
	driveID := conf.DriveID
	if file.Extra != nil && file.Extra["drive_id"] != "" {
		driveID = file.Extra["drive_id"]
	}
	if driveID == "" {
		return domain.EmptyAccess()
	}

	var userEmails, groupIDs []string
	url := fmt.Sprintf("/drives/%s/items/%s/permissions", driveID, file.SourceID)

	for url != "" {
		var resp permissionListResponse
		if err := p.client.getJSON(ctx, url, &resp); err != nil {
			logger.Debug("permission fetch failed for %s: %v", file.SourceID, err)
			return domain.EmptyAccess()
		}

		for _, perm := range resp.Value {
			if perm.Link != nil && perm.Link.Scope == "anonymous" {
				return domain.PublicAccess()
			}
			if perm.GrantedToV2 == nil {
				continue
			}
			if perm.GrantedToV2.User != nil && perm.GrantedToV2.User.Email != "" {
				userEmails = append(userEmails, perm.GrantedToV2.User.Email)
			}
			if perm.GrantedToV2.Group != nil && perm.GrantedToV2.Group.ID != "" {
				groupIDs = append(groupIDs, perm.GrantedToV2.Group.ID)
			}
		}
		url = resp.NextLink
	}

	if len(userEmails) == 0 && len(groupIDs) == 0 {
		return domain.EmptyAccess()
	}
	return domain.AccessForUsersAndGroups(userEmails, groupIDs)
}

// Sync drives the full pipeline for one run.
func (p *Provider) Sync(ctx context.Context, cfg domain.Config, cp checkpoint.Checkpoint) (<-chan domain.SyncItem, <-chan error) {
	gcp := coerceCheckpoint(cp)

	if p.client == nil {
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
		downloaded, err := p.DownloadFile(ctx, file, cfg)
		if err != nil {
			return nil, err
		}
		downloaded.ExternalAccess = p.FilePermissions(ctx, file, cfg)
		return downloaded, nil
	}

	return syncer.Run(ctx, gcp, changes, changeErrs, download)
}

// Close releases the provider. Safe to call more than once.
func (p *Provider) Close() error {
	p.client = nil
	p.closed = true
	return nil
}

// coerceCheckpoint returns the Graph variant, replacing a foreign or nil
// checkpoint with a fresh one.
func coerceCheckpoint(cp checkpoint.Checkpoint) *checkpoint.GraphCheckpoint {
	if gcp, ok := cp.(*checkpoint.GraphCheckpoint); ok {
		return gcp
	}
	return checkpoint.NewGraphCheckpoint()
}
