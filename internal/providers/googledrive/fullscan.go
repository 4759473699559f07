package googledrive

import (
	"context"
	"fmt"
	"sort"
	"time"

	"google.golang.org/api/drive/v3"

	"github.com/gen-mind/echo-mind/internal/checkpoint"
	"github.com/gen-mind/echo-mind/internal/core/domain"
	"github.com/gen-mind/echo-mind/internal/logger"
)

// fullScan performs the staged first-sync enumeration. The change-feed
// cursor is fetched and stored before any listing so edits made while the
// scan runs are picked up by the first incremental pass instead of being
// lost. Every stage records its pagination in the checkpoint so an
// interrupted scan resumes mid-stage.
func (p *Provider) fullScan(
	ctx context.Context,
	cfg *Config,
	cp *checkpoint.DriveCheckpoint,
	out chan<- domain.FileChange,
) error {
	if cp.ChangesStartPageToken == "" {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		resp, err := p.svc.Changes.GetStartPageToken().SupportsAllDrives(true).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("get start page token: %w", p.wrapErr(err))
		}
		cp.ChangesStartPageToken = resp.StartPageToken
		logger.Debug("stored change-feed cursor %q", resp.StartPageToken)
	}

	for cp.CompletionStage != checkpoint.StageDone {
		var err error
		switch cp.CompletionStage {
		case checkpoint.StageStart:
			// Nothing to enumerate; the stage exists so a fresh checkpoint
			// is distinguishable from one that resolved its identities.

		case checkpoint.StageUserEmails:
			err = p.resolveIdentities(ctx, cfg, cp)

		case checkpoint.StageMyDriveFiles:
			// A configured folder scopes the scan to that folder alone.
			if cfg.FolderID == "" {
				err = p.eachIdentity(ctx, cp, func(sc *checkpoint.StageCompletion) error {
					return p.scanMyDrive(ctx, cfg, sc, out)
				})
			}

		case checkpoint.StageDriveIDs:
			if cfg.FolderID == "" && cfg.IncludeSharedDrives {
				err = p.eachIdentity(ctx, cp, func(sc *checkpoint.StageCompletion) error {
					return p.discoverDrives(ctx, cfg, sc)
				})
			}

		case checkpoint.StageSharedDriveFiles:
			if cfg.FolderID == "" && cfg.IncludeSharedDrives {
				err = p.eachIdentity(ctx, cp, func(sc *checkpoint.StageCompletion) error {
					return p.scanSharedDrives(ctx, cfg, sc, out)
				})
			}

		case checkpoint.StageFolderFiles:
			if cfg.FolderID != "" {
				err = p.eachIdentity(ctx, cp, func(sc *checkpoint.StageCompletion) error {
					return p.scanFolder(ctx, cfg, sc, out)
				})
			}
		}
		if err != nil {
			return err
		}

		cp.CompletionStage = cp.CompletionStage.Next()
	}

	return nil
}

// resolveIdentities seeds the completion map with the identities the scan
// walks: the configured list, or the authenticated user.
func (p *Provider) resolveIdentities(ctx context.Context, cfg *Config, cp *checkpoint.DriveCheckpoint) error {
	emails := cfg.UserEmails
	if len(emails) == 0 {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		about, err := p.svc.About.Get().Fields("user(emailAddress)").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("resolve authenticated user: %w", p.wrapErr(err))
		}
		email := about.User.EmailAddress
		if email == "" {
			email = "me"
		}
		emails = []string{email}
	}

	for _, email := range emails {
		cp.Completion(email, checkpoint.StageUserEmails)
	}
	logger.Info("scanning %d identities", len(emails))
	return nil
}

// eachIdentity runs one stage's work for every identity that has not yet
// passed the current stage, advancing each identity's own stage marker on
// completion.
func (p *Provider) eachIdentity(
	ctx context.Context,
	cp *checkpoint.DriveCheckpoint,
	work func(sc *checkpoint.StageCompletion) error,
) error {
	emails := make([]string, 0, len(cp.CompletionMap))
	for email := range cp.CompletionMap {
		emails = append(emails, email)
	}
	sort.Strings(emails)

	for _, email := range emails {
		sc := cp.Completion(email, cp.CompletionStage)
		if cp.CompletionStage.Before(sc.Stage) {
			continue // already done in an earlier pass
		}
		sc.Stage = cp.CompletionStage
		if err := work(sc); err != nil {
			return err
		}
		sc.Stage = cp.CompletionStage.Next()
		sc.NextPageToken = ""
		sc.CurrentID = ""
	}
	return nil
}

// scanMyDrive enumerates the identity's own files ordered by modified time.
// completed_until is the resume cursor: after a restart the listing picks up
// past everything already yielded.
func (p *Provider) scanMyDrive(ctx context.Context, cfg *Config, sc *checkpoint.StageCompletion, out chan<- domain.FileChange) error {
	query := "trashed = false and 'me' in owners"
	if !sc.CompletedUntil.IsZero() {
		query += fmt.Sprintf(" and modifiedTime > '%s'", sc.CompletedUntil.UTC().Format(time.RFC3339))
	}

	return p.scanListing(ctx, sc, out, func(pageToken string) (*drive.FileList, error) {
		return p.svc.Files.List().
			Q(query).
			OrderBy("modifiedTime").
			PageSize(cfg.PageSize).
			PageToken(pageToken).
			Fields("nextPageToken, files(" + fileFields + ")").
			Context(ctx).
			Do()
	})
}

// discoverDrives enumerates the shared drives visible to the identity and
// records them in the stage record as the work set the shared-drive stage
// consumes.
func (p *Provider) discoverDrives(ctx context.Context, cfg *Config, sc *checkpoint.StageCompletion) error {
	ids, err := p.listDriveIDs(ctx, cfg)
	if err != nil {
		return err
	}
	sort.Strings(ids)
	sc.DiscoveredDriveIDs = ids
	logger.Info("discovered %d shared drives", len(ids))
	return nil
}

// scanSharedDrives walks every discovered shared drive not yet in the
// processed set, enumerating its files. current_folder_or_drive_id plus
// next_page_token resume an interrupted drive mid-pagination.
func (p *Provider) scanSharedDrives(ctx context.Context, cfg *Config, sc *checkpoint.StageCompletion, out chan<- domain.FileChange) error {
	for _, driveID := range sc.DiscoveredDriveIDs {
		if sc.ProcessedDriveIDs.Contains(driveID) {
			continue
		}
		if sc.CurrentID != driveID {
			sc.CurrentID = driveID
			sc.NextPageToken = ""
		}

		err := p.scanListing(ctx, sc, out, func(pageToken string) (*drive.FileList, error) {
			return p.svc.Files.List().
				Q("trashed = false").
				Corpora("drive").
				DriveId(driveID).
				IncludeItemsFromAllDrives(true).
				SupportsAllDrives(true).
				PageSize(cfg.PageSize).
				PageToken(pageToken).
				Fields("nextPageToken, files(" + fileFields + ")").
				Context(ctx).
				Do()
		})
		if err != nil {
			return err
		}

		sc.ProcessedDriveIDs.Add(driveID)
		sc.CurrentID = ""
	}
	sc.DiscoveredDriveIDs = nil
	return nil
}

// scanFolder enumerates the configured folder's direct children.
func (p *Provider) scanFolder(ctx context.Context, cfg *Config, sc *checkpoint.StageCompletion, out chan<- domain.FileChange) error {
	query := fmt.Sprintf("'%s' in parents and trashed = false", cfg.FolderID)
	if sc.CurrentID != cfg.FolderID {
		sc.CurrentID = cfg.FolderID
		sc.NextPageToken = ""
	}

	return p.scanListing(ctx, sc, out, func(pageToken string) (*drive.FileList, error) {
		return p.svc.Files.List().
			Q(query).
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true).
			PageSize(cfg.PageSize).
			PageToken(pageToken).
			Fields("nextPageToken, files(" + fileFields + ")").
			Context(ctx).
			Do()
	})
}

// scanListing drives one paginated listing to exhaustion, yielding create
// events and recording pagination and the modified-time watermark in the
// stage record as each page lands.
func (p *Provider) scanListing(
	ctx context.Context,
	sc *checkpoint.StageCompletion,
	out chan<- domain.FileChange,
	list func(pageToken string) (*drive.FileList, error),
) error {
	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}

		resp, err := list(sc.NextPageToken)
		if err != nil {
			return fmt.Errorf("list files: %w", p.wrapErr(err))
		}

		for _, f := range resp.Files {
			if f.MimeType == mimeTypeFolder {
				continue
			}
			if !emit(ctx, out, domain.FileChange{
				SourceID: f.Id,
				Action:   domain.ChangeCreate,
				File:     fileToMetadata(f),
			}) {
				return ctx.Err()
			}
			if t, perr := time.Parse(time.RFC3339, f.ModifiedTime); perr == nil && t.After(sc.CompletedUntil) {
				sc.CompletedUntil = t
			}
		}

		sc.NextPageToken = resp.NextPageToken
		if resp.NextPageToken == "" {
			return nil
		}
	}
}

// listDriveIDs returns the IDs of every shared drive visible to the caller.
func (p *Provider) listDriveIDs(ctx context.Context, cfg *Config) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		resp, err := p.svc.Drives.List().
			PageSize(cfg.PageSize).
			PageToken(pageToken).
			Fields("nextPageToken, drives(id)").
			Context(ctx).
			Do()
		if err != nil {
			return nil, fmt.Errorf("list drives: %w", p.wrapErr(err))
		}
		for _, d := range resp.Drives {
			ids = append(ids, d.Id)
		}
		if resp.NextPageToken == "" {
			return ids, nil
		}
		pageToken = resp.NextPageToken
	}
}
