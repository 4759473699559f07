package googledrive

import (
	"context"

	"github.com/gen-mind/echo-mind/internal/core/domain"
	"github.com/gen-mind/echo-mind/internal/logger"
)

// FilePermissions fetches and normalises the file's ACL. Best effort: any
// failure degrades to the empty access model so a file without a readable
// ACL is still synced, just treated as private downstream.
func (p *Provider) FilePermissions(ctx context.Context, file *domain.FileMetadata, _ domain.Config) domain.ExternalAccess {
	if err := p.limiter.Wait(ctx); err != nil {
		return domain.EmptyAccess()
	}

	var userEmails, groupIDs []string
	pageToken := ""
	for {
		call := p.svc.Permissions.List(file.SourceID).
			SupportsAllDrives(true).
			Fields("nextPageToken, permissions(type, emailAddress, id, role)")
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			logger.Debug("permission fetch failed for %s: %v", file.SourceID, err)
			return domain.EmptyAccess()
		}

		for _, perm := range resp.Permissions {
			switch perm.Type {
			case "anyone":
				return domain.PublicAccess()
			case "user":
				if perm.Role != "owner" && perm.EmailAddress != "" {
					userEmails = append(userEmails, perm.EmailAddress)
				}
			case "group":
				if perm.EmailAddress != "" {
					groupIDs = append(groupIDs, perm.EmailAddress)
				} else if perm.Id != "" {
					groupIDs = append(groupIDs, perm.Id)
				}
			}
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	if len(userEmails) == 0 && len(groupIDs) == 0 {
		return domain.EmptyAccess()
	}
	return domain.AccessForUsersAndGroups(userEmails, groupIDs)
}
