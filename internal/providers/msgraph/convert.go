package msgraph

import (
	"strings"

	"github.com/gen-mind/echo-mind/internal/core/domain"
)

// itemToMetadata converts a drive item to FileMetadata. The content-stable
// cTag becomes the content hash so a metadata touch does not surface as a
// content update downstream.
func itemToMetadata(item *driveItem, driveID string) *domain.FileMetadata {
	meta := &domain.FileMetadata{
		SourceID:    item.ID,
		Name:        item.Name,
		ContentHash: item.CTag,
		WebURL:      item.WebURL,
	}

	if item.Size > 0 {
		size := item.Size
		meta.Size = &size
	}
	if !item.ModifiedAt.IsZero() {
		t := item.ModifiedAt
		meta.ModifiedAt = &t
	}
	if !item.CreatedAt.IsZero() {
		t := item.CreatedAt
		meta.CreatedAt = &t
	}
	if item.File != nil {
		meta.MIMEType = item.File.MimeType
	}
	if item.ParentReference != nil {
		meta.ParentID = item.ParentReference.ID
		if item.ParentReference.DriveID != "" {
			driveID = item.ParentReference.DriveID
		}
	}
	if driveID != "" {
		meta.Extra = map[string]string{"drive_id": driveID}
	}

	return meta
}

// underFolder reports whether the item's parent path falls under the
// configured folder prefix. An empty prefix matches everything.
func underFolder(item *driveItem, folderPath string) bool {
	if folderPath == "" {
		return true
	}
	if item.ParentReference == nil {
		return false
	}
	// Parent paths look like "/drives/{id}/root:/sub/folder".
	path := item.ParentReference.Path
	if idx := strings.Index(path, "root:"); idx >= 0 {
		path = strings.Trim(path[idx+len("root:"):], "/")
	}
	return path == folderPath || strings.HasPrefix(path, folderPath+"/")
}
