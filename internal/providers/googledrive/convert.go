package googledrive

import (
	"time"

	"google.golang.org/api/drive/v3"

	"github.com/gen-mind/echo-mind/internal/core/domain"
)

// Google Workspace MIME types.
const (
	mimeTypeGoogleDoc     = "application/vnd.google-apps.document"
	mimeTypeGoogleSheet   = "application/vnd.google-apps.spreadsheet"
	mimeTypeGoogleSlides  = "application/vnd.google-apps.presentation"
	mimeTypeGoogleDrawing = "application/vnd.google-apps.drawing"
	mimeTypeFolder        = "application/vnd.google-apps.folder"
)

// isWorkspaceFile reports whether the MIME type requires the export path.
func isWorkspaceFile(mimeType string) bool {
	switch mimeType {
	case mimeTypeGoogleDoc, mimeTypeGoogleSheet, mimeTypeGoogleSlides, mimeTypeGoogleDrawing:
		return true
	}
	return false
}

// fileToMetadata converts a Drive file resource to FileMetadata.
func fileToMetadata(f *drive.File) *domain.FileMetadata {
	meta := &domain.FileMetadata{
		SourceID:    f.Id,
		Name:        f.Name,
		MIMEType:    f.MimeType,
		ContentHash: f.Md5Checksum,
		WebURL:      f.WebViewLink,
	}

	if f.Size > 0 {
		size := f.Size
		meta.Size = &size
	}
	if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
		meta.ModifiedAt = &t
	}
	if t, err := time.Parse(time.RFC3339, f.CreatedTime); err == nil {
		meta.CreatedAt = &t
	}
	if len(f.Parents) > 0 {
		meta.ParentID = f.Parents[0]
	}
	if f.DriveId != "" {
		meta.Extra = map[string]string{"drive_id": f.DriveId}
	}

	return meta
}

// fileFields is the field mask requested on every file listing.
const fileFields = "id, name, mimeType, size, md5Checksum, modifiedTime, createdTime, webViewLink, parents, driveId, trashed"
