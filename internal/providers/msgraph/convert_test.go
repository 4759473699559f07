package msgraph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemToMetadata(t *testing.T) {
	modified := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	item := &driveItem{
		ID:         "i1",
		Name:       "spec.pdf",
		Size:       2048,
		WebURL:     "https://contoso.sharepoint.com/spec.pdf",
		ETag:       "any-change-tag",
		CTag:       "content-tag",
		ModifiedAt: modified,
		File:       &struct {
			MimeType string `json:"mimeType"`
		}{MimeType: "application/pdf"},
		ParentReference: &struct {
			ID      string `json:"id"`
			DriveID string `json:"driveId"`
			Path    string `json:"path"`
		}{ID: "p1", DriveID: "d7", Path: "/drives/d7/root:/specs"},
	}

	meta := itemToMetadata(item, "fallback-drive")

	assert.Equal(t, "i1", meta.SourceID)
	assert.Equal(t, "spec.pdf", meta.Name)
	assert.Equal(t, "application/pdf", meta.MIMEType)
	require.NotNil(t, meta.Size)
	assert.Equal(t, int64(2048), *meta.Size)
	// cTag, not eTag: metadata touches must not look like content updates.
	assert.Equal(t, "content-tag", meta.ContentHash)
	require.NotNil(t, meta.ModifiedAt)
	assert.True(t, meta.ModifiedAt.Equal(modified))
	assert.Equal(t, "p1", meta.ParentID)
	assert.Equal(t, "d7", meta.Extra["drive_id"], "parent reference drive wins over fallback")
}

func TestUnderFolder(t *testing.T) {
	item := func(path string) *driveItem {
		return &driveItem{ParentReference: &struct {
			ID      string `json:"id"`
			DriveID string `json:"driveId"`
			Path    string `json:"path"`
		}{Path: path}}
	}

	tests := []struct {
		name   string
		item   *driveItem
		folder string
		want   bool
	}{
		{name: "no filter matches all", item: item("/drives/d1/root:/anything"), folder: "", want: true},
		{name: "exact folder", item: item("/drives/d1/root:/specs"), folder: "specs", want: true},
		{name: "nested under folder", item: item("/drives/d1/root:/specs/2024"), folder: "specs", want: true},
		{name: "sibling folder", item: item("/drives/d1/root:/specs-old"), folder: "specs", want: false},
		{name: "outside folder", item: item("/drives/d1/root:/other"), folder: "specs", want: false},
		{name: "no parent reference", item: &driveItem{}, folder: "specs", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, underFolder(tt.item, tt.folder))
		})
	}
}
