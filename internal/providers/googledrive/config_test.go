package googledrive

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gen-mind/echo-mind/internal/checkpoint"
	"github.com/gen-mind/echo-mind/internal/core/domain"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg := ParseConfig(domain.Config{})

	assert.Empty(t, cfg.FolderID)
	assert.Empty(t, cfg.UserEmails)
	assert.Equal(t, int64(DefaultMaxFileSize), cfg.MaxFileSize)
	assert.Equal(t, int64(DefaultPageSize), cfg.PageSize)
	assert.True(t, cfg.IncludeSharedDrives)
}

func TestParseConfigOverrides(t *testing.T) {
	cfg := ParseConfig(domain.Config{
		"folder_id":             " folder-1 ",
		"user_emails":           "alice@example.com, bob@example.com ,",
		"max_file_size":         "1048576",
		"page_size":             "25",
		"include_shared_drives": "false",
		"unrelated_key":         "ignored",
	})

	assert.Equal(t, "folder-1", cfg.FolderID)
	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, cfg.UserEmails)
	assert.Equal(t, int64(1048576), cfg.MaxFileSize)
	assert.Equal(t, int64(25), cfg.PageSize)
	assert.False(t, cfg.IncludeSharedDrives)
}

func TestParseConfigRejectsInvalidNumbers(t *testing.T) {
	cfg := ParseConfig(domain.Config{
		"max_file_size": "not-a-number",
		"page_size":     "-5",
	})

	assert.Equal(t, int64(DefaultMaxFileSize), cfg.MaxFileSize)
	assert.Equal(t, int64(DefaultPageSize), cfg.PageSize)
}

func TestFullScanPending(t *testing.T) {
	cp := checkpoint.NewDriveCheckpoint()
	assert.True(t, fullScanPending(cp), "fresh checkpoint needs a full scan")

	// Cursor stored mid-scan: the scan resumes.
	cp.ChangesStartPageToken = "T1"
	cp.Completion("alice@example.com", cp.CompletionStage)
	assert.True(t, fullScanPending(cp))

	// Scan finished: incremental from now on.
	cp.CompletionStage = checkpoint.StageDone
	assert.False(t, fullScanPending(cp))
}
