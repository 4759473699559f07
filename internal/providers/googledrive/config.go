package googledrive

import (
	"strconv"
	"strings"

	"github.com/gen-mind/echo-mind/internal/core/domain"
)

// DefaultMaxFileSize caps DownloadFile transfers at 100 MB unless the
// connector config overrides it.
const DefaultMaxFileSize = 100 * 1024 * 1024

// DefaultPageSize is the page size for Drive API listings.
const DefaultPageSize = 100

// Config holds Google Drive provider configuration.
type Config struct {
	// FolderID restricts the full scan to one folder (optional).
	FolderID string

	// UserEmails lists the identities whose drives the full scan walks.
	// Empty means the authenticated user only.
	UserEmails []string

	// MaxFileSize is the byte limit enforced by DownloadFile.
	MaxFileSize int64

	// PageSize is the page size for API listings.
	PageSize int64

	// IncludeSharedDrives enables shared-drive enumeration in the full scan.
	IncludeSharedDrives bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxFileSize:         DefaultMaxFileSize,
		PageSize:            DefaultPageSize,
		IncludeSharedDrives: true,
	}
}

// ParseConfig extracts provider configuration from the connector config map.
// Unrecognised keys are ignored.
func ParseConfig(cfg domain.Config) *Config {
	out := DefaultConfig()

	if val := cfg["folder_id"]; val != "" {
		out.FolderID = strings.TrimSpace(val)
	}

	if val := cfg["user_emails"]; val != "" {
		emails := strings.Split(val, ",")
		out.UserEmails = make([]string, 0, len(emails))
		for _, e := range emails {
			if e = strings.TrimSpace(e); e != "" {
				out.UserEmails = append(out.UserEmails, e)
			}
		}
	}

	if val := cfg["max_file_size"]; val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil && n > 0 {
			out.MaxFileSize = n
		}
	}

	if val := cfg["page_size"]; val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil && n > 0 {
			out.PageSize = n
		}
	}

	if val := cfg["include_shared_drives"]; val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			out.IncludeSharedDrives = b
		}
	}

	return out
}
