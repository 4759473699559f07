package msgraph

import (
	"strconv"
	"strings"

	"github.com/gen-mind/echo-mind/internal/core/domain"
)

// DefaultMaxFileSize caps DownloadFile transfers at 100 MB unless the
// connector config overrides it.
const DefaultMaxFileSize = 100 * 1024 * 1024

// Config holds Microsoft Graph provider configuration.
type Config struct {
	// TenantID is the Azure AD tenant for client-credential auth.
	TenantID string

	// ClientID and ClientSecret are the app registration credentials.
	ClientID     string
	ClientSecret string

	// DriveID scopes the sync to one drive (optional). When set, site and
	// drive discovery is skipped entirely.
	DriveID string

	// FolderPath restricts items to a path prefix within a drive (optional).
	FolderPath string

	// BaseURL overrides the Graph endpoint; tests point it at a fake.
	BaseURL string

	// MaxFileSize is the byte limit enforced by DownloadFile.
	MaxFileSize int64
}

// ParseConfig extracts provider configuration from the connector config map.
// Unrecognised keys are ignored.
func ParseConfig(cfg domain.Config) *Config {
	out := &Config{
		TenantID:     strings.TrimSpace(cfg["tenant_id"]),
		ClientID:     strings.TrimSpace(cfg["client_id"]),
		ClientSecret: cfg["client_secret"],
		DriveID:      strings.TrimSpace(cfg["drive_id"]),
		FolderPath:   strings.Trim(strings.TrimSpace(cfg["folder_path"]), "/"),
		BaseURL:      strings.TrimSpace(cfg["base_url"]),
		MaxFileSize:  DefaultMaxFileSize,
	}

	if val := cfg["max_file_size"]; val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil && n > 0 {
			out.MaxFileSize = n
		}
	}

	return out
}
