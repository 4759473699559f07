package domain

import "time"

// Config carries provider-specific configuration as string key-value pairs.
// Providers pick out the keys they understand and ignore the rest.
type Config map[string]string

// FileMetadata describes a discovered item on an external system.
// Instances are immutable once constructed within a sync pass.
type FileMetadata struct {
	// SourceID is the provider-native identifier, stable across syncs.
	SourceID string

	// Name is the display name of the item.
	Name string

	// MIMEType is the content type reported by the provider.
	MIMEType string

	// Size is the size in bytes, when the provider reports one.
	Size *int64

	// ContentHash is a provider-specific content fingerprint (checksum or
	// change tag). Absent for exported/derived formats.
	ContentHash string

	// ModifiedAt and CreatedAt are provider timestamps, when known.
	ModifiedAt *time.Time
	CreatedAt  *time.Time

	// WebURL is a browser link to the item, when known.
	WebURL string

	// ParentID identifies the immediate parent container, when known.
	ParentID string

	// Extra holds provider-specific fields such as drive identifiers.
	Extra map[string]string
}

// ChangeAction is the kind of change reported by a provider's change feed.
type ChangeAction string

const (
	// ChangeCreate indicates a newly discovered item.
	ChangeCreate ChangeAction = "create"

	// ChangeUpdate indicates a modified item.
	ChangeUpdate ChangeAction = "update"

	// ChangeDelete indicates a removed item.
	ChangeDelete ChangeAction = "delete"
)

// FileChange is a single change event produced by change detection and
// consumed by the download stage.
type FileChange struct {
	// SourceID identifies the affected item.
	SourceID string

	// Action is the kind of change.
	Action ChangeAction

	// File holds the item metadata. Nil when Action is ChangeDelete.
	File *FileMetadata
}

// DownloadedFile is a fully materialised payload emitted by a sync run.
type DownloadedFile struct {
	SourceID    string
	Name        string
	Content     []byte
	MIMEType    string
	ContentHash string
	ModifiedAt  *time.Time

	// ExternalAccess is the normalised permission model for the item.
	ExternalAccess ExternalAccess

	ParentID    string
	OriginalURL string
}

// DeletedFile signals that an item no longer exists at the source.
type DeletedFile struct {
	SourceID string
}

// StreamResult describes content delivered to a storage sink rather than
// buffered into a DownloadedFile.
type StreamResult struct {
	StoragePath string
	ETag        string
	Size        int64
	ContentHash string
}

// SyncItem is one element of the sequence produced by a sync run.
// Exactly one of Downloaded or Deleted is set.
type SyncItem struct {
	Downloaded *DownloadedFile
	Deleted    *DeletedFile
}

// DownloadedItem wraps a DownloadedFile as a SyncItem.
func DownloadedItem(f *DownloadedFile) SyncItem {
	return SyncItem{Downloaded: f}
}

// DeletedItem wraps a deletion as a SyncItem.
func DeletedItem(sourceID string) SyncItem {
	return SyncItem{Deleted: &DeletedFile{SourceID: sourceID}}
}
