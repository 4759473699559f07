package checkpoint

// TypeGraph is the wire discriminator for the Microsoft Graph checkpoint.
const TypeGraph = "msgraph"

// SiteDescriptor identifies one SharePoint site discovered during
// enumeration.
type SiteDescriptor struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	WebURL string `json:"web_url,omitempty"`
}

// GraphCheckpoint resumes a Microsoft Graph sync. Site and drive discovery
// results are cached as FIFO work queues so a crash mid-enumeration resumes
// from the next unconsumed entry rather than re-discovering; the current
// slots mark the entry in flight. A stored delta cursor, single-drive or
// per-drive, switches the engine to incremental mode once the queues drain.
type GraphCheckpoint struct {
	ConnectorCheckpoint

	// CachedSiteDescriptors is the FIFO queue of sites still to process.
	CachedSiteDescriptors []SiteDescriptor `json:"cached_site_descriptors"`

	// CurrentSiteDescriptor is the site currently being processed.
	CurrentSiteDescriptor *SiteDescriptor `json:"current_site_descriptor,omitempty"`

	// CachedDriveNames is the FIFO queue of drives within the current site.
	CachedDriveNames []string `json:"cached_drive_names"`

	// CurrentDriveName is the drive currently being processed.
	CurrentDriveName string `json:"current_drive_name,omitempty"`

	// DeltaLink is the cursor URL for a single-drive connector.
	DeltaLink string `json:"delta_link,omitempty"`

	// DriveDeltaLinks maps drive ID to its cursor URL for multi-drive
	// enumeration. Links are recorded page by page, so mid-walk a link is
	// the drive's resume point and after the walk it is the drive's
	// incremental cursor.
	DriveDeltaLinks map[string]string `json:"drive_delta_links,omitempty"`

	// AllRetrievedItemIDs is the global dedupe set for this connector.
	AllRetrievedItemIDs StringSet `json:"all_retrieved_item_ids"`
}

// NewGraphCheckpoint returns a fresh Graph checkpoint with empty queues.
func NewGraphCheckpoint() *GraphCheckpoint {
	return &GraphCheckpoint{
		ConnectorCheckpoint:   NewBase(),
		CachedSiteDescriptors: []SiteDescriptor{},
		CachedDriveNames:      []string{},
		AllRetrievedItemIDs:   NewStringSet(),
	}
}

// Type returns the wire discriminator.
func (c *GraphCheckpoint) Type() string { return TypeGraph }

// MarkRetrieved dedupes item IDs across the whole connector.
func (c *GraphCheckpoint) MarkRetrieved(sourceID string) bool {
	if c.AllRetrievedItemIDs == nil {
		c.AllRetrievedItemIDs = NewStringSet()
	}
	return c.markRetrieved(c.AllRetrievedItemIDs, sourceID)
}

// PopNextSite moves the head of the site queue into the current slot and
// returns it. Returns nil when the queue is exhausted.
func (c *GraphCheckpoint) PopNextSite() *SiteDescriptor {
	if len(c.CachedSiteDescriptors) == 0 {
		c.CurrentSiteDescriptor = nil
		return nil
	}
	head := c.CachedSiteDescriptors[0]
	c.CachedSiteDescriptors = c.CachedSiteDescriptors[1:]
	c.CurrentSiteDescriptor = &head
	return &head
}

// PopNextDrive moves the head of the drive queue into the current slot and
// returns it. The second return is false when the queue is exhausted.
func (c *GraphCheckpoint) PopNextDrive() (string, bool) {
	if len(c.CachedDriveNames) == 0 {
		c.CurrentDriveName = ""
		return "", false
	}
	head := c.CachedDriveNames[0]
	c.CachedDriveNames = c.CachedDriveNames[1:]
	c.CurrentDriveName = head
	return head, true
}

// DriveDeltaLink returns the stored cursor for a drive, empty if none.
func (c *GraphCheckpoint) DriveDeltaLink(driveID string) string {
	return c.DriveDeltaLinks[driveID]
}

// SetDriveDeltaLink stores the cursor for a drive.
func (c *GraphCheckpoint) SetDriveDeltaLink(driveID, link string) {
	if c.DriveDeltaLinks == nil {
		c.DriveDeltaLinks = make(map[string]string)
	}
	c.DriveDeltaLinks[driveID] = link
}

// EnumerationPending reports whether the initial site/drive walk still has
// unconsumed queue entries.
func (c *GraphCheckpoint) EnumerationPending() bool {
	return c.CurrentSiteDescriptor != nil || len(c.CachedSiteDescriptors) > 0 ||
		c.CurrentDriveName != "" || len(c.CachedDriveNames) > 0
}

// Incremental reports whether a delta cursor is known: the single-drive
// link, or per-drive links once the initial enumeration has drained its
// queues.
func (c *GraphCheckpoint) Incremental() bool {
	return c.DeltaLink != "" || (len(c.DriveDeltaLinks) > 0 && !c.EnumerationPending())
}

func (c *GraphCheckpoint) normalize() {
	if c.CachedSiteDescriptors == nil {
		c.CachedSiteDescriptors = []SiteDescriptor{}
	}
	if c.CachedDriveNames == nil {
		c.CachedDriveNames = []string{}
	}
	if c.AllRetrievedItemIDs == nil {
		c.AllRetrievedItemIDs = NewStringSet()
	}
}
