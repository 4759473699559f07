package checkpoint

// Wire discriminators for the lighter Google checkpoint variants.
const (
	TypeGmail    = "gmail"
	TypeCalendar = "google_calendar"
	TypeContacts = "google_contacts"
)

// GmailCheckpoint resumes a Gmail sync via the History API. HistoryID is the
// incremental cursor; PageToken resumes pagination within the current call.
type GmailCheckpoint struct {
	ConnectorCheckpoint

	HistoryID uint64 `json:"history_id,omitempty"`

	// PendingHistoryID is the profile cursor captured before a full listing
	// starts. It is promoted to HistoryID only once the listing drains, so
	// an interrupted listing resumes in full-listing mode with PageToken
	// still a messages-list token.
	PendingHistoryID uint64 `json:"pending_history_id,omitempty"`

	PageToken string `json:"page_token,omitempty"`

	// ProcessedMessageIDs dedupes messages across runs.
	ProcessedMessageIDs StringSet `json:"processed_message_ids"`
}

// NewGmailCheckpoint returns a fresh Gmail checkpoint.
func NewGmailCheckpoint() *GmailCheckpoint {
	return &GmailCheckpoint{
		ConnectorCheckpoint: NewBase(),
		ProcessedMessageIDs: NewStringSet(),
	}
}

// Type returns the wire discriminator.
func (c *GmailCheckpoint) Type() string { return TypeGmail }

// MarkRetrieved dedupes message IDs.
func (c *GmailCheckpoint) MarkRetrieved(sourceID string) bool {
	if c.ProcessedMessageIDs == nil {
		c.ProcessedMessageIDs = NewStringSet()
	}
	return c.markRetrieved(c.ProcessedMessageIDs, sourceID)
}

// Incremental reports whether the history cursor is known.
func (c *GmailCheckpoint) Incremental() bool { return c.HistoryID != 0 }

func (c *GmailCheckpoint) normalize() {
	if c.ProcessedMessageIDs == nil {
		c.ProcessedMessageIDs = NewStringSet()
	}
}

// CalendarCheckpoint resumes a Google Calendar sync. Each calendar carries
// its own sync token; CurrentCalendarIdx marks how far through CalendarIDs
// the current pass got.
type CalendarCheckpoint struct {
	ConnectorCheckpoint

	// SyncTokens maps calendar ID to its incremental sync token.
	SyncTokens map[string]string `json:"sync_tokens"`

	// CalendarIDs is the calendar list captured at the start of a pass.
	CalendarIDs []string `json:"calendar_ids"`

	// CurrentCalendarIdx is the index into CalendarIDs being processed.
	CurrentCalendarIdx int `json:"current_calendar_idx"`

	// ProcessedEventIDs dedupes events across runs.
	ProcessedEventIDs StringSet `json:"processed_event_ids"`
}

// NewCalendarCheckpoint returns a fresh Calendar checkpoint.
func NewCalendarCheckpoint() *CalendarCheckpoint {
	return &CalendarCheckpoint{
		ConnectorCheckpoint: NewBase(),
		SyncTokens:          make(map[string]string),
		CalendarIDs:         []string{},
		ProcessedEventIDs:   NewStringSet(),
	}
}

// Type returns the wire discriminator.
func (c *CalendarCheckpoint) Type() string { return TypeCalendar }

// MarkRetrieved dedupes event IDs.
func (c *CalendarCheckpoint) MarkRetrieved(sourceID string) bool {
	if c.ProcessedEventIDs == nil {
		c.ProcessedEventIDs = NewStringSet()
	}
	return c.markRetrieved(c.ProcessedEventIDs, sourceID)
}

// SyncToken returns the stored token for a calendar, empty if none.
func (c *CalendarCheckpoint) SyncToken(calendarID string) string {
	return c.SyncTokens[calendarID]
}

// SetSyncToken stores the token for a calendar.
func (c *CalendarCheckpoint) SetSyncToken(calendarID, token string) {
	if c.SyncTokens == nil {
		c.SyncTokens = make(map[string]string)
	}
	c.SyncTokens[calendarID] = token
}

func (c *CalendarCheckpoint) normalize() {
	if c.SyncTokens == nil {
		c.SyncTokens = make(map[string]string)
	}
	if c.CalendarIDs == nil {
		c.CalendarIDs = []string{}
	}
	if c.ProcessedEventIDs == nil {
		c.ProcessedEventIDs = NewStringSet()
	}
}

// ContactsCheckpoint resumes a Google Contacts sync via the People API.
type ContactsCheckpoint struct {
	ConnectorCheckpoint

	SyncToken string `json:"sync_token,omitempty"`
	PageToken string `json:"page_token,omitempty"`

	// ProcessedContactIDs dedupes contacts across runs.
	ProcessedContactIDs StringSet `json:"processed_contact_ids"`
}

// NewContactsCheckpoint returns a fresh Contacts checkpoint.
func NewContactsCheckpoint() *ContactsCheckpoint {
	return &ContactsCheckpoint{
		ConnectorCheckpoint: NewBase(),
		ProcessedContactIDs: NewStringSet(),
	}
}

// Type returns the wire discriminator.
func (c *ContactsCheckpoint) Type() string { return TypeContacts }

// MarkRetrieved dedupes contact resource names.
func (c *ContactsCheckpoint) MarkRetrieved(sourceID string) bool {
	if c.ProcessedContactIDs == nil {
		c.ProcessedContactIDs = NewStringSet()
	}
	return c.markRetrieved(c.ProcessedContactIDs, sourceID)
}

// Incremental reports whether the sync token is known.
func (c *ContactsCheckpoint) Incremental() bool { return c.SyncToken != "" }

func (c *ContactsCheckpoint) normalize() {
	if c.ProcessedContactIDs == nil {
		c.ProcessedContactIDs = NewStringSet()
	}
}
