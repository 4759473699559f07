package checkpoint

import "time"

// TypeDrive is the wire discriminator for the Google Drive checkpoint.
const TypeDrive = "google_drive"

// CompletionStage tracks progress through the multi-stage full enumeration
// of a large Drive deployment. Stages advance strictly in order; each stage
// only advances after exhausting its own pagination.
type CompletionStage string

const (
	StageStart            CompletionStage = "start"
	StageUserEmails       CompletionStage = "user_emails"
	StageMyDriveFiles     CompletionStage = "my_drive_files"
	StageDriveIDs         CompletionStage = "drive_ids"
	StageSharedDriveFiles CompletionStage = "shared_drive_files"
	StageFolderFiles      CompletionStage = "folder_files"
	StageDone             CompletionStage = "done"
)

// stageOrder is the fixed progression of the full-scan state machine.
var stageOrder = []CompletionStage{
	StageStart,
	StageUserEmails,
	StageMyDriveFiles,
	StageDriveIDs,
	StageSharedDriveFiles,
	StageFolderFiles,
	StageDone,
}

// Before reports whether s comes strictly before t in the progression.
// Unknown stages sort last.
func (s CompletionStage) Before(t CompletionStage) bool {
	return stageIndex(s) < stageIndex(t)
}

func stageIndex(s CompletionStage) int {
	for i, stage := range stageOrder {
		if stage == s {
			return i
		}
	}
	return len(stageOrder)
}

// Next returns the stage after s, or StageDone when s is the last stage or
// unknown.
func (s CompletionStage) Next() CompletionStage {
	for i, stage := range stageOrder {
		if stage == s && i+1 < len(stageOrder) {
			return stageOrder[i+1]
		}
	}
	return StageDone
}

// StageCompletion records one identity's progress through a stage, letting a
// restarted scan resume mid-stage instead of from the beginning.
type StageCompletion struct {
	// Stage is the stage this identity is currently working through.
	Stage CompletionStage `json:"stage"`

	// CompletedUntil is a monotonic cursor within the stage; listings are
	// ordered by modified time so this marks how far the scan got.
	CompletedUntil time.Time `json:"completed_until"`

	// CurrentID is the folder or shared-drive ID being enumerated.
	CurrentID string `json:"current_folder_or_drive_id,omitempty"`

	// NextPageToken resumes pagination within CurrentID.
	NextPageToken string `json:"next_page_token,omitempty"`

	// DiscoveredDriveIDs is the shared-drive work set captured by the
	// drive-discovery stage and consumed by the shared-drive file stage.
	DiscoveredDriveIDs []string `json:"discovered_drive_ids,omitempty"`

	// ProcessedDriveIDs dedupes shared-drive enumeration across restarts.
	ProcessedDriveIDs StringSet `json:"processed_drive_ids"`
}

// DriveCheckpoint resumes a Google Drive sync. A fresh checkpoint always
// starts at StageStart; once ChangesStartPageToken is set the engine runs in
// incremental mode and never touches the stage fields again.
type DriveCheckpoint struct {
	ConnectorCheckpoint

	// CompletionStage is the overall position in the full-scan machine.
	CompletionStage CompletionStage `json:"completion_stage"`

	// CompletionMap holds per-identity stage progress, keyed by the email
	// of the identity whose drives are being scanned.
	CompletionMap map[string]*StageCompletion `json:"completion_map"`

	// AllRetrievedFileIDs is the global dedupe set for this connector.
	AllRetrievedFileIDs StringSet `json:"all_retrieved_file_ids"`

	// ChangesStartPageToken is the change-feed cursor. Non-empty switches
	// the engine from full-scan to incremental mode.
	ChangesStartPageToken string `json:"changes_start_page_token,omitempty"`
}

// NewDriveCheckpoint returns a fresh Drive checkpoint at StageStart.
func NewDriveCheckpoint() *DriveCheckpoint {
	return &DriveCheckpoint{
		ConnectorCheckpoint: NewBase(),
		CompletionStage:     StageStart,
		CompletionMap:       make(map[string]*StageCompletion),
		AllRetrievedFileIDs: NewStringSet(),
	}
}

// Type returns the wire discriminator.
func (c *DriveCheckpoint) Type() string { return TypeDrive }

// MarkRetrieved dedupes file IDs across the whole connector.
func (c *DriveCheckpoint) MarkRetrieved(sourceID string) bool {
	if c.AllRetrievedFileIDs == nil {
		c.AllRetrievedFileIDs = NewStringSet()
	}
	return c.markRetrieved(c.AllRetrievedFileIDs, sourceID)
}

// Completion returns the stage record for an identity, creating it at the
// given stage if absent.
func (c *DriveCheckpoint) Completion(email string, stage CompletionStage) *StageCompletion {
	if c.CompletionMap == nil {
		c.CompletionMap = make(map[string]*StageCompletion)
	}
	sc, ok := c.CompletionMap[email]
	if !ok {
		sc = &StageCompletion{Stage: stage, ProcessedDriveIDs: NewStringSet()}
		c.CompletionMap[email] = sc
	}
	if sc.ProcessedDriveIDs == nil {
		sc.ProcessedDriveIDs = NewStringSet()
	}
	return sc
}

// Incremental reports whether the change-feed cursor is known, i.e. the
// engine runs in incremental mode.
func (c *DriveCheckpoint) Incremental() bool {
	return c.ChangesStartPageToken != ""
}

func (c *DriveCheckpoint) normalize() {
	if c.CompletionStage == "" {
		c.CompletionStage = StageStart
	}
	if c.CompletionMap == nil {
		c.CompletionMap = make(map[string]*StageCompletion)
	}
	for _, sc := range c.CompletionMap {
		if sc.ProcessedDriveIDs == nil {
			sc.ProcessedDriveIDs = NewStringSet()
		}
	}
	if c.AllRetrievedFileIDs == nil {
		c.AllRetrievedFileIDs = NewStringSet()
	}
}
