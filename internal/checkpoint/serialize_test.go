package checkpoint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen-mind/echo-mind/internal/core/domain"
)

func TestSerializeCarriesTypeDiscriminator(t *testing.T) {
	tests := []struct {
		name string
		cp   Checkpoint
		typ  string
	}{
		{name: "drive", cp: NewDriveCheckpoint(), typ: TypeDrive},
		{name: "graph", cp: NewGraphCheckpoint(), typ: TypeGraph},
		{name: "gmail", cp: NewGmailCheckpoint(), typ: TypeGmail},
		{name: "calendar", cp: NewCalendarCheckpoint(), typ: TypeCalendar},
		{name: "contacts", cp: NewContactsCheckpoint(), typ: TypeContacts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Serialize(tt.cp)
			require.NoError(t, err)
			assert.Contains(t, string(data), `"_type":"`+tt.typ+`"`)

			decoded, err := Deserialize(data)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, decoded.Type())
		})
	}
}

func TestDeserializeUnknownType(t *testing.T) {
	_, err := Deserialize([]byte(`{"_type":"sharepoint_legacy","has_more":true}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownCheckpointType)
	assert.Contains(t, err.Error(), "sharepoint_legacy")
}

func TestDeserializeMissingType(t *testing.T) {
	_, err := Deserialize([]byte(`{"has_more":true}`))
	assert.ErrorIs(t, err, domain.ErrUnknownCheckpointType)
}

func TestDeserializeInvalidJSON(t *testing.T) {
	_, err := Deserialize([]byte(`{not json`))
	assert.Error(t, err)
}

func TestDriveCheckpointRoundTrip(t *testing.T) {
	cutoff := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	cp := NewDriveCheckpoint()
	cp.LastSyncStart = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	cp.ErrorCount = 2
	cp.CompletionStage = StageSharedDriveFiles
	cp.ChangesStartPageToken = ""
	cp.MarkRetrieved("file-a")
	cp.MarkRetrieved("file-b")

	sc := cp.Completion("alice@example.com", StageSharedDriveFiles)
	sc.CompletedUntil = cutoff
	sc.CurrentID = "drive-7"
	sc.NextPageToken = "page-token-3"
	sc.ProcessedDriveIDs.Add("drive-5")
	sc.ProcessedDriveIDs.Add("drive-6")

	data, err := Serialize(cp)
	require.NoError(t, err)

	decoded, err := Deserialize(data)
	require.NoError(t, err)

	got, ok := decoded.(*DriveCheckpoint)
	require.True(t, ok)

	assert.Equal(t, cp.LastSyncStart, got.LastSyncStart)
	assert.Equal(t, 2, got.ErrorCount)
	assert.Equal(t, 2, got.DocumentsProcessed)
	assert.Equal(t, StageSharedDriveFiles, got.CompletionStage)
	assert.True(t, got.AllRetrievedFileIDs.Contains("file-a"))
	assert.True(t, got.AllRetrievedFileIDs.Contains("file-b"))
	assert.False(t, got.Incremental())

	gotSC, ok := got.CompletionMap["alice@example.com"]
	require.True(t, ok)
	assert.Equal(t, StageSharedDriveFiles, gotSC.Stage)
	assert.True(t, gotSC.CompletedUntil.Equal(cutoff))
	assert.Equal(t, "drive-7", gotSC.CurrentID)
	assert.Equal(t, "page-token-3", gotSC.NextPageToken)
	assert.True(t, gotSC.ProcessedDriveIDs.Contains("drive-5"))
	assert.True(t, gotSC.ProcessedDriveIDs.Contains("drive-6"))
}

func TestDriveCheckpointIncrementalAfterTokenStored(t *testing.T) {
	cp := NewDriveCheckpoint()
	assert.False(t, cp.Incremental())

	cp.ChangesStartPageToken = "token-4711"

	data, err := Serialize(cp)
	require.NoError(t, err)
	decoded, err := Deserialize(data)
	require.NoError(t, err)

	got := decoded.(*DriveCheckpoint)
	assert.True(t, got.Incremental())
	assert.Equal(t, "token-4711", got.ChangesStartPageToken)
}

func TestGraphCheckpointRoundTrip(t *testing.T) {
	cp := NewGraphCheckpoint()
	cp.CachedSiteDescriptors = []SiteDescriptor{
		{ID: "site-1", Name: "Engineering", WebURL: "https://contoso.sharepoint.com/sites/eng"},
		{ID: "site-2", Name: "Marketing"},
	}
	cp.CurrentSiteDescriptor = &SiteDescriptor{ID: "site-0", Name: "Root"}
	cp.CachedDriveNames = []string{"Documents", "Shared"}
	cp.CurrentDriveName = "Archive"
	cp.DeltaLink = "https://graph.microsoft.com/v1.0/drives/x/root/delta?token=abc"
	cp.MarkRetrieved("item-1")

	data, err := Serialize(cp)
	require.NoError(t, err)

	decoded, err := Deserialize(data)
	require.NoError(t, err)

	got, ok := decoded.(*GraphCheckpoint)
	require.True(t, ok)

	assert.Equal(t, cp.CachedSiteDescriptors, got.CachedSiteDescriptors)
	require.NotNil(t, got.CurrentSiteDescriptor)
	assert.Equal(t, "site-0", got.CurrentSiteDescriptor.ID)
	assert.Equal(t, []string{"Documents", "Shared"}, got.CachedDriveNames)
	assert.Equal(t, "Archive", got.CurrentDriveName)
	assert.True(t, got.Incremental())
	assert.True(t, got.AllRetrievedItemIDs.Contains("item-1"))
}

func TestGraphQueuePopResumesAcrossSerialization(t *testing.T) {
	cp := NewGraphCheckpoint()
	cp.CachedSiteDescriptors = []SiteDescriptor{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	site := cp.PopNextSite()
	require.NotNil(t, site)
	assert.Equal(t, "a", site.ID)

	// Crash here: the popped site is in the current slot, the rest stay
	// queued. A restart must not lose "b" or "c".
	data, err := Serialize(cp)
	require.NoError(t, err)
	decoded, err := Deserialize(data)
	require.NoError(t, err)
	got := decoded.(*GraphCheckpoint)

	require.NotNil(t, got.CurrentSiteDescriptor)
	assert.Equal(t, "a", got.CurrentSiteDescriptor.ID)

	next := got.PopNextSite()
	require.NotNil(t, next)
	assert.Equal(t, "b", next.ID)

	next = got.PopNextSite()
	require.NotNil(t, next)
	assert.Equal(t, "c", next.ID)

	assert.Nil(t, got.PopNextSite())
	assert.Nil(t, got.CurrentSiteDescriptor)
}

func TestGraphDriveQueuePop(t *testing.T) {
	cp := NewGraphCheckpoint()
	cp.CachedDriveNames = []string{"one", "two"}

	name, ok := cp.PopNextDrive()
	require.True(t, ok)
	assert.Equal(t, "one", name)
	assert.Equal(t, "one", cp.CurrentDriveName)

	name, ok = cp.PopNextDrive()
	require.True(t, ok)
	assert.Equal(t, "two", name)

	_, ok = cp.PopNextDrive()
	assert.False(t, ok)
	assert.Empty(t, cp.CurrentDriveName)
}

func TestGraphPerDriveCursorsGateIncrementalMode(t *testing.T) {
	cp := NewGraphCheckpoint()
	cp.SetDriveDeltaLink("d1", "https://graph.microsoft.com/v1.0/drives/d1/root/delta?token=t1")
	assert.True(t, cp.Incremental())

	// Unconsumed queue entries keep the engine in enumeration mode even
	// though some drives already have cursors.
	cp.CachedDriveNames = []string{"d2"}
	assert.True(t, cp.EnumerationPending())
	assert.False(t, cp.Incremental())

	cp.CachedDriveNames = nil
	data, err := Serialize(cp)
	require.NoError(t, err)
	decoded, err := Deserialize(data)
	require.NoError(t, err)
	got := decoded.(*GraphCheckpoint)

	assert.Equal(t, "https://graph.microsoft.com/v1.0/drives/d1/root/delta?token=t1", got.DriveDeltaLink("d1"))
	assert.True(t, got.Incremental())
}

func TestGmailCheckpointRoundTrip(t *testing.T) {
	cp := NewGmailCheckpoint()
	cp.HistoryID = 918273
	cp.PendingHistoryID = 918300
	cp.PageToken = "pg-2"
	cp.MarkRetrieved("msg-1")

	data, err := Serialize(cp)
	require.NoError(t, err)
	decoded, err := Deserialize(data)
	require.NoError(t, err)

	got, ok := decoded.(*GmailCheckpoint)
	require.True(t, ok)
	assert.Equal(t, uint64(918273), got.HistoryID)
	assert.Equal(t, uint64(918300), got.PendingHistoryID)
	assert.Equal(t, "pg-2", got.PageToken)
	assert.True(t, got.ProcessedMessageIDs.Contains("msg-1"))
	assert.True(t, got.Incremental())
}

func TestCalendarCheckpointRoundTrip(t *testing.T) {
	cp := NewCalendarCheckpoint()
	cp.CalendarIDs = []string{"primary", "team@group.calendar.google.com"}
	cp.CurrentCalendarIdx = 1
	cp.SetSyncToken("primary", "tok-primary")
	cp.MarkRetrieved("event-1")

	data, err := Serialize(cp)
	require.NoError(t, err)
	decoded, err := Deserialize(data)
	require.NoError(t, err)

	got, ok := decoded.(*CalendarCheckpoint)
	require.True(t, ok)
	assert.Equal(t, []string{"primary", "team@group.calendar.google.com"}, got.CalendarIDs)
	assert.Equal(t, 1, got.CurrentCalendarIdx)
	assert.Equal(t, "tok-primary", got.SyncToken("primary"))
	assert.Empty(t, got.SyncToken("team@group.calendar.google.com"))
	assert.True(t, got.ProcessedEventIDs.Contains("event-1"))
}

func TestContactsCheckpointRoundTrip(t *testing.T) {
	cp := NewContactsCheckpoint()
	cp.SyncToken = "people-sync-token"
	cp.PageToken = "people-page"
	cp.MarkRetrieved("people/c123")

	data, err := Serialize(cp)
	require.NoError(t, err)
	decoded, err := Deserialize(data)
	require.NoError(t, err)

	got, ok := decoded.(*ContactsCheckpoint)
	require.True(t, ok)
	assert.Equal(t, "people-sync-token", got.SyncToken)
	assert.Equal(t, "people-page", got.PageToken)
	assert.True(t, got.ProcessedContactIDs.Contains("people/c123"))
	assert.True(t, got.Incremental())
}

func TestDeserializeNormalizesEmptyCollections(t *testing.T) {
	// Hand-written minimal payloads, as an older engine version might have
	// stored them: no sets, no maps.
	tests := []struct {
		name string
		data string
	}{
		{name: "drive", data: `{"_type":"google_drive","has_more":true}`},
		{name: "graph", data: `{"_type":"msgraph","has_more":false}`},
		{name: "gmail", data: `{"_type":"gmail"}`},
		{name: "calendar", data: `{"_type":"google_calendar"}`},
		{name: "contacts", data: `{"_type":"google_contacts"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := Deserialize([]byte(tt.data))
			require.NoError(t, err)
			assert.True(t, decoded.MarkRetrieved("some-id"))
			assert.Equal(t, 1, decoded.Base().DocumentsProcessed)
		})
	}
}

func TestCompletionStageNext(t *testing.T) {
	assert.Equal(t, StageUserEmails, StageStart.Next())
	assert.Equal(t, StageMyDriveFiles, StageUserEmails.Next())
	assert.Equal(t, StageDriveIDs, StageMyDriveFiles.Next())
	assert.Equal(t, StageSharedDriveFiles, StageDriveIDs.Next())
	assert.Equal(t, StageFolderFiles, StageSharedDriveFiles.Next())
	assert.Equal(t, StageDone, StageFolderFiles.Next())
	assert.Equal(t, StageDone, StageDone.Next())
	assert.Equal(t, StageDone, CompletionStage("bogus").Next())
}
