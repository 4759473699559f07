package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen-mind/echo-mind/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})

	return store
}

func TestNewStoreCreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, filepath.Join(dir, "state.db"), store.Path())
	_, err = os.Stat(store.Path())
	assert.NoError(t, err)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening replays nothing and still works.
	store, err = NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.CheckpointStore().Save(context.Background(), "c1", []byte(`{}`)))
}

func TestCheckpointStoreRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	cps := store.CheckpointStore()
	ctx := context.Background()

	payload := []byte(`{"_type":"google_drive","changes_start_page_token":"T1"}`)
	require.NoError(t, cps.Save(ctx, "conn-1", payload))

	got, err := cps.Get(ctx, "conn-1")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestCheckpointStoreSaveOverwrites(t *testing.T) {
	store := setupTestStore(t)
	cps := store.CheckpointStore()
	ctx := context.Background()

	require.NoError(t, cps.Save(ctx, "conn-1", []byte(`{"v":1}`)))
	require.NoError(t, cps.Save(ctx, "conn-1", []byte(`{"v":2}`)))

	got, err := cps.Get(ctx, "conn-1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"v":2}`), got)
}

func TestCheckpointStoreGetMissing(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.CheckpointStore().Get(context.Background(), "unknown")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCheckpointStoreDelete(t *testing.T) {
	store := setupTestStore(t)
	cps := store.CheckpointStore()
	ctx := context.Background()

	require.NoError(t, cps.Save(ctx, "conn-1", []byte(`{}`)))
	require.NoError(t, cps.Delete(ctx, "conn-1"))

	_, err := cps.Get(ctx, "conn-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Deleting a missing checkpoint is not an error.
	assert.NoError(t, cps.Delete(ctx, "conn-1"))
}

func TestRunStoreListsMostRecentFirst(t *testing.T) {
	store := setupTestStore(t)
	runs := store.RunStore()
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	first := domain.SyncRun{ID: "r1", ConnectorID: "conn-1", StartedAt: base, Documents: 3}
	second := domain.SyncRun{ID: "r2", ConnectorID: "conn-1", StartedAt: base.Add(time.Hour), Documents: 1, HasMore: true}
	other := domain.SyncRun{ID: "r3", ConnectorID: "conn-2", StartedAt: base}

	require.NoError(t, runs.Save(ctx, first))
	require.NoError(t, runs.Save(ctx, second))
	require.NoError(t, runs.Save(ctx, other))

	got, err := runs.ListByConnector(ctx, "conn-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r2", got[0].ID)
	assert.True(t, got[0].HasMore)
	assert.Equal(t, "r1", got[1].ID)
}

func TestRunStoreSaveUpdatesCompletion(t *testing.T) {
	store := setupTestStore(t)
	runs := store.RunStore()
	ctx := context.Background()

	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	run := domain.SyncRun{ID: "r1", ConnectorID: "conn-1", StartedAt: started}
	require.NoError(t, runs.Save(ctx, run))

	finished := started.Add(time.Minute)
	run.FinishedAt = &finished
	run.Documents = 7
	run.Errors = 1
	run.Failure = ""
	require.NoError(t, runs.Save(ctx, run))

	got, err := runs.ListByConnector(ctx, "conn-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].FinishedAt)
	assert.True(t, finished.Equal(*got[0].FinishedAt))
	assert.Equal(t, 7, got[0].Documents)
	assert.Equal(t, 1, got[0].Errors)
}
