package gcalendar

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/gen-mind/echo-mind/internal/checkpoint"
	"github.com/gen-mind/echo-mind/internal/core/domain"
)

// newFakeProvider wires a provider against an httptest Calendar API.
func newFakeProvider(t *testing.T, handler http.Handler) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := calendar.NewService(context.Background(),
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)

	p := New()
	p.svc = svc
	return p
}

func drainSync(t *testing.T, items <-chan domain.SyncItem, errs <-chan error) ([]domain.SyncItem, error) {
	t.Helper()
	var out []domain.SyncItem
	var runErr error
	for items != nil || errs != nil {
		select {
		case item, ok := <-items:
			if !ok {
				items = nil
				continue
			}
			out = append(out, item)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			runErr = err
		}
	}
	return out, runErr
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, body)
}

func TestSyncFirstRunCapturesCalendarsAndEvents(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/me/calendarList", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"items":[{"id":"cal1"}]}`)
	})
	mux.HandleFunc("/calendars/cal1/events", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("syncToken"))
		writeJSON(w, `{
			"items": [
				{"id":"e1","status":"confirmed","summary":"Planning","updated":"2024-03-01T12:00:00Z"},
				{"id":"e2","status":"cancelled"}
			],
			"nextSyncToken": "S1"
		}`)
	})
	mux.HandleFunc("/calendars/cal1/events/e1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"id":"e1","summary":"Planning","updated":"2024-03-01T12:00:00Z"}`)
	})

	p := newFakeProvider(t, mux)
	cp := checkpoint.NewCalendarCheckpoint()

	items, errs := p.Sync(context.Background(), domain.Config{}, cp)
	got, runErr := drainSync(t, items, errs)

	require.NoError(t, runErr)
	require.Len(t, got, 2)
	require.NotNil(t, got[0].Downloaded)
	assert.Equal(t, "cal1/e1", got[0].Downloaded.SourceID)
	assert.Equal(t, "Planning.json", got[0].Downloaded.Name)
	assert.Contains(t, string(got[0].Downloaded.Content), `"summary":"Planning"`)
	require.NotNil(t, got[1].Deleted)
	assert.Equal(t, "cal1/e2", got[1].Deleted.SourceID)

	assert.Equal(t, "S1", cp.SyncToken("cal1"))
	assert.Empty(t, cp.CalendarIDs)
	assert.Zero(t, cp.CurrentCalendarIdx)
	assert.Equal(t, 1, cp.DocumentsProcessed)
	assert.False(t, cp.HasMore)
}

func TestSyncIncrementalUsesStoredToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/me/calendarList", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"items":[{"id":"cal1"}]}`)
	})
	mux.HandleFunc("/calendars/cal1/events", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "S1", r.URL.Query().Get("syncToken"))
		writeJSON(w, `{
			"items": [{"id":"e1","status":"confirmed","summary":"Planning v2","updated":"2024-03-02T09:00:00Z"}],
			"nextSyncToken": "S2"
		}`)
	})
	mux.HandleFunc("/calendars/cal1/events/e1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"id":"e1","summary":"Planning v2"}`)
	})

	p := newFakeProvider(t, mux)
	cp := checkpoint.NewCalendarCheckpoint()
	cp.SetSyncToken("cal1", "S1")

	items, errs := p.Sync(context.Background(), domain.Config{}, cp)
	got, runErr := drainSync(t, items, errs)

	require.NoError(t, runErr)
	require.Len(t, got, 1)
	assert.Equal(t, "cal1/e1", got[0].Downloaded.SourceID)
	assert.Equal(t, "S2", cp.SyncToken("cal1"))
}

func TestSyncTokenExpiredFallsBackToFullListing(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/users/me/calendarList", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"items":[{"id":"cal1"}]}`)
	})
	mux.HandleFunc("/calendars/cal1/events", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("syncToken") != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusGone)
			fmt.Fprint(w, `{"error":{"code":410,"message":"Sync token is no longer valid"}}`)
			return
		}
		writeJSON(w, `{"items":[{"id":"e1","status":"confirmed","summary":"Standup"}],"nextSyncToken":"S9"}`)
	})
	mux.HandleFunc("/calendars/cal1/events/e1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"id":"e1","summary":"Standup"}`)
	})

	p := newFakeProvider(t, mux)
	cp := checkpoint.NewCalendarCheckpoint()
	cp.SetSyncToken("cal1", "stale")

	items, errs := p.Sync(context.Background(), domain.Config{}, cp)
	got, runErr := drainSync(t, items, errs)

	require.NoError(t, runErr)
	require.Len(t, got, 1)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "S9", cp.SyncToken("cal1"))
}

func TestConfiguredCalendarIDsSkipListing(t *testing.T) {
	var listed []string
	mux := http.NewServeMux()
	mux.HandleFunc("/users/me/calendarList", func(w http.ResponseWriter, r *http.Request) {
		t.Error("calendar list should not be fetched when IDs are configured")
	})
	mux.HandleFunc("/calendars/", func(w http.ResponseWriter, r *http.Request) {
		listed = append(listed, r.URL.Path)
		writeJSON(w, `{"items":[],"nextSyncToken":"S1"}`)
	})

	p := newFakeProvider(t, mux)
	cp := checkpoint.NewCalendarCheckpoint()

	items, errs := p.Sync(context.Background(), domain.Config{"calendar_ids": "beta, alpha"}, cp)
	_, runErr := drainSync(t, items, errs)

	require.NoError(t, runErr)
	// Configured IDs are walked in sorted order.
	assert.Equal(t, []string{"/calendars/alpha/events", "/calendars/beta/events"}, listed)
}

func TestResumesFromCurrentCalendar(t *testing.T) {
	var listed []string
	mux := http.NewServeMux()
	mux.HandleFunc("/calendars/", func(w http.ResponseWriter, r *http.Request) {
		listed = append(listed, r.URL.Path)
		writeJSON(w, `{"items":[],"nextSyncToken":"S1"}`)
	})

	p := newFakeProvider(t, mux)
	cp := checkpoint.NewCalendarCheckpoint()
	cp.CalendarIDs = []string{"cal1", "cal2"}
	cp.CurrentCalendarIdx = 1

	items, errs := p.Sync(context.Background(), domain.Config{}, cp)
	_, runErr := drainSync(t, items, errs)

	require.NoError(t, runErr)
	assert.Equal(t, []string{"/calendars/cal2/events"}, listed)
	assert.Empty(t, cp.CalendarIDs)
}

func TestDownloadFileRequiresEventReference(t *testing.T) {
	p := New()
	_, err := p.DownloadFile(context.Background(), &domain.FileMetadata{SourceID: "cal1/e1"}, domain.Config{})

	var dlErr *domain.DownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.Equal(t, "cal1/e1", dlErr.SourceID)
}

func TestProviderIdentity(t *testing.T) {
	p := New()
	assert.Equal(t, ProviderName, p.Name())
	assert.IsType(t, &checkpoint.CalendarCheckpoint{}, p.CreateCheckpoint())
	assert.True(t, p.FilePermissions(context.Background(), nil, nil).IsEmpty())

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.ErrorIs(t, p.Authenticate(context.Background(), domain.Config{}), domain.ErrProviderClosed)
}
