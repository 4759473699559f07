package googledrive

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/gen-mind/echo-mind/internal/checkpoint"
	"github.com/gen-mind/echo-mind/internal/core/domain"
)

// newFakeProvider wires a provider against an httptest Drive API.
func newFakeProvider(t *testing.T, handler http.Handler) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := drive.NewService(context.Background(),
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

func apiError(w http.ResponseWriter, code int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"code":%d,"message":%q}}`, code, reason)
}

func TestSyncFirstRunFullScan(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/changes/startPageToken", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"startPageToken":"T1"}`)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"user":{"emailAddress":"tester@example.com"}}`)
	})
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"files":[{"id":"f1","name":"a.pdf","mimeType":"application/pdf","size":"9","modifiedTime":"2024-03-01T12:00:00Z"}]}`)
	})
	mux.HandleFunc("/drives", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"drives":[]}`)
	})
	mux.HandleFunc("/files/f1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "hello pdf")
	})
	mux.HandleFunc("/files/f1/permissions", func(w http.ResponseWriter, r *http.Request) {
		apiError(w, http.StatusForbidden, "insufficientFilePermissions")
	})

	p := newFakeProvider(t, mux)
	cp := checkpoint.NewDriveCheckpoint()

	items, errs := p.Sync(context.Background(), domain.Config{}, cp)
	got, runErr := drainSync(t, items, errs)

	require.NoError(t, runErr)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Downloaded)
	assert.Equal(t, "f1", got[0].Downloaded.SourceID)
	assert.Equal(t, "a.pdf", got[0].Downloaded.Name)
	assert.Equal(t, []byte("hello pdf"), got[0].Downloaded.Content)
	// Permission fetch failed: degrade to empty access, still emitted.
	assert.True(t, got[0].Downloaded.ExternalAccess.IsEmpty())

	assert.Equal(t, "T1", cp.ChangesStartPageToken)
	assert.Equal(t, checkpoint.StageDone, cp.CompletionStage)
	assert.Equal(t, 1, cp.DocumentsProcessed)
	assert.Zero(t, cp.ErrorCount)
	assert.False(t, cp.HasMore)
}

func TestSyncFolderScopedScanSkipsDriveEnumeration(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/changes/startPageToken", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"startPageToken":"T1"}`)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"user":{"emailAddress":"tester@example.com"}}`)
	})
	mux.HandleFunc("/drives", func(w http.ResponseWriter, r *http.Request) {
		t.Error("shared-drive listing must not run for a folder-scoped connector")
	})
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		assert.Contains(t, q, "'folder-1' in parents")
		assert.NotContains(t, q, "'me' in owners")
		writeJSON(w, `{"files":[{"id":"f9","name":"scoped.txt","mimeType":"text/plain","size":"6","modifiedTime":"2024-03-01T12:00:00Z"}]}`)
	})
	mux.HandleFunc("/files/f9", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "scoped")
	})
	mux.HandleFunc("/files/f9/permissions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"permissions":[]}`)
	})

	p := newFakeProvider(t, mux)
	cp := checkpoint.NewDriveCheckpoint()

	items, errs := p.Sync(context.Background(), domain.Config{"folder_id": "folder-1"}, cp)
	got, runErr := drainSync(t, items, errs)

	require.NoError(t, runErr)
	require.Len(t, got, 1)
	assert.Equal(t, "f9", got[0].Downloaded.SourceID)
	assert.Equal(t, checkpoint.StageDone, cp.CompletionStage)
}

func TestSyncSharedDrivesListedOnce(t *testing.T) {
	var driveListCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/changes/startPageToken", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"startPageToken":"T1"}`)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"user":{"emailAddress":"tester@example.com"}}`)
	})
	mux.HandleFunc("/drives", func(w http.ResponseWriter, r *http.Request) {
		driveListCalls++
		writeJSON(w, `{"drives":[{"id":"sd1"}]}`)
	})
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("driveId") == "sd1" {
			writeJSON(w, `{"files":[{"id":"d1","name":"shared.txt","mimeType":"text/plain","size":"6","modifiedTime":"2024-03-02T12:00:00Z"}]}`)
			return
		}
		writeJSON(w, `{"files":[]}`)
	})
	mux.HandleFunc("/files/d1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "shared")
	})
	mux.HandleFunc("/files/d1/permissions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"permissions":[]}`)
	})

	p := newFakeProvider(t, mux)
	cp := checkpoint.NewDriveCheckpoint()

	items, errs := p.Sync(context.Background(), domain.Config{}, cp)
	got, runErr := drainSync(t, items, errs)

	require.NoError(t, runErr)
	require.Len(t, got, 1)
	assert.Equal(t, "d1", got[0].Downloaded.SourceID)

	// Discovery records the work set; the file stage consumes it instead of
	// re-listing the drives.
	assert.Equal(t, 1, driveListCalls)
	sc := cp.CompletionMap["tester@example.com"]
	require.NotNil(t, sc)
	assert.True(t, sc.ProcessedDriveIDs.Contains("sd1"))
	assert.Empty(t, sc.DiscoveredDriveIDs)
}

func TestSyncIncrementalDelete(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/changes", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "T1", r.URL.Query().Get("pageToken"))
		writeJSON(w, `{"changes":[{"fileId":"f1","removed":true}],"newStartPageToken":"T2"}`)
	})

	p := newFakeProvider(t, mux)
	cp := checkpoint.NewDriveCheckpoint()
	cp.ChangesStartPageToken = "T1"

	items, errs := p.Sync(context.Background(), domain.Config{}, cp)
	got, runErr := drainSync(t, items, errs)

	require.NoError(t, runErr)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Deleted)
	assert.Equal(t, "f1", got[0].Deleted.SourceID)
	assert.Equal(t, "T2", cp.ChangesStartPageToken)
	assert.False(t, cp.HasMore)
}

func TestSyncIncrementalCursorAdvancesPerPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/changes", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("pageToken") {
		case "T1":
			writeJSON(w, `{"changes":[{"fileId":"f1","removed":true}],"nextPageToken":"T1b"}`)
		case "T1b":
			writeJSON(w, `{"changes":[{"fileId":"f2","removed":true}],"newStartPageToken":"T2"}`)
		default:
			apiError(w, http.StatusBadRequest, "unexpected pageToken")
		}
	})

	p := newFakeProvider(t, mux)
	cp := checkpoint.NewDriveCheckpoint()
	cp.ChangesStartPageToken = "T1"

	changes, errs := p.Changes(context.Background(), domain.Config{}, cp)

	var ids []string
	for change := range changes {
		ids = append(ids, change.SourceID)
	}
	for range errs {
	}

	assert.Equal(t, []string{"f1", "f2"}, ids)
	assert.Equal(t, "T2", cp.ChangesStartPageToken)
}

func TestDownloadFileWorkspaceExportForbidden(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/files/doc1/export", func(w http.ResponseWriter, r *http.Request) {
		apiError(w, http.StatusForbidden, "exportSizeLimitExceeded")
	})

	p := newFakeProvider(t, mux)
	file := &domain.FileMetadata{SourceID: "doc1", Name: "Big Doc", MIMEType: mimeTypeGoogleDoc}

	_, err := p.DownloadFile(context.Background(), file, domain.Config{})
	require.Error(t, err)

	var exportErr *domain.ExportError
	require.ErrorAs(t, err, &exportErr)
	assert.Contains(t, exportErr.Error(), "10MB")
	assert.True(t, domain.IsRecoverable(err))
}

func TestDownloadFileWorkspaceExport(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/files/sheet1/export", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/csv", r.URL.Query().Get("mimeType"))
		fmt.Fprint(w, "a,b\n1,2\n")
	})

	p := newFakeProvider(t, mux)
	file := &domain.FileMetadata{SourceID: "sheet1", Name: "Numbers", MIMEType: mimeTypeGoogleSheet, ContentHash: "ignored"}

	got, err := p.DownloadFile(context.Background(), file, domain.Config{})
	require.NoError(t, err)
	assert.Equal(t, "text/csv", got.MIMEType)
	assert.Equal(t, "a,b\n1,2\n", string(got.Content))
	// Exported content has no provider checksum.
	assert.Empty(t, got.ContentHash)
}

func TestDownloadFileTooLargeBeforeTransfer(t *testing.T) {
	p := New() // no HTTP call expected
	size := int64(2 * 1024 * 1024)
	file := &domain.FileMetadata{SourceID: "big1", MIMEType: "application/zip", Size: &size}

	_, err := p.DownloadFile(context.Background(), file, domain.Config{"max_file_size": "1048576"})

	var tooLarge *domain.FileTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, size, tooLarge.Size)
	assert.Equal(t, int64(1048576), tooLarge.Limit)
}

func TestDownloadFileTooLargeAfterTransfer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/files/sneaky", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 64))
	})

	p := newFakeProvider(t, mux)
	// No declared size: the limit is enforced after the transfer.
	file := &domain.FileMetadata{SourceID: "sneaky", MIMEType: "application/octet-stream"}

	_, err := p.DownloadFile(context.Background(), file, domain.Config{"max_file_size": "32"})

	var tooLarge *domain.FileTooLargeError
	require.ErrorAs(t, err, &tooLarge)
}

type captureStorage struct {
	bucket, key, contentType string
	data                     []byte
}

func (c *captureStorage) Upload(_ context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	c.bucket, c.key, c.data, c.contentType = bucket, key, data, contentType
	return "etag-123", nil
}

func TestStreamToStorageRegularFile(t *testing.T) {
	payload := strings.Repeat("chunked content ", 4096) // larger than one chunk

	mux := http.NewServeMux()
	mux.HandleFunc("/files/f9", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, payload)
	})

	p := newFakeProvider(t, mux)
	file := &domain.FileMetadata{SourceID: "f9", MIMEType: "text/plain", ContentHash: "md5-abc"}
	sink := &captureStorage{}

	res, err := p.StreamToStorage(context.Background(), file, domain.Config{}, sink, "docs", "f9.txt")
	require.NoError(t, err)

	assert.Equal(t, "docs/f9.txt", res.StoragePath)
	assert.Equal(t, "etag-123", res.ETag)
	assert.Equal(t, int64(len(payload)), res.Size)
	assert.Equal(t, "md5-abc", res.ContentHash)
	assert.Equal(t, payload, string(sink.data))
	assert.Equal(t, "text/plain", sink.contentType)
}

func TestFilePermissionsNormalisation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want domain.ExternalAccess
	}{
		{
			name: "anyone link wins",
			body: `{"permissions":[{"type":"user","emailAddress":"a@example.com","role":"reader"},{"type":"anyone"}]}`,
			want: domain.PublicAccess(),
		},
		{
			name: "users and groups",
			body: `{"permissions":[{"type":"user","emailAddress":"owner@example.com","role":"owner"},{"type":"user","emailAddress":"a@example.com","role":"writer"},{"type":"group","emailAddress":"eng@example.com","role":"reader"}]}`,
			want: domain.AccessForUsersAndGroups([]string{"a@example.com"}, []string{"eng@example.com"}),
		},
		{
			name: "owner only",
			body: `{"permissions":[{"type":"user","emailAddress":"owner@example.com","role":"owner"}]}`,
			want: domain.EmptyAccess(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/files/f1/permissions", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.body)
			})

			p := newFakeProvider(t, mux)
			got := p.FilePermissions(context.Background(), &domain.FileMetadata{SourceID: "f1"}, domain.Config{})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRetryAfterHeaderForms(t *testing.T) {
	secs := &googleapi.Error{Code: 429, Header: http.Header{"Retry-After": []string{"30"}}}
	assert.Equal(t, 30*time.Second, retryAfterOf(secs))

	date := &googleapi.Error{Code: 429, Header: http.Header{
		"Retry-After": []string{time.Now().Add(90 * time.Second).UTC().Format(http.TimeFormat)},
	}}
	got := retryAfterOf(date)
	assert.Greater(t, got, 30*time.Second)
	assert.LessOrEqual(t, got, 90*time.Second)

	assert.Equal(t, time.Minute, retryAfterOf(&googleapi.Error{Code: 429}))
}

func TestCheckConnection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"user":{"emailAddress":"tester@example.com"}}`)
	})

	p := newFakeProvider(t, mux)
	assert.True(t, p.CheckConnection(context.Background()))

	unauthenticated := New()
	assert.False(t, unauthenticated.CheckConnection(context.Background()))
}

func TestProviderIdentity(t *testing.T) {
	p := New()
	assert.Equal(t, "google_drive", p.Name())

	cp := p.CreateCheckpoint()
	assert.Equal(t, checkpoint.TypeDrive, cp.Type())

	require.NoError(t, p.Close())
	require.NoError(t, p.Close()) // idempotent
	assert.ErrorIs(t, p.Authenticate(context.Background(), domain.Config{"access_token": "t"}), domain.ErrProviderClosed)
}

func TestCoerceCheckpointReplacesForeignVariant(t *testing.T) {
	foreign := checkpoint.NewGmailCheckpoint()
	got := coerceCheckpoint(foreign)
	assert.Equal(t, checkpoint.TypeDrive, got.Type())

	own := checkpoint.NewDriveCheckpoint()
	own.ChangesStartPageToken = "T1"
	assert.Same(t, own, coerceCheckpoint(own))
}
