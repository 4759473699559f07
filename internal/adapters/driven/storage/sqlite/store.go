package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/gen-mind/echo-mind/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/gen-mind/echo-mind/internal/core/domain"
	"github.com/gen-mind/echo-mind/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to
// all state store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.echomind/data/state.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".echomind", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "state.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// CheckpointStore returns a CheckpointStore interface backed by this store.
func (s *Store) CheckpointStore() driven.CheckpointStore {
	return &checkpointStore{store: s}
}

// RunStore returns a RunStore interface backed by this store.
func (s *Store) RunStore() driven.RunStore {
	return &runStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Checkpoint Store ====================

// checkpointStore implements driven.CheckpointStore.
type checkpointStore struct {
	store *Store
}

var _ driven.CheckpointStore = (*checkpointStore)(nil)

// Save stores or updates the serialized checkpoint for a connector.
func (s *checkpointStore) Save(ctx context.Context, connectorID string, data []byte) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO checkpoints (connector_id, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(connector_id) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at
	`, connectorID, string(data), time.Now().UTC())

	if err != nil {
		return fmt.Errorf("saving checkpoint: %w", err)
	}
	return nil
}

// Get retrieves the serialized checkpoint for a connector.
func (s *checkpointStore) Get(ctx context.Context, connectorID string) ([]byte, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT data FROM checkpoints WHERE connector_id = ?
	`, connectorID)

	var data string
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning checkpoint: %w", err)
	}

	return []byte(data), nil
}

// Delete removes the checkpoint for a connector. Missing rows are not an
// error.
func (s *checkpointStore) Delete(ctx context.Context, connectorID string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM checkpoints WHERE connector_id = ?", connectorID)
	if err != nil {
		return fmt.Errorf("deleting checkpoint: %w", err)
	}
	return nil
}

// ==================== Run Store ====================

// runStore implements driven.RunStore.
type runStore struct {
	store *Store
}

var _ driven.RunStore = (*runStore)(nil)

// Save stores or updates a run record.
func (s *runStore) Save(ctx context.Context, run domain.SyncRun) error {
	var finishedAt sql.NullTime
	if run.FinishedAt != nil {
		finishedAt = sql.NullTime{Time: *run.FinishedAt, Valid: true}
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, connector_id, started_at, finished_at, documents, errors, has_more, failure)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			documents = excluded.documents,
			errors = excluded.errors,
			has_more = excluded.has_more,
			failure = excluded.failure
	`, run.ID, run.ConnectorID, run.StartedAt, finishedAt,
		run.Documents, run.Errors, boolToInt(run.HasMore), run.Failure)

	if err != nil {
		return fmt.Errorf("saving sync run: %w", err)
	}
	return nil
}

// ListByConnector returns the runs for a connector, most recent first.
func (s *runStore) ListByConnector(ctx context.Context, connectorID string) ([]domain.SyncRun, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, connector_id, started_at, finished_at, documents, errors, has_more, failure
		FROM sync_runs WHERE connector_id = ?
		ORDER BY started_at DESC
	`, connectorID)
	if err != nil {
		return nil, fmt.Errorf("querying sync runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.SyncRun //nolint:prealloc // size unknown from query
	for rows.Next() {
		var run domain.SyncRun
		var finishedAt sql.NullTime
		var hasMore int
		if err := rows.Scan(&run.ID, &run.ConnectorID, &run.StartedAt, &finishedAt,
			&run.Documents, &run.Errors, &hasMore, &run.Failure); err != nil {
			return nil, fmt.Errorf("scanning sync run: %w", err)
		}

		if finishedAt.Valid {
			t := finishedAt.Time
			run.FinishedAt = &t
		}
		run.HasMore = hasMore != 0
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync runs: %w", err)
	}

	return runs, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
