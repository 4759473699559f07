// Package file provides file-based implementations of the driven
// configuration ports using TOML.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/gen-mind/echo-mind/internal/core/domain"
	"github.com/gen-mind/echo-mind/internal/core/ports/driven"
)

// Ensure ConnectorStore implements the interface.
var _ driven.ConnectorStore = (*ConnectorStore)(nil)

// connectorRecord is the TOML shape of one connector entry.
type connectorRecord struct {
	ID        string            `toml:"id"`
	Provider  string            `toml:"provider"`
	Name      string            `toml:"name"`
	Config    map[string]string `toml:"config"`
	CreatedAt time.Time         `toml:"created_at,omitempty"`
	UpdatedAt time.Time         `toml:"updated_at,omitempty"`
}

// connectorsFile is the TOML shape of the whole file.
type connectorsFile struct {
	Connectors []connectorRecord `toml:"connectors"`
}

// ConnectorStore is a TOML-file-backed implementation of
// driven.ConnectorStore. Connectors are declared in a connectors.toml file
// within the echomind config directory.
type ConnectorStore struct {
	mu       sync.RWMutex
	filePath string
	records  []connectorRecord
}

// NewConnectorStore creates a new TOML-based connector store.
// If configDir is empty, defaults to ~/.echomind/connectors.toml.
func NewConnectorStore(configDir string) (*ConnectorStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		configDir = filepath.Join(home, ".echomind")
	}

	// Ensure directory exists
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, err
	}

	s := &ConnectorStore{
		filePath: filepath.Join(configDir, "connectors.toml"),
	}

	if err := s.Load(); err != nil {
		return nil, err
	}

	return s, nil
}

// Load reads connector declarations from the TOML file. A missing file is
// an empty store, not an error.
func (s *ConnectorStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			s.records = nil
			return nil
		}
		return err
	}

	var parsed connectorsFile
	if err := toml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parsing %s: %w", s.filePath, err)
	}

	for _, rec := range parsed.Connectors {
		if rec.ID == "" {
			return fmt.Errorf("parsing %s: connector entry without an id", s.filePath)
		}
		if rec.Provider == "" {
			return fmt.Errorf("parsing %s: connector %s has no provider", s.filePath, rec.ID)
		}
	}

	s.records = parsed.Connectors
	return nil
}

// List returns all configured connectors.
func (s *ConnectorStore) List(_ context.Context) ([]domain.Connector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	connectors := make([]domain.Connector, 0, len(s.records))
	for _, rec := range s.records {
		connectors = append(connectors, recordToConnector(rec))
	}
	return connectors, nil
}

// Get retrieves a connector by ID.
func (s *ConnectorStore) Get(_ context.Context, id string) (domain.Connector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.ID == id {
			return recordToConnector(rec), nil
		}
	}
	return domain.Connector{}, domain.ErrNotFound
}

// Path returns the connectors file path.
func (s *ConnectorStore) Path() string {
	return s.filePath
}

func recordToConnector(rec connectorRecord) domain.Connector {
	cfg := make(domain.Config, len(rec.Config))
	for k, v := range rec.Config {
		cfg[k] = v
	}
	name := rec.Name
	if name == "" {
		name = rec.ID
	}
	return domain.Connector{
		ID:        rec.ID,
		Provider:  rec.Provider,
		Name:      name,
		Config:    cfg,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}
