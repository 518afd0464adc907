package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultDataDirectory = "data"
	manifestName         = "manifest.json"
)

type SourceData struct {
	Kind      string
	Title     string
	Link      string
	Filename  string
	GUID      string
	Published string
	Chunks    int
	IndexedAt string
}

// Sources records everything that has been written to the vector index so re-running an
// ingest only touches new material.
type Sources struct {
	LastUpdated string
	Sources     map[string]SourceData

	dir string
}

func Load(dataDirectory string) (*Sources, error) {
	manifest := Sources{dir: dataDirectory}
	manifestBytes, err := os.ReadFile(filepath.Join(dataDirectory, manifestName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("unexpected error reading ingest manifest: %w", err)
	}

	if err == nil {
		err = json.Unmarshal(manifestBytes, &manifest)
		if err != nil {
			return nil, fmt.Errorf("unexpected error parsing ingest manifest: %w", err)
		}
	}
	if manifest.Sources == nil {
		manifest.Sources = make(map[string]SourceData)
	}

	return &manifest, nil
}

func (m *Sources) Has(guid string) bool {
	_, ok := m.Sources[guid]
	return ok
}

func (m *Sources) Record(source SourceData) {
	now := time.Now().UTC().Format(time.RFC3339)
	source.IndexedAt = now
	m.Sources[source.GUID] = source
	m.LastUpdated = now
}

func (m *Sources) Update() error {
	manifestBytes, err := json.MarshalIndent(m, "", " ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest for updating: %w", err)
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", m.dir, err)
	}
	err = os.WriteFile(filepath.Join(m.dir, manifestName), manifestBytes, 0644)
	if err != nil {
		return fmt.Errorf("failed to write updated manifest: %w", err)
	}

	return nil
}
