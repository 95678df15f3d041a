package metastore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// MetadataFilename is the JSON document kept beside the PNG artifacts.
const MetadataFilename = "dem_cache.json"

// FileBackend persists the metadata map as one indented JSON document
// in the cache directory.
type FileBackend struct {
	path string
}

func NewFileBackend(cacheDir string) (*FileBackend, error) {
	if cacheDir == "" {
		return nil, errors.New("cache directory required")
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &FileBackend{path: filepath.Join(cacheDir, MetadataFilename)}, nil
}

func (b *FileBackend) Load() (map[string]Entry, error) {
	raw, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]Entry{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", b.path, err)
	}
	var entries map[string]Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", b.path, err)
	}
	if entries == nil {
		entries = map[string]Entry{}
	}
	return entries, nil
}

func (b *FileBackend) Save(entries map[string]Entry) error {
	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(b.path, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", b.path, err)
	}
	return nil
}
