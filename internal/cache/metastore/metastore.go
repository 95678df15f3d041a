// Package metastore owns the persisted cache metadata index: one record
// per cache key tracking the artifact filenames and statistics produced
// for that key. The whole map is rewritten on every mutation; a failed
// write is logged and swallowed, so memory and disk may diverge.
package metastore

import (
	"log/slog"
	"sync"
	"time"

	"github.com/timcash/earthengine-dem/internal/core/model"
)

// Entry is the mutable record kept per cache key. Fields accrete as
// different artifact types are produced for the same key; none are ever
// removed. ImageFilename stays in the document even when empty so a
// stats-only entry keeps its placeholder.
type Entry struct {
	ImageFilename          string                `json:"imageFilename"`
	CompositeImageFilename string                `json:"compositeImageFilename,omitempty"`
	RoadsImageFilename     string                `json:"roadsImageFilename,omitempty"`
	Region                 *model.Region         `json:"region,omitempty"`
	Stats                  *model.ElevationStats `json:"stats,omitempty"`
	Timestamp              time.Time             `json:"timestamp"`
}

// Backend persists the full metadata map as one document.
type Backend interface {
	Load() (map[string]Entry, error)
	Save(map[string]Entry) error
}

// Store is the single in-process owner of the metadata map. The mutex
// only guards the Go map itself; two concurrent cache misses for the
// same key still race at the whole-save level (last writer wins), which
// is accepted for this service's single-process, low-concurrency target.
type Store struct {
	mu      sync.Mutex
	entries map[string]Entry
	backend Backend
	logger  *slog.Logger
}

// Open loads the persisted document once. A missing document yields an
// empty map; an unreadable or malformed one is logged and discarded
// rather than failing startup.
func Open(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := backend.Load()
	if err != nil {
		logger.Warn("cache metadata unreadable, starting empty", "err", err)
		entries = map[string]Entry{}
	}
	if entries == nil {
		entries = map[string]Entry{}
	}
	return &Store{entries: entries, backend: backend, logger: logger}
}

func (s *Store) Get(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e, ok
}

// Update applies mut to the entry under key, creating it if absent, and
// persists the whole map. Persistence failure is logged only: a cache
// write must never fail a successful render.
func (s *Store) Update(key string, mut func(*Entry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[key]
	mut(&e)
	s.entries[key] = e
	s.save()
}

// Delete removes the given keys and returns the removed entries so the
// caller can clean up their artifact files.
func (s *Store) Delete(keys ...string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := make([]Entry, 0, len(keys))
	changed := false
	for _, k := range keys {
		if e, ok := s.entries[k]; ok {
			removed = append(removed, e)
			delete(s.entries, k)
			changed = true
		}
	}
	if changed {
		s.save()
	}
	return removed
}

// Snapshot returns a copy of the current map for read-only scans.
func (s *Store) Snapshot() map[string]Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(map[string]Entry, len(s.entries))
	for k, v := range s.entries {
		cp[k] = v
	}
	return cp
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// callers hold s.mu
func (s *Store) save() {
	if err := s.backend.Save(s.entries); err != nil {
		s.logger.Error("cache metadata save failed", "err", err, "entries", len(s.entries))
	}
}
