// Package artifacts serves the cached PNG renders from the cache
// directory, with a small in-memory LRU in front of the disk reads.
// Cached bytes are trusted only while the file's mtime and size are
// unchanged, so an artifact re-rendered in place is picked up on the
// next request.
package artifacts

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

type cached struct {
	data    []byte
	etag    string
	modTime time.Time
	size    int64
}

type Server struct {
	dir    string
	lru    *lru.Cache[string, cached]
	logger *slog.Logger
}

// New prepares the cache directory and the byte cache in front of it.
// The directory is created here so downloads have somewhere to land no
// matter which metadata backend is configured.
func New(dir string, lruSize int, logger *slog.Logger) (*Server, error) {
	if dir == "" {
		return nil, errors.New("cache directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	if lruSize <= 0 {
		lruSize = 128
	}
	c, err := lru.New[string, cached](lruSize)
	if err != nil {
		return nil, fmt.Errorf("artifact lru: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{dir: dir, lru: c, logger: logger}, nil
}

// Invalidate drops cached bytes for the given artifact filenames.
func (s *Server) Invalidate(names ...string) {
	for _, n := range names {
		if n != "" {
			s.lru.Remove(n)
		}
	}
}

// ServeHTTP serves GET <prefix>/<name>.png. Only flat PNG filenames are
// valid; anything with a path separator is rejected before touching the
// filesystem.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/cache/")
	if name == "" || name != filepath.Base(name) || !strings.HasSuffix(name, ".png") {
		http.NotFound(w, r)
		return
	}

	info, err := os.Stat(filepath.Join(s.dir, name))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("artifact stat failed", "name", name, "err", err)
		}
		s.lru.Remove(name)
		http.NotFound(w, r)
		return
	}

	entry, ok := s.lru.Get(name)
	if !ok || !entry.modTime.Equal(info.ModTime()) || entry.size != info.Size() {
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				s.logger.Warn("artifact read failed", "name", name, "err", err)
			}
			http.NotFound(w, r)
			return
		}
		entry = cached{
			data:    data,
			etag:    fmt.Sprintf(`"%016x"`, xxhash.Sum64(data)),
			modTime: info.ModTime(),
			size:    info.Size(),
		}
		s.lru.Add(name, entry)
	}

	if r.Header.Get("If-None-Match") == entry.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("ETag", entry.etag)
	_, _ = w.Write(entry.data)
}
