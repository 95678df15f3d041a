package metastore

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/timcash/earthengine-dem/internal/core/model"
)

func TestRedisBackend_RoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	b, err := NewRedisBackend(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("backend: %v", err)
	}
	defer func() { _ = b.Close() }()

	m, err := b.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(m) != 0 {
		t.Fatalf("expected empty map before first save, got %d", len(m))
	}

	region := model.Region{West: 11, South: 55, East: 12, North: 56}
	if err := b.Save(map[string]Entry{
		"k": {ImageFilename: "dem_k.png", Region: &region, Timestamp: time.Now()},
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	out, err := b.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out["k"].ImageFilename != "dem_k.png" {
		t.Fatalf("entry mangled: %+v", out["k"])
	}
}

func TestRedisBackend_MalformedDocument(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	if err := mr.Set(redisDocKey, "{not json"); err != nil {
		t.Fatal(err)
	}

	b, err := NewRedisBackend(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("backend: %v", err)
	}
	defer func() { _ = b.Close() }()

	if _, err := b.Load(); err == nil {
		t.Fatal("expected parse error")
	}
	s := Open(b, nil)
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got %d entries", s.Len())
	}
}
