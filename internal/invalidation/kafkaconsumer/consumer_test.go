package kafkaconsumer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/timcash/earthengine-dem/internal/cache/metastore"
	"github.com/timcash/earthengine-dem/internal/core/model"
	"github.com/timcash/earthengine-dem/internal/invalidation"
)

type fakeStore struct {
	mu      sync.Mutex
	entries map[string]metastore.Entry
}

func (f *fakeStore) Snapshot() map[string]metastore.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]metastore.Entry, len(f.entries))
	for k, v := range f.entries {
		out[k] = v
	}
	return out
}

func (f *fakeStore) Delete(keys ...string) []metastore.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed []metastore.Entry
	for _, k := range keys {
		if e, ok := f.entries[k]; ok {
			removed = append(removed, e)
			delete(f.entries, k)
		}
	}
	return removed
}

type fakeDropper struct {
	mu    sync.Mutex
	names []string
}

func (f *fakeDropper) Invalidate(names ...string) {
	f.mu.Lock()
	f.names = append(f.names, names...)
	f.mu.Unlock()
}

type fakeHot struct {
	mu    sync.Mutex
	reset [][]string
}

func (f *fakeHot) Reset(cells ...string) {
	f.mu.Lock()
	f.reset = append(f.reset, cells)
	f.mu.Unlock()
}

type sess struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *sess) Claims() map[string][]int32 { return nil }
func (s *sess) MemberID() string           { return "" }
func (s *sess) GenerationID() int32        { return 0 }
func (s *sess) MarkMessage(m *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	s.marked = append(s.marked, m.Offset)
	s.mu.Unlock()
}
func (s *sess) ResetOffset(_ string, _ int32, _ int64, _ string) {}
func (s *sess) MarkOffset(_ string, _ int32, _ int64, _ string)  {}
func (s *sess) Context() context.Context                         { return s.ctx }
func (s *sess) Errors() <-chan error                             { return nil }
func (s *sess) Commit()                                          {}

type claim struct {
	part int32
	msgs chan *sarama.ConsumerMessage
}

func (c *claim) Topic() string                            { return "dem-invalidation" }
func (c *claim) Partition() int32                         { return c.part }
func (c *claim) InitialOffset() int64                     { return 0 }
func (c *claim) HighWaterMarkOffset() int64               { return 0 }
func (c *claim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func eventBytes(r model.Region) []byte {
	ev := invalidation.Event{
		Version: 1, Op: "refresh", TS: time.Now().UTC(), Region: &r,
	}
	b, _ := json.Marshal(ev)
	return b
}

func newConsumerForTest(t *testing.T, fs *fakeStore, fd *fakeDropper, fh *fakeHot) *Consumer {
	t.Helper()
	cfg := Config{Brokers: []string{"x"}, Topic: "dem-invalidation", GroupID: "g"}
	return New(cfg, nil, fs, fd, fh, t.TempDir(), 5)
}

func TestProcessOneRemovesIntersectingEntries(t *testing.T) {
	inside := model.Region{West: -122.5, South: 37.5, East: -122.0, North: 38.0}
	outside := model.Region{West: 10, South: 50, East: 11, North: 51}
	fs := &fakeStore{entries: map[string]metastore.Entry{
		"aaa": {ImageFilename: "dem_aaa.png", CompositeImageFilename: "dem_roads_aaa.png", Region: &inside},
		"bbb": {RoadsImageFilename: "roads_bbb.png", Region: &outside},
	}}
	fd := &fakeDropper{}
	fh := &fakeHot{}
	c := newConsumerForTest(t, fs, fd, fh)

	for _, name := range []string{"dem_aaa.png", "dem_roads_aaa.png", "roads_bbb.png"} {
		if err := os.WriteFile(filepath.Join(c.cacheDir, name), []byte("png"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	msg := &sarama.ConsumerMessage{Topic: "dem-invalidation", Offset: 7, Value: eventBytes(inside)}
	if err := c.ProcessOne(context.Background(), msg); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}

	if _, ok := fs.entries["aaa"]; ok {
		t.Fatalf("intersecting entry survived invalidation")
	}
	if _, ok := fs.entries["bbb"]; !ok {
		t.Fatalf("non-intersecting entry was removed")
	}
	if _, err := os.Stat(filepath.Join(c.cacheDir, "dem_aaa.png")); !os.IsNotExist(err) {
		t.Fatalf("artifact file dem_aaa.png still on disk")
	}
	if _, err := os.Stat(filepath.Join(c.cacheDir, "roads_bbb.png")); err != nil {
		t.Fatalf("unrelated artifact removed: %v", err)
	}
	if len(fd.names) != 2 {
		t.Fatalf("dropper names=%v want the two removed artifacts", fd.names)
	}
	if len(fh.reset) != 1 || len(fh.reset[0]) == 0 {
		t.Fatalf("expected hotness reset for event cells, got %v", fh.reset)
	}
}

func TestProcessOneSkipsInvalidEvent(t *testing.T) {
	r := model.Region{West: -1, South: -1, East: 1, North: 1}
	fs := &fakeStore{entries: map[string]metastore.Entry{
		"aaa": {ImageFilename: "dem_aaa.png", Region: &r},
	}}
	c := newConsumerForTest(t, fs, &fakeDropper{}, &fakeHot{})

	ev := invalidation.Event{Version: 99, Op: "refresh", TS: time.Now().UTC(), Region: &r}
	b, _ := json.Marshal(ev)
	msg := &sarama.ConsumerMessage{Value: b}
	if err := c.ProcessOne(context.Background(), msg); err != nil {
		t.Fatalf("invalid event should be dropped without error, got %v", err)
	}
	if len(fs.entries) != 1 {
		t.Fatalf("invalid event must not evict entries")
	}
}

func TestProcessOneDecodeError(t *testing.T) {
	c := newConsumerForTest(t, &fakeStore{entries: map[string]metastore.Entry{}}, &fakeDropper{}, &fakeHot{})
	msg := &sarama.ConsumerMessage{Value: []byte("{not json")}
	if err := c.ProcessOne(context.Background(), msg); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestConsumeClaimMarksAfterProcessing(t *testing.T) {
	r := model.Region{West: -122.5, South: 37.5, East: -122.0, North: 38.0}
	fs := &fakeStore{entries: map[string]metastore.Entry{}}
	c := newConsumerForTest(t, fs, &fakeDropper{}, &fakeHot{})

	g := &groupHandler{process: c.ProcessOne}
	s := &sess{ctx: context.Background()}
	ch := make(chan *sarama.ConsumerMessage, 2)
	ch <- &sarama.ConsumerMessage{Topic: "dem-invalidation", Offset: 10, Value: eventBytes(r)}
	ch <- &sarama.ConsumerMessage{Topic: "dem-invalidation", Offset: 11, Value: eventBytes(r)}
	close(ch)

	if err := g.ConsumeClaim(s, &claim{part: 0, msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if len(s.marked) != 2 || s.marked[0] != 10 || s.marked[1] != 11 {
		t.Fatalf("marked offsets=%v want [10 11]", s.marked)
	}
}
