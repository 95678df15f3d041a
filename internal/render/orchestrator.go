// Package render coordinates the cache-keyed fetch/render/persist
// pipeline: derive a key, serve a previously rendered artifact when one
// exists on disk, otherwise request a render upstream, download it, and
// update the metadata index.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/timcash/earthengine-dem/internal/cache/keys"
	"github.com/timcash/earthengine-dem/internal/cache/metastore"
	"github.com/timcash/earthengine-dem/internal/core/model"
	"github.com/timcash/earthengine-dem/internal/core/observability"
	"github.com/timcash/earthengine-dem/internal/geo"
	"github.com/timcash/earthengine-dem/internal/hotness"
	"github.com/timcash/earthengine-dem/internal/provider"
)

// ArtifactURLPrefix is where the HTTP layer serves cached PNGs from.
const ArtifactURLPrefix = "/cache/"

// Provider is the slice of the imagery client the orchestrator needs.
type Provider interface {
	Initialized() bool
	ElevationThumbnail(ctx context.Context, r model.Region, width, height int) (string, error)
	CompositeThumbnail(ctx context.Context, r model.Region, width, height int) (string, error)
	RoadsThumbnail(ctx context.Context, r model.Region, width, height int) (string, error)
	ReduceRegion(ctx context.Context, r model.Region, scale float64, maxPixels int64) (model.ElevationStats, error)
}

type Downloader interface {
	Download(ctx context.Context, url, dest string) error
}

type Options struct {
	SkipCache bool
	DEMOnly   bool
}

type Config struct {
	CacheDir       string
	StatsScale     float64
	StatsMaxPixels int64
	H3Res          int
}

type Orchestrator struct {
	provider Provider
	store    *metastore.Store
	fetch    Downloader
	logger   *slog.Logger
	hot      hotness.Interface
	cfg      Config
	now      func() time.Time
}

func New(p Provider, store *metastore.Store, fetch Downloader, hot hotness.Interface, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StatsScale <= 0 {
		cfg.StatsScale = 1000
	}
	if cfg.StatsMaxPixels <= 0 {
		cfg.StatsMaxPixels = 1e9
	}
	return &Orchestrator{
		provider: p,
		store:    store,
		fetch:    fetch,
		logger:   logger,
		hot:      hot,
		cfg:      cfg,
		now:      time.Now,
	}
}

// computeFn renders and downloads a missing artifact. It returns the
// artifact filename and the metadata mutation to persist for it.
type computeFn func(ctx context.Context) (string, func(*metastore.Entry), error)

// getOrRender is the shared get-or-compute-and-persist control flow for
// file artifacts. candidates lists artifact filenames from the cache
// entry in preference order; the first one still present on disk wins.
// SkipCache bypasses both the read and the write-back.
func (o *Orchestrator) getOrRender(ctx context.Context, kind, key string, skipCache bool,
	candidates func(metastore.Entry) []string, compute computeFn) (string, error) {

	if !o.provider.Initialized() {
		return "", provider.ErrNotInitialized
	}

	if !skipCache {
		if e, ok := o.store.Get(key); ok {
			for _, name := range candidates(e) {
				if name == "" || !o.artifactExists(name) {
					continue
				}
				observability.IncCacheHit(kind)
				o.logger.Debug("cache hit", "kind", kind, "key", key, "artifact", name)
				return ArtifactURLPrefix + name, nil
			}
		}
	}

	observability.IncCacheMiss(kind)
	name, mut, err := compute(ctx)
	if err != nil {
		return "", err
	}
	if !skipCache {
		o.store.Update(key, mut)
	}
	return ArtifactURLPrefix + name, nil
}

// DEMThumbnail returns the URL of an elevation thumbnail for the region,
// preferring the road-overlay composite unless DEMOnly is set. The
// returned stats are the entry's cached statistics when present.
func (o *Orchestrator) DEMThumbnail(ctx context.Context, region model.Region, width, height int, opts Options) (string, *model.ElevationStats, error) {
	o.trackRegion(region)
	key := keys.Thumb(region, width, height)

	var stats *model.ElevationStats
	if !opts.SkipCache {
		if e, ok := o.store.Get(key); ok {
			stats = e.Stats
		}
	}

	url, err := o.getOrRender(ctx, "dem", key, opts.SkipCache,
		func(e metastore.Entry) []string {
			if opts.DEMOnly {
				return []string{e.ImageFilename}
			}
			return []string{e.CompositeImageFilename, e.ImageFilename}
		},
		func(ctx context.Context) (string, func(*metastore.Entry), error) {
			name, mut, st, err := o.renderDEM(ctx, region, width, height, key, opts)
			if err != nil {
				return "", nil, err
			}
			stats = st
			return name, mut, nil
		})
	if err != nil {
		return "", nil, err
	}
	return url, stats, nil
}

// renderDEM performs the miss path: elevation render plus statistics,
// then a best-effort composite with the road overlay.
func (o *Orchestrator) renderDEM(ctx context.Context, region model.Region, width, height int, key string, opts Options) (string, func(*metastore.Entry), *model.ElevationStats, error) {
	demURL, err := o.provider.ElevationThumbnail(ctx, region, width, height)
	if err != nil {
		return "", nil, nil, err
	}
	demName := fmt.Sprintf("dem_%s.png", key)
	if err := o.fetch.Download(ctx, demURL, filepath.Join(o.cfg.CacheDir, demName)); err != nil {
		return "", nil, nil, err
	}

	st, err := o.ElevationStats(ctx, region, Options{SkipCache: opts.SkipCache})
	if err != nil {
		return "", nil, nil, err
	}

	ts := o.now()
	base := func(e *metastore.Entry) {
		e.ImageFilename = demName
		e.Region = &region
		e.Stats = &st
		e.Timestamp = ts
	}

	if opts.DEMOnly {
		return demName, base, &st, nil
	}

	// Composite failure is non-fatal: fall back to the plain elevation
	// artifact and record the entry without a composite filename.
	compName := fmt.Sprintf("dem_roads_%s.png", key)
	compURL, err := o.provider.CompositeThumbnail(ctx, region, width, height)
	if err == nil {
		err = o.fetch.Download(ctx, compURL, filepath.Join(o.cfg.CacheDir, compName))
	}
	if err != nil {
		o.logger.Warn("composite render failed, serving elevation-only artifact",
			"key", key, "err", err)
		return demName, base, &st, nil
	}

	return compName, func(e *metastore.Entry) {
		base(e)
		e.CompositeImageFilename = compName
	}, &st, nil
}

// RoadsThumbnail returns the URL of a roads-only render. Its key lives
// in the "_roads" namespace so it never shares an entry with a DEM
// request for the same region and size.
func (o *Orchestrator) RoadsThumbnail(ctx context.Context, region model.Region, width, height int, opts Options) (string, error) {
	o.trackRegion(region)
	key := keys.Roads(region, width, height)

	return o.getOrRender(ctx, "roads", key, opts.SkipCache,
		func(e metastore.Entry) []string {
			return []string{e.RoadsImageFilename}
		},
		func(ctx context.Context) (string, func(*metastore.Entry), error) {
			url, err := o.provider.RoadsThumbnail(ctx, region, width, height)
			if err != nil {
				return "", nil, err
			}
			name := fmt.Sprintf("roads_%s.png", key)
			if err := o.fetch.Download(ctx, url, filepath.Join(o.cfg.CacheDir, name)); err != nil {
				return "", nil, err
			}
			ts := o.now()
			return name, func(e *metastore.Entry) {
				e.RoadsImageFilename = name
				e.Region = &region
				e.Timestamp = ts
			}, nil
		})
}

// ElevationStats returns min/max/mean elevation for the region. The key
// uses a fixed probe size, so the result is independent of whatever
// pixel dimensions thumbnails were requested at. SkipCache skips the
// read and the write-back symmetrically.
func (o *Orchestrator) ElevationStats(ctx context.Context, region model.Region, opts Options) (model.ElevationStats, error) {
	if !o.provider.Initialized() {
		return model.ElevationStats{}, provider.ErrNotInitialized
	}
	key := keys.Stats(region)

	if !opts.SkipCache {
		if e, ok := o.store.Get(key); ok && e.Stats != nil {
			observability.IncCacheHit("stats")
			return *e.Stats, nil
		}
	}

	observability.IncCacheMiss("stats")
	st, err := o.provider.ReduceRegion(ctx, region, o.cfg.StatsScale, o.cfg.StatsMaxPixels)
	if err != nil {
		return model.ElevationStats{}, err
	}

	if !opts.SkipCache {
		_, exists := o.store.Get(key)
		ts := o.now()
		o.store.Update(key, func(e *metastore.Entry) {
			e.Stats = &st
			// a fresh entry keeps the empty filename placeholder
			if !exists {
				e.Region = &region
				e.Timestamp = ts
			}
		})
	}
	return st, nil
}

func (o *Orchestrator) artifactExists(name string) bool {
	info, err := os.Stat(filepath.Join(o.cfg.CacheDir, name))
	return err == nil && !info.IsDir()
}

func (o *Orchestrator) trackRegion(region model.Region) {
	if o.hot == nil {
		return
	}
	cell := geo.CellForRegion(region, o.cfg.H3Res)
	if cell == "" {
		return
	}
	o.hot.Inc(cell)
	o.logger.Debug("region requested", "cell", cell, "score", o.hot.Score(cell))
}
