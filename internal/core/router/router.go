// Package router validates inbound API requests and maps orchestrator
// results and errors onto the JSON wire surface.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/timcash/earthengine-dem/internal/core/model"
	"github.com/timcash/earthengine-dem/internal/core/observability"
	"github.com/timcash/earthengine-dem/internal/provider"
	"github.com/timcash/earthengine-dem/internal/render"
)

// Renderer is the orchestrator surface the HTTP layer consumes.
type Renderer interface {
	DEMThumbnail(ctx context.Context, region model.Region, width, height int, opts render.Options) (string, *model.ElevationStats, error)
	RoadsThumbnail(ctx context.Context, region model.Region, width, height int, opts render.Options) (string, error)
}

type Defaults struct {
	ThumbSize int
	SkipCache bool
}

type thumbnailBody struct {
	Region    *model.Region `json:"region"`
	Width     int           `json:"width"`
	Height    int           `json:"height"`
	SkipCache *bool         `json:"skipCache"`
	DEMOnly   bool          `json:"demOnly"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ParseThumbnailRequest validates a POST body against the defaults.
// A missing region is the only 400; malformed bounds are passed through
// and surface as whatever the provider answers.
func ParseThumbnailRequest(r *http.Request, d Defaults) (model.RenderRequest, error) {
	var body thumbnailBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return model.RenderRequest{}, errors.New("invalid JSON body")
	}
	if body.Region == nil {
		return model.RenderRequest{}, errors.New("missing region")
	}

	req := model.RenderRequest{
		Region:    *body.Region,
		Width:     body.Width,
		Height:    body.Height,
		SkipCache: d.SkipCache,
		DEMOnly:   body.DEMOnly,
	}
	if req.Width <= 0 {
		req.Width = d.ThumbSize
	}
	if req.Height <= 0 {
		req.Height = d.ThumbSize
	}
	if body.SkipCache != nil {
		req.SkipCache = *body.SkipCache
	}
	return req, nil
}

// HandleDEMThumbnail serves POST /api/dem-thumbnail.
func HandleDEMThumbnail(logger *slog.Logger, d Defaults, rd Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		req, err := ParseThumbnailRequest(r, d)
		if err != nil {
			writeError(sw, http.StatusBadRequest, err)
		} else {
			url, stats, err := rd.DEMThumbnail(r.Context(), req.Region, req.Width, req.Height,
				render.Options{SkipCache: req.SkipCache, DEMOnly: req.DEMOnly})
			if err != nil {
				logger.Error("dem thumbnail failed", "err", err)
				writeError(sw, statusFor(err), err)
			} else {
				writeJSON(sw, struct {
					ThumbnailURL string                `json:"thumbnailUrl"`
					Stats        *model.ElevationStats `json:"stats,omitempty"`
				}{url, stats})
			}
		}
		observability.ObserveHTTP(r.Method, "/api/dem-thumbnail", sw.code, time.Since(start).Seconds())
	}
}

// HandleRoadsThumbnail serves POST /api/roads-thumbnail.
func HandleRoadsThumbnail(logger *slog.Logger, d Defaults, rd Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		req, err := ParseThumbnailRequest(r, d)
		if err != nil {
			writeError(sw, http.StatusBadRequest, err)
		} else {
			url, err := rd.RoadsThumbnail(r.Context(), req.Region, req.Width, req.Height,
				render.Options{SkipCache: req.SkipCache})
			if err != nil {
				logger.Error("roads thumbnail failed", "err", err)
				writeError(sw, statusFor(err), err)
			} else {
				writeJSON(sw, struct {
					ThumbnailURL string `json:"thumbnailUrl"`
				}{url})
			}
		}
		observability.ObserveHTTP(r.Method, "/api/roads-thumbnail", sw.code, time.Since(start).Seconds())
	}
}

func statusFor(err error) int {
	if errors.Is(err, provider.ErrNotInitialized) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
