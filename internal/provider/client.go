// Package provider implements the client for the external imagery and
// statistics service: authenticated thumbnail renders and asynchronous
// region reductions. The provider's rendering semantics are a black box;
// this package only shapes requests and surfaces its errors verbatim.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/timcash/earthengine-dem/internal/core/model"
	"github.com/timcash/earthengine-dem/internal/core/observability"
)

// Fixed visualization parameters for elevation renders. These are
// request constants, not derived from data.
var elevationViz = Visualization{
	Min:     0,
	Max:     5000,
	Palette: []string{"006633", "E5FFCC", "662A00", "D8D8D8", "F5F5F5"},
}

// Two-tier road styling shared by the composite and roads-only renders.
var roadTiers = []RoadTier{
	{Filter: "class IN ('motorway','trunk','primary','secondary')", Color: "000000", Width: 2},
	{Filter: "class NOT IN ('motorway','trunk','primary','secondary')", Color: "555555", Width: 1},
}

type Visualization struct {
	Min     float64  `json:"min"`
	Max     float64  `json:"max"`
	Palette []string `json:"palette"`
}

type RoadTier struct {
	Filter string  `json:"filter"`
	Color  string  `json:"color"`
	Width  float64 `json:"width"`
}

type thumbnailRequest struct {
	Kind          string         `json:"kind"`
	Region        model.Region   `json:"region"`
	Width         int            `json:"width"`
	Height        int            `json:"height"`
	Visualization *Visualization `json:"visualization,omitempty"`
	Roads         []RoadTier     `json:"roads,omitempty"`
}

type thumbnailResponse struct {
	URL string `json:"url"`
}

type reduceRequest struct {
	Region    model.Region `json:"region"`
	Reducers  []string     `json:"reducers"`
	Band      string       `json:"band"`
	Scale     float64      `json:"scale"`
	MaxPixels int64        `json:"maxPixels"`
}

type operationResponse struct {
	Name   string                `json:"name"`
	Done   bool                  `json:"done"`
	Result *model.ElevationStats `json:"result,omitempty"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
	now    func() time.Time

	credsPath string
	creds     *ServiceAccount

	mu       sync.Mutex
	token    string
	tokenExp time.Time

	initialized atomic.Bool
	pollEvery   time.Duration
}

func New(logger *slog.Logger, client *http.Client, baseURL, credsPath string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse provider url: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		base:      u,
		http:      client,
		logger:    logger,
		now:       time.Now,
		credsPath: credsPath,
		pollEvery: 250 * time.Millisecond,
	}, nil
}

// Initialize loads the credential document, authenticates, and performs
// the provider-side session handshake, in that order. Calling it again
// after success is a no-op.
func (c *Client) Initialize(ctx context.Context) error {
	if c.initialized.Load() {
		return nil
	}

	sa, err := LoadServiceAccount(c.credsPath)
	if err != nil {
		return &QueryError{Op: "initialize", Err: err}
	}
	c.creds = sa

	if _, err := c.bearer(ctx); err != nil {
		return &QueryError{Op: "initialize", Err: err}
	}

	var handshake struct {
		Project string `json:"project"`
	}
	handshake.Project = sa.ProjectID
	if err := c.post(ctx, "/v1/sessions", handshake, &struct{}{}); err != nil {
		return &QueryError{Op: "initialize", Err: err}
	}

	c.initialized.Store(true)
	c.logger.Info("provider session initialized", "project", sa.ProjectID)
	return nil
}

func (c *Client) Initialized() bool { return c.initialized.Load() }

// ElevationThumbnail requests an elevation render at the fixed palette
// and range and returns the signed artifact URL.
func (c *Client) ElevationThumbnail(ctx context.Context, r model.Region, width, height int) (string, error) {
	return c.thumbnail(ctx, "elevation", thumbnailRequest{
		Kind: "elevation", Region: r, Width: width, Height: height,
		Visualization: &elevationViz,
	})
}

// CompositeThumbnail requests an elevation render blended with the
// two-tier road overlay.
func (c *Client) CompositeThumbnail(ctx context.Context, r model.Region, width, height int) (string, error) {
	return c.thumbnail(ctx, "composite", thumbnailRequest{
		Kind: "composite", Region: r, Width: width, Height: height,
		Visualization: &elevationViz,
		Roads:         roadTiers,
	})
}

// RoadsThumbnail requests a roads-only render with the same styling as
// the composite overlay.
func (c *Client) RoadsThumbnail(ctx context.Context, r model.Region, width, height int) (string, error) {
	return c.thumbnail(ctx, "roads", thumbnailRequest{
		Kind: "roads", Region: r, Width: width, Height: height,
		Roads: roadTiers,
	})
}

func (c *Client) thumbnail(ctx context.Context, op string, body thumbnailRequest) (string, error) {
	if !c.initialized.Load() {
		return "", ErrNotInitialized
	}
	var out thumbnailResponse
	start := c.now()
	if err := c.post(ctx, "/v1/thumbnails", body, &out); err != nil {
		return "", &QueryError{Op: op, Err: err}
	}
	observability.ObserveUpstreamLatency("thumbnail", time.Since(start).Seconds())
	if out.URL == "" {
		return "", &QueryError{Op: op, Err: fmt.Errorf("response missing url")}
	}
	return out.URL, nil
}

// ReduceRegion issues a combined min/max/mean reduction over the region
// and awaits the asynchronous evaluation.
func (c *Client) ReduceRegion(ctx context.Context, r model.Region, scale float64, maxPixels int64) (model.ElevationStats, error) {
	if !c.initialized.Load() {
		return model.ElevationStats{}, ErrNotInitialized
	}

	body := reduceRequest{
		Region:    r,
		Reducers:  []string{"min", "max", "mean"},
		Band:      "elevation",
		Scale:     scale,
		MaxPixels: maxPixels,
	}

	start := c.now()
	var op operationResponse
	if err := c.post(ctx, "/v1/value:compute", body, &op); err != nil {
		return model.ElevationStats{}, &QueryError{Op: "reduce", Err: err}
	}

	for !op.Done {
		select {
		case <-ctx.Done():
			return model.ElevationStats{}, &QueryError{Op: "reduce", Err: ctx.Err()}
		case <-time.After(c.pollEvery):
		}
		if err := c.get(ctx, "/v1/"+op.Name, &op); err != nil {
			return model.ElevationStats{}, &QueryError{Op: "reduce", Err: err}
		}
	}
	observability.ObserveUpstreamLatency("reduce", time.Since(start).Seconds())

	if op.Error != nil {
		return model.ElevationStats{}, &QueryError{Op: "reduce", Err: fmt.Errorf("%s", op.Error.Message)}
	}
	if op.Result == nil {
		return model.ElevationStats{}, &QueryError{Op: "reduce", Err: fmt.Errorf("operation finished without result")}
	}
	return *op.Result, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.String()+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.String()+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	tok, err := c.bearer(req.Context())
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
