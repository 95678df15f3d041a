// Package model defines core domain types shared across the service.
package model

import "fmt"

// Region is a geographic bounding box in WGS84 lon/lat degrees.
type Region struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// String representation used for cache key derivation; %v keeps
// numerically equal floats textually identical.
func (r Region) String() string {
	return fmt.Sprintf("%v_%v_%v_%v", r.West, r.South, r.East, r.North)
}

// Center returns the region midpoint (lat, lng).
func (r Region) Center() (float64, float64) {
	return (r.South + r.North) / 2, (r.West + r.East) / 2
}

// Intersects reports whether two regions overlap.
func (r Region) Intersects(o Region) bool {
	return r.West < o.East && o.West < r.East &&
		r.South < o.North && o.South < r.North
}

// ElevationStats holds the scalar reduction results for a region.
type ElevationStats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// RenderRequest is the validated body of a thumbnail request.
type RenderRequest struct {
	Region    Region
	Width     int
	Height    int
	SkipCache bool
	DEMOnly   bool
}
