// Package geo bins request regions into H3 cells for hot-region
// tracking and invalidation fan-out.
package geo

import (
	"fmt"
	"sort"

	h3 "github.com/uber/h3-go/v4"

	"github.com/timcash/earthengine-dem/internal/core/model"
)

// CellForRegion returns the H3 cell of the region centroid, or "" when
// the centroid cannot be indexed (hotness tracking tolerates that).
func CellForRegion(r model.Region, res int) string {
	lat, lng := r.Center()
	cell, err := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lng}, res)
	if err != nil {
		return ""
	}
	return cell.String()
}

// CellsForRegion polyfills the region footprint, sorted for determinism.
func CellsForRegion(r model.Region, res int) ([]string, error) {
	if res < 0 || res > 15 {
		return nil, fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	poly := h3.GeoPolygon{
		GeoLoop: h3.GeoLoop{
			{Lat: r.South, Lng: r.West},
			{Lat: r.South, Lng: r.East},
			{Lat: r.North, Lng: r.East},
			{Lat: r.North, Lng: r.West},
		},
	}
	indexes, err := h3.PolygonToCells(poly, res)
	if err != nil {
		return nil, fmt.Errorf("h3 polyfill: %w", err)
	}
	out := make([]string, 0, len(indexes))
	seen := make(map[string]struct{}, len(indexes))
	for _, idx := range indexes {
		s := idx.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}
