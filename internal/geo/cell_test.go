package geo

import (
	"testing"

	"github.com/timcash/earthengine-dem/internal/core/model"
)

func TestCellForRegion_DeterministicAndResolutionSensitive(t *testing.T) {
	r := model.Region{West: -118.4, South: 35.4, East: -117.4, North: 36.4}

	c1 := CellForRegion(r, 5)
	c2 := CellForRegion(r, 5)
	if c1 == "" || c1 != c2 {
		t.Fatalf("centroid cell not deterministic: %q vs %q", c1, c2)
	}
	if CellForRegion(r, 3) == c1 {
		t.Fatal("different resolutions should not share a cell index")
	}
}

func TestCellsForRegion_CoversCentroid(t *testing.T) {
	r := model.Region{West: 17.9, South: 59.2, East: 18.2, North: 59.4}
	cells, err := CellsForRegion(r, 5)
	if err != nil {
		t.Fatalf("polyfill: %v", err)
	}
	if len(cells) == 0 {
		t.Fatal("expected at least one cell")
	}
	centroid := CellForRegion(r, 5)
	found := false
	for _, c := range cells {
		if c == centroid {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("centroid cell %s missing from footprint %v", centroid, cells)
	}
}

func TestCellsForRegion_InvalidResolution(t *testing.T) {
	if _, err := CellsForRegion(model.Region{West: 0, South: 0, East: 1, North: 1}, 16); err == nil {
		t.Fatal("expected error for resolution out of range")
	}
}
