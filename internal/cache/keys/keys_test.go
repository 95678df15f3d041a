package keys

import (
	"regexp"
	"strings"
	"testing"

	"github.com/timcash/earthengine-dem/internal/core/model"
)

var testRegion = model.Region{West: -118.4, South: 35.4, East: -117.4, North: 36.4}

func TestDeterminism_SameInputsSameKey(t *testing.T) {
	k1 := Thumb(testRegion, 512, 512)
	k2 := Thumb(testRegion, 512, 512)
	if k1 != k2 {
		t.Fatalf("determinism failed:\n k1=%s\n k2=%s", k1, k2)
	}
	if !regexp.MustCompile(`^[0-9a-f]{64}$`).MatchString(k1) {
		t.Fatalf("key is not a lowercase sha256 hex digest: %s", k1)
	}
}

func TestDifference_AnySingleFieldChangesKey(t *testing.T) {
	base := Thumb(testRegion, 512, 512)

	variants := []string{
		Thumb(model.Region{West: -118.5, South: 35.4, East: -117.4, North: 36.4}, 512, 512),
		Thumb(model.Region{West: -118.4, South: 35.5, East: -117.4, North: 36.4}, 512, 512),
		Thumb(model.Region{West: -118.4, South: 35.4, East: -117.5, North: 36.4}, 512, 512),
		Thumb(model.Region{West: -118.4, South: 35.4, East: -117.4, North: 36.5}, 512, 512),
		Thumb(testRegion, 1024, 512),
		Thumb(testRegion, 512, 1024),
	}
	for i, v := range variants {
		if v == base {
			t.Fatalf("variant %d produced the same key as the base tuple", i)
		}
	}
}

func TestRoads_DisjointNamespace(t *testing.T) {
	dem := Thumb(testRegion, 512, 512)
	roads := Roads(testRegion, 512, 512)
	if dem == roads {
		t.Fatal("roads key must not collide with the dem key")
	}
	if !strings.HasSuffix(roads, "_roads") {
		t.Fatalf("roads key missing namespace suffix: %s", roads)
	}
	if strings.TrimSuffix(roads, "_roads") != dem {
		t.Fatalf("roads key is not suffix-derived from the dem key: %s", roads)
	}
}

func TestStats_IndependentOfRequestedSize(t *testing.T) {
	s := Stats(testRegion)
	if s != Stats(testRegion) {
		t.Fatal("stats key must be deterministic")
	}
	if s == Thumb(testRegion, 512, 512) || s == Thumb(testRegion, 1024, 1024) {
		t.Fatal("stats key must not depend on requested thumbnail size")
	}
	if s != Thumb(testRegion, 800, 600) {
		t.Fatal("stats key must use the fixed 800x600 probe size")
	}
}
