// Package keys derives the content-addressed identifiers for cached renders.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/timcash/earthengine-dem/internal/core/model"
)

// Statistics are resolution independent, so their key is derived at a
// fixed probe size instead of the requested thumbnail dimensions.
const (
	statsProbeWidth  = 800
	statsProbeHeight = 600
)

// Thumb maps a (region, width, height) tuple to a stable hex digest.
// Numerically equal inputs always produce the identical key.
func Thumb(r model.Region, width, height int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s_%dx%d", r.String(), width, height))
	return hex.EncodeToString(sum[:])
}

// Roads keys live in their own namespace so a roads render and a DEM
// render for the same region and size never collide.
func Roads(r model.Region, width, height int) string {
	return Thumb(r, width, height) + "_roads"
}

// Stats returns the fixed-size probe key for cached elevation statistics.
func Stats(r model.Region) string {
	return Thumb(r, statsProbeWidth, statsProbeHeight)
}
