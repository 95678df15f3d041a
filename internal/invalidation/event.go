// Package invalidation defines the upstream-imagery change events that
// trigger cache eviction.
package invalidation

import (
	"fmt"
	"time"

	"github.com/timcash/earthengine-dem/internal/core/model"
)

// Event announces that imagery covering a region changed upstream.
// Every cached render whose recorded region intersects it is stale.
type Event struct {
	Version int           `json:"version"`
	Op      string        `json:"op"`
	TS      time.Time     `json:"ts"`
	Region  *model.Region `json:"region"`
	Source  string        `json:"source,omitempty"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	switch e.Op {
	case "refresh", "delete":
	default:
		return fmt.Errorf("op must be refresh|delete")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	if e.Region == nil {
		return fmt.Errorf("region is required")
	}
	r := *e.Region
	if !(r.West >= -180 && r.West <= 180 && r.East >= -180 && r.East <= 180) {
		return fmt.Errorf("region longitude out of range")
	}
	if !(r.South >= -90 && r.South <= 90 && r.North >= -90 && r.North <= 90) {
		return fmt.Errorf("region latitude out of range")
	}
	if !(r.East > r.West && r.North > r.South) {
		return fmt.Errorf("region must satisfy east>west and north>south")
	}
	return nil
}
