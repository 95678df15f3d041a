package invalidation

import (
	"testing"
	"time"

	"github.com/timcash/earthengine-dem/internal/core/model"
)

func validEvent() Event {
	return Event{
		Version: 1,
		Op:      "refresh",
		TS:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Region:  &model.Region{West: -122.5, South: 37.5, East: -122.0, North: 38.0},
	}
}

func TestValidateAccepts(t *testing.T) {
	if err := validEvent().Validate(); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}
	e := validEvent()
	e.Op = "delete"
	if err := e.Validate(); err != nil {
		t.Fatalf("delete op rejected: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Event){
		"bad version":      func(e *Event) { e.Version = 2 },
		"unknown op":       func(e *Event) { e.Op = "purge" },
		"zero ts":          func(e *Event) { e.TS = time.Time{} },
		"missing region":   func(e *Event) { e.Region = nil },
		"lon out of range": func(e *Event) { e.Region.West = -200 },
		"lat out of range": func(e *Event) { e.Region.North = 95 },
		"inverted bounds":  func(e *Event) { e.Region.East, e.Region.West = e.Region.West, e.Region.East },
	}
	for name, mutate := range cases {
		e := validEvent()
		mutate(&e)
		if err := e.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}
