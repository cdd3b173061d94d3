package calendarport

import (
	"testing"
	"time"
)

func TestFindCollisionAdvancesPastBusyInterval(t *testing.T) {
	loc := time.UTC
	busyStart := time.Date(2025, 11, 20, 10, 0, 0, 0, loc)
	busyEnd := time.Date(2025, 11, 20, 10, 30, 0, 0, loc)
	busy := []busyInterval{{start: busyStart, end: busyEnd}}

	end, collided := findCollision(busyStart, busy)
	if !collided {
		t.Fatalf("expected collision at busy start")
	}
	if !end.Equal(busyEnd) {
		t.Fatalf("expected collision to resolve to busy end, got %v", end)
	}

	if _, collided := findCollision(busyEnd, busy); collided {
		t.Fatalf("expected no collision exactly at busy end")
	}
}

func TestParseClockDefaultsOnGarbage(t *testing.T) {
	h, m := parseClock("not-a-time")
	if h != 9 || m != 0 {
		t.Fatalf("expected default 9:00 fallback, got %d:%d", h, m)
	}

	h, m = parseClock("19:30")
	if h != 19 || m != 30 {
		t.Fatalf("expected 19:30, got %d:%d", h, m)
	}
}
