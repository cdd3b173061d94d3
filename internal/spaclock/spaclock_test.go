package spaclock

import (
	"testing"
	"time"
)

func TestParseISOVariants(t *testing.T) {
	c := New("America/New_York")

	cases := []string{
		"2025-11-20T14:00:00-05:00",
		"2025-11-20T14:00:00",
		"2025-11-20T14:00",
	}
	for _, raw := range cases {
		got, err := c.ParseISO(raw)
		if err != nil {
			t.Fatalf("ParseISO(%q) returned error: %v", raw, err)
		}
		if got.Hour() != 14 || got.Minute() != 0 {
			t.Fatalf("ParseISO(%q) = %v, want 14:00", raw, got)
		}
	}
}

func TestParseISORejectsGarbage(t *testing.T) {
	c := New("America/New_York")
	if _, err := c.ParseISO("not a date"); err == nil {
		t.Fatalf("expected error for garbage input")
	}
}

func TestSameWallTimeIgnoresOffsetDrift(t *testing.T) {
	c := New("America/New_York")

	loc, _ := time.LoadLocation("America/New_York")
	a := time.Date(2025, 11, 20, 14, 0, 0, 0, loc)
	b := time.Date(2025, 11, 20, 19, 0, 30, 0, time.UTC)

	// b is expressed in UTC rather than the spa's zone but lands on the same
	// local wall-clock hour/minute (14:00 EST) once converted; the extra 30
	// seconds prove the comparison ignores sub-minute precision.
	if !c.SameWallTime(a, b) {
		t.Fatalf("expected times with the same local wall-clock minute to match")
	}
}

func TestFallsBackToUTCOnBadTimezone(t *testing.T) {
	c := New("Not/A_Zone")
	if c.Location() != time.UTC {
		t.Fatalf("expected fallback to UTC for invalid timezone")
	}
}

func TestNewIDIsUnique(t *testing.T) {
	a := NewID()
	b := NewID()
	if a == b {
		t.Fatalf("expected distinct ids, got %q twice", a)
	}
}
