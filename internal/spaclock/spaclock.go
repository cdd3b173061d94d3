// Package spaclock provides the fixed-timezone time parsing/formatting and
// identifier generation used across the conversation/booking core.
package spaclock

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// ISODate is the YYYY-MM-DD layout used for tool arguments.
	ISODate = "2006-01-02"
	// HumanTime is the clock format shown to customers, e.g. "2:00 PM".
	HumanTime = "3:04 PM"
)

// Clock resolves the spa's display timezone and the current instant. It is
// a thin seam so tests can pin "now".
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// New constructs a Clock for the named IANA timezone. It falls back to UTC
// if the zone cannot be loaded so that a bad config value never panics a
// booking turn.
func New(tzName string) *Clock {
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		loc = time.UTC
	}
	return &Clock{loc: loc, now: time.Now}
}

// WithNow overrides the clock's notion of the current instant, for tests.
func (c *Clock) WithNow(now func() time.Time) *Clock {
	c.now = now
	return c
}

// Now returns the current instant in the spa's timezone.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Location returns the spa's display timezone.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// ParseISO parses an RFC3339-ish timestamp, interpreting a timestamp with no
// offset as spa-local wall time.
func (c *Clock) ParseISO(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(c.loc), nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", value, c.loc); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04", value, c.loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("spaclock: cannot parse %q as an ISO-8601 timestamp", value)
}

// FormatISO renders t as an offset-bearing ISO-8601 timestamp in the spa's
// timezone.
func (c *Clock) FormatISO(t time.Time) string {
	return t.In(c.loc).Format(time.RFC3339)
}

// FormatHumanTime renders t as a customer-facing clock string ("2:00 PM").
func (c *Clock) FormatHumanTime(t time.Time) string {
	return t.In(c.loc).Format(HumanTime)
}

// SameWallTime reports whether a and b denote the same naive wall-clock
// time in the spa's timezone, ignoring any offset metadata the caller's
// value carried in from elsewhere. This backs enforce_booking's
// timezone-aware equality check.
func (c *Clock) SameWallTime(a, b time.Time) bool {
	a = a.In(c.loc)
	b = b.In(c.loc)
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day() &&
		a.Hour() == b.Hour() && a.Minute() == b.Minute()
}

// NewID generates an opaque 128-bit identifier for a new entity.
func NewID() string {
	return uuid.NewString()
}
