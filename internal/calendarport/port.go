// Package calendarport abstracts the calendar of record: the external
// system of truth for appointment existence and timing. Nothing in the
// booking core depends on a concrete calendar provider directly; every
// caller goes through the Port interface declared here.
package calendarport

import (
	"context"
	"time"
)

// Slot is one bookable interval, generated by scanning business hours and
// excluding intervals that overlap existing events.
type Slot struct {
	Start     time.Time
	End       time.Time
	StartTime string // human clock string, e.g. "2:00 PM"
	EndTime   string
}

// EventDetails is the calendar of record's view of a booked event.
type EventDetails struct {
	EventID  string
	Start    time.Time
	End      time.Time
	Summary  string
	Provider string
}

// CreateEventInput carries everything needed to create a calendar event.
type CreateEventInput struct {
	Start           time.Time
	End             time.Time
	CustomerName    string
	CustomerPhone   string
	CustomerEmail   string
	ServiceType     string
	ServiceName     string
	Provider        string
	Notes           string
}

// Port is the abstract interface for availability query and event
// create/update/delete/lookup. A concrete implementation wraps whichever
// external calendar system the spa actually uses.
type Port interface {
	// AvailableSlots scans business hours for the given date and service,
	// excluding busy intervals, and returns free slots in natural clock
	// order.
	AvailableSlots(ctx context.Context, date time.Time, serviceType string) ([]Slot, error)

	// CreateEvent books a new event and returns its calendar_event_id. If
	// the provider's create response omits an id, implementations should
	// perform a best-effort lookup by identical summary within ±1 minute of
	// the requested window before giving up.
	CreateEvent(ctx context.Context, in CreateEventInput) (eventID string, err error)

	// UpdateEvent moves an existing event to a new start/end and reports
	// whether the update succeeded.
	UpdateEvent(ctx context.Context, eventID string, newStart, newEnd time.Time) (bool, error)

	// DeleteEvent cancels an existing event and reports whether the delete
	// succeeded.
	DeleteEvent(ctx context.Context, eventID string) (bool, error)

	// GetEvent looks up an event's current details.
	GetEvent(ctx context.Context, eventID string) (EventDetails, error)
}

// ErrEventNotFound is returned by GetEvent when no event exists for the
// supplied id.
var ErrEventNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "calendarport: event not found" }
