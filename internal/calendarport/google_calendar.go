package calendarport

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/auroraspa/receptionist/internal/spaclock"
)

// googleCalendarAPI narrows the generated google.golang.org/api/calendar/v3
// client down to the handful of calls this package exercises, so tests can
// substitute a fake instead of standing up real HTTP round trips.
type googleCalendarAPI interface {
	ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*calendar.Event, error)
	InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error)
	UpdateEvent(ctx context.Context, calendarID, eventID string, event *calendar.Event) (*calendar.Event, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
	GetEvent(ctx context.Context, calendarID, eventID string) (*calendar.Event, error)
}

type liveGoogleCalendar struct {
	svc *calendar.Service
}

func (l *liveGoogleCalendar) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*calendar.Event, error) {
	resp, err := l.svc.Events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (l *liveGoogleCalendar) InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error) {
	return l.svc.Events.Insert(calendarID, event).Context(ctx).Do()
}

func (l *liveGoogleCalendar) UpdateEvent(ctx context.Context, calendarID, eventID string, event *calendar.Event) (*calendar.Event, error) {
	return l.svc.Events.Update(calendarID, eventID, event).Context(ctx).Do()
}

func (l *liveGoogleCalendar) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	return l.svc.Events.Delete(calendarID, eventID).Context(ctx).Do()
}

func (l *liveGoogleCalendar) GetEvent(ctx context.Context, calendarID, eventID string) (*calendar.Event, error) {
	return l.svc.Events.Get(calendarID, eventID).Context(ctx).Do()
}

// GoogleCalendar implements Port against a single Google Calendar.
type GoogleCalendar struct {
	api                googleCalendarAPI
	calendarID         string
	clock              *spaclock.Clock
	businessHoursStart string // "09:00"
	businessHoursEnd   string // "19:00"
	slotStepMinutes    int
}

// NewGoogleCalendar builds a GoogleCalendar client authenticated with the
// supplied credentials JSON (a service-account key, as the teacher's
// google.golang.org/api-based clients expect).
func NewGoogleCalendar(ctx context.Context, calendarID, credentialsJSON string, clock *spaclock.Clock, businessHoursStart, businessHoursEnd string, slotStepMinutes int) (*GoogleCalendar, error) {
	if strings.TrimSpace(calendarID) == "" {
		return nil, fmt.Errorf("calendarport: calendar id is required")
	}
	svc, err := calendar.NewService(ctx, option.WithCredentialsJSON([]byte(credentialsJSON)))
	if err != nil {
		return nil, fmt.Errorf("calendarport: failed to create google calendar client: %w", err)
	}
	if slotStepMinutes <= 0 {
		slotStepMinutes = 30
	}
	return &GoogleCalendar{
		api:                &liveGoogleCalendar{svc: svc},
		calendarID:         calendarID,
		clock:              clock,
		businessHoursStart: businessHoursStart,
		businessHoursEnd:   businessHoursEnd,
		slotStepMinutes:    slotStepMinutes,
	}, nil
}

var _ Port = (*GoogleCalendar)(nil)

// AvailableSlots scans business hours for date, excluding intervals that
// overlap existing events. It advances by slotStepMinutes on free steps and
// jumps to the end of a busy interval on collision, matching the calendar
// port contract.
func (g *GoogleCalendar) AvailableSlots(ctx context.Context, date time.Time, serviceType string) ([]Slot, error) {
	loc := g.clock.Location()
	startHour, startMin := parseClock(g.businessHoursStart)
	endHour, endMin := parseClock(g.businessHoursEnd)

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), startHour, startMin, 0, 0, loc)
	dayEnd := time.Date(date.Year(), date.Month(), date.Day(), endHour, endMin, 0, 0, loc)

	events, err := g.api.ListEvents(ctx, g.calendarID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("calendarport: failed to list events: %w", err)
	}

	busy := make([]busyInterval, 0, len(events))
	for _, ev := range events {
		if ev.Start == nil || ev.End == nil {
			continue
		}
		start, err1 := time.Parse(time.RFC3339, ev.Start.DateTime)
		end, err2 := time.Parse(time.RFC3339, ev.End.DateTime)
		if err1 != nil || err2 != nil {
			continue
		}
		busy = append(busy, busyInterval{start: start.In(loc), end: end.In(loc)})
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].start.Before(busy[j].start) })

	step := time.Duration(g.slotStepMinutes) * time.Minute

	var slots []Slot
	cursor := dayStart
	for cursor.Before(dayEnd) {
		if collidingEnd, busy := findCollision(cursor, busy); busy {
			cursor = collidingEnd
			continue
		}
		slotEnd := cursor.Add(step)
		var overlapEnd time.Time
		for _, b := range busy {
			if b.start.Before(slotEnd) && b.end.After(cursor) {
				overlapEnd = b.end
				break
			}
		}
		if !overlapEnd.IsZero() {
			cursor = overlapEnd
			continue
		}
		slots = append(slots, Slot{
			Start:     cursor,
			End:       cursor.Add(step),
			StartTime: g.clock.FormatHumanTime(cursor),
			EndTime:   g.clock.FormatHumanTime(cursor.Add(step)),
		})
		cursor = cursor.Add(step)
	}
	return slots, nil
}

type busyInterval struct {
	start, end time.Time
}

func findCollision(t time.Time, busy []busyInterval) (time.Time, bool) {
	for _, b := range busy {
		if (t.Equal(b.start) || t.After(b.start)) && t.Before(b.end) {
			return b.end, true
		}
	}
	return time.Time{}, false
}

func parseClock(s string) (hour, minute int) {
	s = strings.TrimSpace(s)
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 9, 0
	}
	fmt.Sscanf(parts[0], "%d", &hour)
	fmt.Sscanf(parts[1], "%d", &minute)
	return hour, minute
}

// CreateEvent books a new event. If the insert response omits an id, it
// performs a best-effort lookup within ±1 minute of the requested window
// for an event with the same summary.
func (g *GoogleCalendar) CreateEvent(ctx context.Context, in CreateEventInput) (string, error) {
	summary := fmt.Sprintf("%s — %s", in.ServiceName, in.CustomerName)
	description := fmt.Sprintf("Phone: %s\nEmail: %s\nNotes: %s", in.CustomerPhone, in.CustomerEmail, in.Notes)

	event := &calendar.Event{
		Summary:     summary,
		Description: description,
		Start:       &calendar.EventDateTime{DateTime: in.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: in.End.Format(time.RFC3339)},
	}

	created, err := g.api.InsertEvent(ctx, g.calendarID, event)
	if err != nil {
		return "", fmt.Errorf("calendarport: failed to create event: %w", err)
	}
	if created != nil && created.Id != "" {
		return created.Id, nil
	}

	// Fallback: the provider accepted the event but its response lost the
	// id. Look for an event with the same summary within ±1 minute.
	window := time.Minute
	events, listErr := g.api.ListEvents(ctx, g.calendarID, in.Start.Add(-window), in.Start.Add(window))
	if listErr != nil {
		return "", fmt.Errorf("calendarport: create returned no id and fallback lookup failed: %w", listErr)
	}
	for _, ev := range events {
		if ev.Summary == summary {
			return ev.Id, nil
		}
	}
	return "", fmt.Errorf("calendarport: create returned no id and no matching event was found")
}

// UpdateEvent moves an existing event to a new start/end.
func (g *GoogleCalendar) UpdateEvent(ctx context.Context, eventID string, newStart, newEnd time.Time) (bool, error) {
	existing, err := g.api.GetEvent(ctx, g.calendarID, eventID)
	if err != nil {
		return false, fmt.Errorf("calendarport: failed to load event for update: %w", err)
	}
	existing.Start = &calendar.EventDateTime{DateTime: newStart.Format(time.RFC3339)}
	existing.End = &calendar.EventDateTime{DateTime: newEnd.Format(time.RFC3339)}

	if _, err := g.api.UpdateEvent(ctx, g.calendarID, eventID, existing); err != nil {
		return false, fmt.Errorf("calendarport: failed to update event: %w", err)
	}
	return true, nil
}

// DeleteEvent cancels an existing event.
func (g *GoogleCalendar) DeleteEvent(ctx context.Context, eventID string) (bool, error) {
	if err := g.api.DeleteEvent(ctx, g.calendarID, eventID); err != nil {
		return false, fmt.Errorf("calendarport: failed to delete event: %w", err)
	}
	return true, nil
}

// GetEvent looks up an event's current details.
func (g *GoogleCalendar) GetEvent(ctx context.Context, eventID string) (EventDetails, error) {
	ev, err := g.api.GetEvent(ctx, g.calendarID, eventID)
	if err != nil {
		return EventDetails{}, ErrEventNotFound
	}
	var start, end time.Time
	if ev.Start != nil {
		start, _ = time.Parse(time.RFC3339, ev.Start.DateTime)
	}
	if ev.End != nil {
		end, _ = time.Parse(time.RFC3339, ev.End.DateTime)
	}
	return EventDetails{
		EventID: ev.Id,
		Start:   start,
		End:     end,
		Summary: ev.Summary,
	}, nil
}
