package calendarport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Fake is an in-memory Port implementation used by booking-tool and
// orchestrator tests. It is not test-only by build tag because callers in
// other packages' tests construct it directly.
type Fake struct {
	mu     sync.Mutex
	events map[string]EventDetails
	// PresetSlots lets a test control exactly what AvailableSlots returns
	// for a given date key (RFC3339 date only).
	PresetSlots map[string][]Slot
}

// NewFake constructs an empty Fake calendar.
func NewFake() *Fake {
	return &Fake{
		events:      make(map[string]EventDetails),
		PresetSlots: make(map[string][]Slot),
	}
}

var _ Port = (*Fake)(nil)

func (f *Fake) AvailableSlots(_ context.Context, date time.Time, _ string) ([]Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := date.Format("2006-01-02")
	return append([]Slot(nil), f.PresetSlots[key]...), nil
}

func (f *Fake) CreateEvent(_ context.Context, in CreateEventInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.NewString()
	f.events[id] = EventDetails{
		EventID:  id,
		Start:    in.Start,
		End:      in.End,
		Summary:  fmt.Sprintf("%s — %s", in.ServiceName, in.CustomerName),
		Provider: in.Provider,
	}
	return id, nil
}

func (f *Fake) UpdateEvent(_ context.Context, eventID string, newStart, newEnd time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[eventID]
	if !ok {
		return false, ErrEventNotFound
	}
	ev.Start = newStart
	ev.End = newEnd
	f.events[eventID] = ev
	return true, nil
}

func (f *Fake) DeleteEvent(_ context.Context, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[eventID]; !ok {
		return false, ErrEventNotFound
	}
	delete(f.events, eventID)
	return true, nil
}

func (f *Fake) GetEvent(_ context.Context, eventID string) (EventDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[eventID]
	if !ok {
		return EventDetails{}, ErrEventNotFound
	}
	return ev, nil
}

// EventCount reports how many events currently exist, for test assertions.
func (f *Fake) EventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}
