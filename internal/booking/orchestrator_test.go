package booking

import (
	"context"
	"testing"
	"time"

	"github.com/auroraspa/receptionist/internal/calendarport"
	"github.com/auroraspa/receptionist/internal/spaclock"
	"github.com/auroraspa/receptionist/internal/store"
)

func TestCheckAvailabilityRecordsOffersOnSuccess(t *testing.T) {
	clock := spaclock.New("UTC")
	base := time.Date(2026, 7, 30, 14, 0, 0, 0, time.UTC)
	cal := calendarport.NewFake()
	cal.PresetSlots["2026-07-30"] = []calendarport.Slot{
		{Start: base, End: base.Add(30 * time.Minute), StartTime: "2:00 PM", EndTime: "2:30 PM"},
		{Start: base.Add(time.Hour), End: base.Add(90 * time.Minute), StartTime: "3:00 PM", EndTime: "3:30 PM"},
	}
	orch := NewOrchestrator(cal, clock)

	outcome, meta := orch.CheckAvailability(context.Background(), store.Metadata{}, "call-1", CheckAvailabilityArgs{
		Date: "2026-07-30", ServiceType: "botox",
	}, time.Now())

	if !outcome.Success {
		t.Fatalf("expected success, got error %q", outcome.Error)
	}
	if meta.PendingSlotOffers == nil || len(meta.PendingSlotOffers.Slots) != 2 {
		t.Fatal("expected offers to be recorded with 2 slots")
	}
}

func TestCheckAvailabilityClearsOffersWhenEmpty(t *testing.T) {
	clock := spaclock.New("UTC")
	cal := calendarport.NewFake()
	orch := NewOrchestrator(cal, clock)

	seeded := store.Metadata{PendingSlotOffers: &store.PendingSlotOffers{Slots: []store.PresentedSlot{{Index: 1}}}}
	outcome, meta := orch.CheckAvailability(context.Background(), seeded, "call-1", CheckAvailabilityArgs{
		Date: "2026-07-30", ServiceType: "botox",
	}, time.Now())

	if !outcome.Success {
		t.Fatalf("empty slots should still be a successful check: %q", outcome.Error)
	}
	if meta.PendingSlotOffers != nil {
		t.Fatal("expected offers to be cleared when no slots are available")
	}
}

func TestBookAppointmentFailsWithoutOffers(t *testing.T) {
	clock := spaclock.New("UTC")
	cal := calendarport.NewFake()
	orch := NewOrchestrator(cal, clock)

	outcome, _ := orch.BookAppointment(context.Background(), store.Metadata{}, BookAppointmentArgs{
		StartTime: "2026-07-30T14:00:00Z", ServiceType: "botox", CustomerName: "Jordan", CustomerPhone: "+15555550100",
	}, time.Now())

	if outcome.Success {
		t.Fatal("expected booking without offers to fail")
	}
	if outcome.Code != OutcomeSlotSelectionMismatch {
		t.Fatalf("expected slot_selection_mismatch, got %q", outcome.Code)
	}
	if len(outcome.PendingSlotOptions) != 0 {
		t.Fatal("expected no pending options when no offers existed at all")
	}
}

func TestBookAppointmentSucceedsAndUpdatesMetadata(t *testing.T) {
	clock := spaclock.New("UTC")
	base := time.Date(2026, 7, 30, 14, 0, 0, 0, time.UTC)
	cal := calendarport.NewFake()
	orch := NewOrchestrator(cal, clock)

	now := time.Now()
	checkOutcome, meta := orch.CheckAvailability(context.Background(), store.Metadata{}, "call-1", CheckAvailabilityArgs{
		Date: "2026-07-30", ServiceType: "botox",
	}, now)
	_ = checkOutcome
	// Seed one available slot directly since Fake returns none by default.
	meta.PendingSlotOffers = &store.PendingSlotOffers{
		ServiceType: "botox",
		Date:        "2026-07-30",
		OfferedAt:   now,
		ExpiresAt:   now.Add(4 * time.Hour),
		Slots: []store.PresentedSlot{
			{Index: 1, Start: base, End: base.Add(30 * time.Minute), StartTime: "2:00 PM", EndTime: "2:30 PM"},
		},
	}

	outcome, updated := orch.BookAppointment(context.Background(), meta, BookAppointmentArgs{
		StartTime: clock.FormatISO(base), ServiceType: "botox", CustomerName: "Jordan", CustomerPhone: "+15555550100",
	}, now)

	if !outcome.Success {
		t.Fatalf("expected booking to succeed, got %q", outcome.Error)
	}
	if updated.PendingSlotOffers != nil {
		t.Fatal("expected offers to be cleared after a successful booking")
	}
	if updated.LastAppointment == nil || updated.LastAppointment.CalendarEventID == "" {
		t.Fatal("expected last_appointment to be recorded")
	}
	if cal.EventCount() != 1 {
		t.Fatalf("expected 1 calendar event created, got %d", cal.EventCount())
	}
}

func TestBookAppointmentMismatchWhenRequestedTimeNotOffered(t *testing.T) {
	clock := spaclock.New("UTC")
	base := time.Date(2026, 7, 30, 14, 0, 0, 0, time.UTC)
	cal := calendarport.NewFake()
	orch := NewOrchestrator(cal, clock)

	now := time.Now()
	meta := store.Metadata{PendingSlotOffers: &store.PendingSlotOffers{
		ServiceType: "botox",
		Date:        "2026-07-30",
		OfferedAt:   now,
		ExpiresAt:   now.Add(4 * time.Hour),
		Slots: []store.PresentedSlot{
			{Index: 1, Start: base, End: base.Add(30 * time.Minute), StartTime: "2:00 PM", EndTime: "2:30 PM"},
		},
	}}

	outcome, _ := orch.BookAppointment(context.Background(), meta, BookAppointmentArgs{
		StartTime: clock.FormatISO(base.Add(5 * time.Hour)), ServiceType: "botox",
	}, now)

	if outcome.Success {
		t.Fatal("expected mismatch for unoffered time")
	}
	if outcome.Code != OutcomeSlotSelectionMismatch {
		t.Fatalf("expected slot_selection_mismatch, got %q", outcome.Code)
	}
	if len(outcome.PendingSlotOptions) != 1 {
		t.Fatalf("expected 1 pending option surfaced, got %d", len(outcome.PendingSlotOptions))
	}
}

func TestCancelAppointmentUpdatesAnchor(t *testing.T) {
	clock := spaclock.New("UTC")
	fake := calendarport.NewFake()
	orch := NewOrchestrator(fake, clock)

	eventID, err := fake.CreateEvent(context.Background(), calendarport.CreateEventInput{
		Start: time.Now(), End: time.Now().Add(30 * time.Minute), ServiceType: "botox",
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	meta := store.Metadata{LastAppointment: &store.LastAppointment{CalendarEventID: eventID, Status: "scheduled"}}
	outcome, updated := orch.CancelAppointment(context.Background(), meta, CancelAppointmentArgs{AppointmentID: eventID, CancellationReason: "customer requested"})
	if !outcome.Success {
		t.Fatalf("expected cancel to succeed: %q", outcome.Error)
	}
	if updated.LastAppointment.Status != string(store.AppointmentCancelled) {
		t.Fatalf("expected anchor status to be cancelled, got %q", updated.LastAppointment.Status)
	}
}
