package slotselect

import (
	"testing"
	"time"

	"github.com/auroraspa/receptionist/internal/spaclock"
	"github.com/auroraspa/receptionist/internal/store"
)

func mkSlots(base time.Time) []store.PresentedSlot {
	return []store.PresentedSlot{
		{Start: base, StartTime: "2:00 PM", End: base.Add(30 * time.Minute), EndTime: "2:30 PM"},
		{Start: base.Add(time.Hour), StartTime: "3:00 PM", End: base.Add(90 * time.Minute), EndTime: "3:30 PM"},
		{Start: base.Add(2 * time.Hour), StartTime: "4:00 PM", End: base.Add(150 * time.Minute), EndTime: "4:30 PM"},
	}
}

func TestRecordOffersNumbersSlotsOneBased(t *testing.T) {
	now := time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC)
	base := time.Date(2026, 7, 29, 14, 0, 0, 0, time.UTC)

	meta := RecordOffers(store.Metadata{}, "call-1", "botox", "2026-07-29", mkSlots(base), now)

	if meta.PendingSlotOffers == nil {
		t.Fatal("expected pending slot offers to be recorded")
	}
	for i, slot := range meta.PendingSlotOffers.Slots {
		if slot.Index != i+1 {
			t.Fatalf("slot %d: expected index %d, got %d", i, i+1, slot.Index)
		}
	}
	if !meta.PendingSlotOffers.ExpiresAt.Equal(now.Add(4 * time.Hour)) {
		t.Fatalf("expected 4 hour expiry, got %v", meta.PendingSlotOffers.ExpiresAt)
	}
}

func TestRecordOffersEmptySlotsClears(t *testing.T) {
	now := time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC)
	seeded := store.Metadata{PendingSlotOffers: &store.PendingSlotOffers{Slots: []store.PresentedSlot{{Index: 1}}}}

	meta := RecordOffers(seeded, "call-2", "botox", "2026-07-29", nil, now)

	if meta.PendingSlotOffers != nil {
		t.Fatal("expected offers to be cleared when slots is empty")
	}
}

func TestRecordOffersPreservesSelectionByMatchingStart(t *testing.T) {
	now := time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC)
	base := time.Date(2026, 7, 29, 14, 0, 0, 0, time.UTC)

	firstSlots := mkSlots(base)
	meta := RecordOffers(store.Metadata{}, "call-1", "botox", "2026-07-29", firstSlots, now)

	selectedAt := now.Add(time.Minute)
	idx := 2
	meta.PendingSlotOffers.SelectedOptionIndex = &idx
	selected := firstSlots[1]
	selected.Index = 2
	meta.PendingSlotOffers.SelectedSlot = &selected
	meta.PendingSlotOffers.SelectedByMessageID = "msg-1"
	meta.PendingSlotOffers.SelectedAt = &selectedAt

	// Refresh with a reordered list containing the same 3pm slot at a new index.
	reordered := []store.PresentedSlot{firstSlots[2], firstSlots[1], firstSlots[0]}
	refreshed := RecordOffers(meta, "call-2", "botox", "2026-07-29", reordered, now.Add(2*time.Minute))

	if refreshed.PendingSlotOffers.SelectedOptionIndex == nil {
		t.Fatal("expected selection to be preserved across refresh")
	}
	if *refreshed.PendingSlotOffers.SelectedOptionIndex != 2 {
		t.Fatalf("expected preserved selection to move to new index 2, got %d", *refreshed.PendingSlotOffers.SelectedOptionIndex)
	}
	if !refreshed.PendingSlotOffers.SelectedSlot.Start.Equal(selected.Start) {
		t.Fatal("expected preserved selection to reference the same slot start")
	}
}

func TestRecordOffersDiscardsSelectionWhenSlotGone(t *testing.T) {
	now := time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC)
	base := time.Date(2026, 7, 29, 14, 0, 0, 0, time.UTC)

	firstSlots := mkSlots(base)
	meta := RecordOffers(store.Metadata{}, "call-1", "botox", "2026-07-29", firstSlots, now)
	idx := 2
	selected := firstSlots[1]
	selected.Index = 2
	meta.PendingSlotOffers.SelectedOptionIndex = &idx
	meta.PendingSlotOffers.SelectedSlot = &selected

	// A single different slot: it does not match the old selection's start,
	// and the old index 2 is out of range for a one-slot list.
	newBase := base.Add(24 * time.Hour)
	refreshed := RecordOffers(meta, "call-2", "botox", "2026-07-30", mkSlots(newBase)[:1], now)

	if refreshed.PendingSlotOffers.SelectedOptionIndex != nil {
		t.Fatal("expected stale selection to be discarded")
	}
}

func TestCaptureSelectionByOrdinal(t *testing.T) {
	now := time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC)
	base := time.Date(2026, 7, 29, 14, 0, 0, 0, time.UTC)
	meta := RecordOffers(store.Metadata{}, "call-1", "botox", "2026-07-29", mkSlots(base), now)

	meta, ok := CaptureSelection(meta, "msg-1", "I'll take option 2 please", now.Add(time.Minute))
	if !ok {
		t.Fatal("expected capture to succeed")
	}
	if *meta.PendingSlotOffers.SelectedOptionIndex != 2 {
		t.Fatalf("expected index 2, got %d", *meta.PendingSlotOffers.SelectedOptionIndex)
	}
}

func TestCaptureSelectionIgnoresClockLikeNumbers(t *testing.T) {
	now := time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC)
	base := time.Date(2026, 7, 29, 14, 0, 0, 0, time.UTC)
	meta := RecordOffers(store.Metadata{}, "call-1", "botox", "2026-07-29", mkSlots(base), now)

	// "3:00" looks like a clock expression and should be skipped; the label
	// match on "3:00 PM" should still resolve to slot 2.
	meta, ok := CaptureSelection(meta, "msg-1", "does 3:00 pm work", now.Add(time.Minute))
	if !ok {
		t.Fatal("expected capture to succeed via label match")
	}
	if *meta.PendingSlotOffers.SelectedOptionIndex != 2 {
		t.Fatalf("expected index 2 via label match, got %d", *meta.PendingSlotOffers.SelectedOptionIndex)
	}
}

func TestCaptureSelectionByLabel(t *testing.T) {
	now := time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC)
	base := time.Date(2026, 7, 29, 14, 0, 0, 0, time.UTC)
	meta := RecordOffers(store.Metadata{}, "call-1", "botox", "2026-07-29", mkSlots(base), now)

	meta, ok := CaptureSelection(meta, "msg-1", "the 4:00 PM one works great", now.Add(time.Minute))
	if !ok {
		t.Fatal("expected capture to succeed")
	}
	if *meta.PendingSlotOffers.SelectedOptionIndex != 3 {
		t.Fatalf("expected index 3, got %d", *meta.PendingSlotOffers.SelectedOptionIndex)
	}
}

func TestCaptureSelectionFailsWhenExpired(t *testing.T) {
	now := time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC)
	base := time.Date(2026, 7, 29, 14, 0, 0, 0, time.UTC)
	meta := RecordOffers(store.Metadata{}, "call-1", "botox", "2026-07-29", mkSlots(base), now)

	_, ok := CaptureSelection(meta, "msg-1", "option 2", now.Add(5*time.Hour))
	if ok {
		t.Fatal("expected capture to fail once offers have expired")
	}
}

func TestCaptureSelectionFailsWithNoMatch(t *testing.T) {
	now := time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC)
	base := time.Date(2026, 7, 29, 14, 0, 0, 0, time.UTC)
	meta := RecordOffers(store.Metadata{}, "call-1", "botox", "2026-07-29", mkSlots(base), now)

	_, ok := CaptureSelection(meta, "msg-1", "can we do next Tuesday instead", now.Add(time.Minute))
	if ok {
		t.Fatal("expected capture to fail with no recognizable selection")
	}
}

func TestEnforceBookingFailsWithNoOffers(t *testing.T) {
	clock := spaclock.New("America/Los_Angeles")
	_, _, _, err := EnforceBooking(store.Metadata{}, BookingArguments{StartTime: "2026-07-29T14:00:00-07:00"}, clock, time.Now())
	if err == nil {
		t.Fatal("expected mismatch error with no pending offers")
	}
	var mismatch *ErrSlotSelectionMismatch
	if !asMismatch(err, &mismatch) {
		t.Fatalf("expected ErrSlotSelectionMismatch, got %T", err)
	}
}

func TestEnforceBookingPrefersCapturedSelectionOverArgument(t *testing.T) {
	now := time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC)
	base := time.Date(2026, 7, 29, 14, 0, 0, 0, time.UTC)
	meta := RecordOffers(store.Metadata{}, "call-1", "botox", "2026-07-29", mkSlots(base), now)
	meta, ok := CaptureSelection(meta, "msg-1", "option 2", now.Add(time.Minute))
	if !ok {
		t.Fatal("setup: expected capture to succeed")
	}

	clock := spaclock.New("UTC")
	// Model hallucinates a different start_time than the captured selection.
	_, normalized, adjustments, err := EnforceBooking(meta, BookingArguments{StartTime: "2026-07-29T16:00:00Z"}, clock, now.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if normalized.StartTime != clock.FormatISO(base.Add(time.Hour)) {
		t.Fatalf("expected normalized start_time to match the captured slot (3pm), got %s", normalized.StartTime)
	}
	if _, ok := adjustments["start_time"]; !ok {
		t.Fatal("expected an adjustment to be recorded for the overridden start_time")
	}
}

func TestEnforceBookingMatchesArgumentWhenNoSelectionCaptured(t *testing.T) {
	now := time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC)
	base := time.Date(2026, 7, 29, 14, 0, 0, 0, time.UTC)
	meta := RecordOffers(store.Metadata{}, "call-1", "botox", "2026-07-29", mkSlots(base), now)

	clock := spaclock.New("UTC")
	_, normalized, _, err := EnforceBooking(meta, BookingArguments{StartTime: clock.FormatISO(base)}, clock, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if normalized.ServiceType != "botox" {
		t.Fatalf("expected service_type to be filled in from the offer, got %q", normalized.ServiceType)
	}
}

func TestEnforceBookingMismatchReturnsPendingOptions(t *testing.T) {
	now := time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC)
	base := time.Date(2026, 7, 29, 14, 0, 0, 0, time.UTC)
	meta := RecordOffers(store.Metadata{}, "call-1", "botox", "2026-07-29", mkSlots(base), now)

	clock := spaclock.New("UTC")
	_, _, _, err := EnforceBooking(meta, BookingArguments{StartTime: "2026-08-01T09:00:00Z"}, clock, now.Add(time.Minute))
	var mismatch *ErrSlotSelectionMismatch
	if !asMismatch(err, &mismatch) {
		t.Fatalf("expected ErrSlotSelectionMismatch, got %T", err)
	}
	if len(mismatch.PendingSlotOptions) != 3 {
		t.Fatalf("expected all 3 pending options surfaced, got %d", len(mismatch.PendingSlotOptions))
	}
}

func asMismatch(err error, target **ErrSlotSelectionMismatch) bool {
	m, ok := err.(*ErrSlotSelectionMismatch)
	if ok {
		*target = m
	}
	return ok
}
