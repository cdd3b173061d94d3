// Package slotselect implements the Slot-Selection Engine: the heart of
// the booking core. It mediates every booking through four operations —
// RecordOffers, ClearOffers, CaptureSelection, EnforceBooking — exactly as
// specified in spec.md §4.1. The engine holds no resources; all state lives
// in the conversation's Metadata map, and it is the caller's job to
// serialize access per conversation (spec §5).
package slotselect

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/auroraspa/receptionist/internal/spaclock"
	"github.com/auroraspa/receptionist/internal/store"
)

const offerTTL = 4 * time.Hour

// RecordOffers replaces pending_slot_offers with a new numbered, timestamped
// offer. If slots is empty, it clears any pending offers instead.
//
// Selection preservation: if the previous offer had a selected_slot, and
// the new list contains a slot with the same Start, that slot's new index
// becomes the preserved selection. Otherwise, if the previous
// selected_option_index is still in range, that index (and the slot now at
// it) is preserved. Otherwise the prior selection is discarded.
func RecordOffers(meta store.Metadata, toolCallID, serviceType, date string, slots []store.PresentedSlot, now time.Time) store.Metadata {
	meta = meta.Clone()

	if len(slots) == 0 {
		meta.PendingSlotOffers = nil
		return meta
	}

	numbered := make([]store.PresentedSlot, len(slots))
	for i, s := range slots {
		s.Index = i + 1
		numbered[i] = s
	}

	offer := &store.PendingSlotOffers{
		SourceToolCallID: toolCallID,
		ServiceType:      serviceType,
		Date:             date,
		OfferedAt:        now,
		ExpiresAt:        now.Add(offerTTL),
		Slots:            numbered,
	}

	if prev := meta.PendingSlotOffers; prev != nil {
		if prev.SelectedSlot != nil {
			for _, s := range numbered {
				if s.Start.Equal(prev.SelectedSlot.Start) {
					idx := s.Index
					selected := s
					offer.SelectedOptionIndex = &idx
					offer.SelectedSlot = &selected
					offer.SelectedByMessageID = prev.SelectedByMessageID
					offer.SelectedContentPreview = prev.SelectedContentPreview
					offer.SelectedAt = prev.SelectedAt
					break
				}
			}
		}
		if offer.SelectedOptionIndex == nil && prev.SelectedOptionIndex != nil {
			idx := *prev.SelectedOptionIndex
			if idx >= 1 && idx <= len(numbered) {
				selected := numbered[idx-1]
				offer.SelectedOptionIndex = &idx
				offer.SelectedSlot = &selected
				offer.SelectedByMessageID = prev.SelectedByMessageID
				offer.SelectedContentPreview = prev.SelectedContentPreview
				offer.SelectedAt = prev.SelectedAt
			}
		}
	}

	meta.PendingSlotOffers = offer
	return meta
}

// ClearOffers removes pending_slot_offers from metadata.
func ClearOffers(meta store.Metadata) store.Metadata {
	meta = meta.Clone()
	meta.PendingSlotOffers = nil
	return meta
}

var standaloneInteger = regexp.MustCompile(`\b(\d{1,2})\b`)

// CaptureSelection attempts to extract the user's slot choice from message
// text. On success it returns updated metadata and true; on failure it
// returns the metadata unchanged and false.
func CaptureSelection(meta store.Metadata, messageID, content string, now time.Time) (store.Metadata, bool) {
	offers := meta.PendingSlotOffers
	if offers == nil || offers.Expired(now) || len(offers.Slots) == 0 {
		return meta, false
	}

	text := strings.ToLower(strings.TrimSpace(content))

	var chosen *store.PresentedSlot

	if idx, ok := firstStandaloneIndexInRange(text, len(offers.Slots)); ok {
		chosen = &offers.Slots[idx-1]
	}

	if chosen == nil {
		for i := range offers.Slots {
			slot := offers.Slots[i]
			label := strings.ToLower(slot.StartTime)
			if label == "" {
				continue
			}
			if strings.Contains(text, label) || strings.Contains(text, strings.ReplaceAll(label, " ", "")) {
				chosen = &offers.Slots[i]
				break
			}
		}
	}

	if chosen == nil {
		for i := range offers.Slots {
			slot := offers.Slots[i]
			iso := slot.Start.Format(time.RFC3339)
			if iso == "" {
				continue
			}
			if strings.Contains(content, iso) {
				chosen = &offers.Slots[i]
				break
			}
		}
	}

	if chosen == nil {
		return meta, false
	}

	meta = meta.Clone()
	idx := chosen.Index
	selected := *chosen
	preview := content
	if len(preview) > 120 {
		preview = preview[:120]
	}
	selectedAt := now

	meta.PendingSlotOffers.SelectedOptionIndex = &idx
	meta.PendingSlotOffers.SelectedSlot = &selected
	meta.PendingSlotOffers.SelectedByMessageID = messageID
	meta.PendingSlotOffers.SelectedContentPreview = preview
	meta.PendingSlotOffers.SelectedAt = &selectedAt

	return meta, true
}

// firstStandaloneIndexInRange scans lowercased text left-to-right for
// standalone 1-2 digit integers, rejecting any that look like a clock
// expression (preceded/followed by ':' or followed by am/pm/a.m/p.m after
// optional whitespace), and returns the first remaining integer that falls
// in [1, n].
func firstStandaloneIndexInRange(text string, n int) (int, bool) {
	for _, loc := range standaloneInteger.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		if looksLikeClockExpression(text, start, end) {
			continue
		}
		value, err := strconv.Atoi(text[start:end])
		if err != nil {
			continue
		}
		if value >= 1 && value <= n {
			return value, true
		}
	}
	return 0, false
}

func looksLikeClockExpression(text string, start, end int) bool {
	if start > 0 && text[start-1] == ':' {
		return true
	}
	if end < len(text) && text[end] == ':' {
		return true
	}

	rest := strings.TrimLeft(text[end:], " \t")
	for _, suffix := range []string{"am", "pm", "a.m", "p.m"} {
		if strings.HasPrefix(rest, suffix) {
			return true
		}
	}
	return false
}

// Adjustment records a field the engine overwrote while enforcing a
// booking, for inclusion in the tool result so the LLM can see what
// actually happened.
type Adjustment struct {
	Original   string
	Normalized string
}

// BookingArguments is the subset of book_appointment's arguments the
// slot-selection engine inspects and may normalize.
type BookingArguments struct {
	StartTime   string
	ServiceType string
	Date        string
}

// ErrSlotSelectionMismatch is returned by EnforceBooking when the requested
// booking cannot be reconciled with any offered or selected slot.
type ErrSlotSelectionMismatch struct {
	Reason             string
	PendingSlotOptions []store.PresentedSlot
}

func (e *ErrSlotSelectionMismatch) Error() string {
	return "slotselect: " + e.Reason
}

// EnforceBooking is called immediately before any book_appointment
// executes. The captured selection always takes precedence over a
// model-supplied start_time even when both exist; normalization always
// rewrites start_time to the slot's canonical ISO value and fills in
// service_type/date from the offer if the argument omitted them.
func EnforceBooking(meta store.Metadata, args BookingArguments, clock *spaclock.Clock, now time.Time) (store.Metadata, BookingArguments, map[string]Adjustment, error) {
	offers := meta.PendingSlotOffers
	if offers == nil || offers.Expired(now) || len(offers.Slots) == 0 {
		return meta, args, nil, &ErrSlotSelectionMismatch{Reason: "no pending slot offers exist for this conversation"}
	}

	adjustments := make(map[string]Adjustment)

	if offers.SelectedSlot != nil {
		slot := *offers.SelectedSlot
		normalizedArgs, adj := normalizeArguments(args, slot, offers.ServiceType, clock)
		for k, v := range adj {
			adjustments[k] = v
		}
		return meta, normalizedArgs, adjustments, nil
	}

	// No captured selection: fall back to matching the requested start_time
	// against the offer list.
	if args.StartTime == "" {
		return meta, args, nil, &ErrSlotSelectionMismatch{
			Reason:             "no slot selection was captured and no start_time was supplied",
			PendingSlotOptions: offers.Slots,
		}
	}

	for _, slot := range offers.Slots {
		if matchesSlot(slot, args.StartTime, clock) {
			meta = meta.Clone()
			idx := slot.Index
			selected := slot
			meta.PendingSlotOffers.SelectedOptionIndex = &idx
			meta.PendingSlotOffers.SelectedSlot = &selected

			normalizedArgs, adj := normalizeArguments(args, slot, offers.ServiceType, clock)
			for k, v := range adj {
				adjustments[k] = v
			}
			return meta, normalizedArgs, adjustments, nil
		}
	}

	return meta, args, nil, &ErrSlotSelectionMismatch{
		Reason:             "the requested start_time does not match any offered slot",
		PendingSlotOptions: offers.Slots,
	}
}

func matchesSlot(slot store.PresentedSlot, requestedStart string, clock *spaclock.Clock) bool {
	parsed, err := clock.ParseISO(requestedStart)
	if err != nil {
		// Fall back to exact string match if parsing fails.
		return slot.Start.Format(time.RFC3339) == requestedStart
	}
	return clock.SameWallTime(slot.Start, parsed)
}

func normalizeArguments(args BookingArguments, slot store.PresentedSlot, offerServiceType string, clock *spaclock.Clock) (BookingArguments, map[string]Adjustment) {
	adjustments := make(map[string]Adjustment)
	normalized := args

	canonical := clock.FormatISO(slot.Start)
	if args.StartTime != canonical {
		adjustments["start_time"] = Adjustment{Original: args.StartTime, Normalized: canonical}
	}
	normalized.StartTime = canonical

	if normalized.ServiceType == "" {
		normalized.ServiceType = offerServiceType
	}
	if normalized.Date == "" {
		normalized.Date = slot.Start.Format(spaclock.ISODate)
	}
	return normalized, adjustments
}
