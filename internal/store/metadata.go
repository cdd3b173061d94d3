package store

import (
	"encoding/json"
	"time"
)

// PresentedSlot is one slot offered to the customer, numbered 1-based
// within its offer.
type PresentedSlot struct {
	Index     int       `json:"index"`
	Start     time.Time `json:"start"`
	StartTime string    `json:"start_time"`
	End       time.Time `json:"end"`
	EndTime   string    `json:"end_time"`
}

// PendingSlotOffers is the in-flight offer record the slot-selection engine
// mediates. See spec.md §3 "Conversation metadata map".
type PendingSlotOffers struct {
	SourceToolCallID     string          `json:"source_tool_call_id,omitempty"`
	ServiceType          string          `json:"service_type"`
	Date                 string          `json:"date"`
	OfferedAt            time.Time       `json:"offered_at"`
	ExpiresAt            time.Time       `json:"expires_at"`
	Slots                []PresentedSlot `json:"slots"`
	SelectedOptionIndex  *int            `json:"selected_option_index,omitempty"`
	SelectedSlot         *PresentedSlot  `json:"selected_slot,omitempty"`
	SelectedByMessageID  string          `json:"selected_by_message_id,omitempty"`
	SelectedContentPreview string        `json:"selected_content_preview,omitempty"`
	SelectedAt           *time.Time      `json:"selected_at,omitempty"`
}

// Expired reports whether this offer's expiry has passed as of now.
func (p *PendingSlotOffers) Expired(now time.Time) bool {
	if p == nil {
		return true
	}
	return p.ExpiresAt.Before(now)
}

// LastAppointment is the anchor metadata for reschedule/cancel without an
// explicit appointment id.
type LastAppointment struct {
	CalendarEventID    string `json:"calendar_event_id"`
	ServiceType        string `json:"service_type"`
	Provider           string `json:"provider,omitempty"`
	StartTime          string `json:"start_time"`
	Status             string `json:"status"`
	CancellationReason string `json:"cancellation_reason,omitempty"`
}

// Metadata is the conversation's in-flight control block: a JSON map that
// must be written back in full on every mutation (spec §9's "mutate then
// persist" design note — naive in-place map edits lose data in many
// ORM-style stores, so every change here goes through PGStore.MutateMetadata).
type Metadata struct {
	PendingSlotOffers    *PendingSlotOffers `json:"pending_slot_offers,omitempty"`
	PendingBookingIntent bool               `json:"pending_booking_intent,omitempty"`
	PendingBookingService string            `json:"pending_booking_service,omitempty"`
	LastAppointment      *LastAppointment   `json:"last_appointment,omitempty"`
	CustomerName         string             `json:"customer_name,omitempty"`
	CustomerPhone        string             `json:"customer_phone,omitempty"`
	CustomerEmail        string             `json:"customer_email,omitempty"`
}

// Clone returns a deep-enough copy for safe mutation without aliasing the
// original's pointer fields.
func (m Metadata) Clone() Metadata {
	out := m
	if m.PendingSlotOffers != nil {
		offers := *m.PendingSlotOffers
		offers.Slots = append([]PresentedSlot(nil), m.PendingSlotOffers.Slots...)
		if m.PendingSlotOffers.SelectedSlot != nil {
			sel := *m.PendingSlotOffers.SelectedSlot
			offers.SelectedSlot = &sel
		}
		if m.PendingSlotOffers.SelectedOptionIndex != nil {
			idx := *m.PendingSlotOffers.SelectedOptionIndex
			offers.SelectedOptionIndex = &idx
		}
		if m.PendingSlotOffers.SelectedAt != nil {
			at := *m.PendingSlotOffers.SelectedAt
			offers.SelectedAt = &at
		}
		out.PendingSlotOffers = &offers
	}
	if m.LastAppointment != nil {
		la := *m.LastAppointment
		out.LastAppointment = &la
	}
	return out
}

// MarshalJSONB serializes the metadata map for storage in a jsonb column.
func (m Metadata) MarshalJSONB() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalMetadataJSONB deserializes a jsonb column value into Metadata.
func UnmarshalMetadataJSONB(raw []byte) (Metadata, error) {
	if len(raw) == 0 {
		return Metadata{}, nil
	}
	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return Metadata{}, err
	}
	return m, nil
}
