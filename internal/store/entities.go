// Package store is the Data Model & Store component: entities, invariants,
// and a pgx-backed repository with "mutate then persist" metadata
// semantics. See spec.md §3.
package store

import "time"

// Channel identifies which modality a conversation is conducted over.
type Channel string

const (
	ChannelVoice Channel = "voice"
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// ConversationStatus is the lifecycle state of a conversation. Transitions
// are monotonic: active -> (completed | failed).
type ConversationStatus string

const (
	ConversationActive    ConversationStatus = "active"
	ConversationCompleted ConversationStatus = "completed"
	ConversationFailed    ConversationStatus = "failed"
)

// MessageDirection is which way a message travelled.
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

// AppointmentStatus tracks an appointment's lifecycle.
type AppointmentStatus string

const (
	AppointmentScheduled  AppointmentStatus = "scheduled"
	AppointmentCompleted  AppointmentStatus = "completed"
	AppointmentCancelled  AppointmentStatus = "cancelled"
	AppointmentNoShow     AppointmentStatus = "no_show"
	AppointmentRescheduled AppointmentStatus = "rescheduled"
)

// BookedBy identifies who created an appointment.
type BookedBy string

const (
	BookedByAI    BookedBy = "ai"
	BookedByStaff BookedBy = "staff"
)

// Customer is a contact known to the spa. Phone is unique and non-null; a
// synthesized placeholder (email:<hash>) is used when only email is known.
// Synthesized phones never match real ones (spec §9 open question).
type Customer struct {
	ID           string
	Name         string
	Phone        string
	Synthesized  bool
	Email        string
	MedicalFlags []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Conversation is the aggregate root owning its messages, channel details,
// and in-flight metadata.
type Conversation struct {
	ID               string
	CustomerID       string // weak reference; may be empty until resolved
	Channel          Channel
	Status           ConversationStatus
	InitiatedAt      time.Time
	LastActivityAt   time.Time
	CompletedAt      *time.Time
	SatisfactionScore *int
	Sentiment        string
	OutcomeCode      string
	Summary          string
	Subject          string
	Metadata         Metadata
}

// Message is one inbound or outbound message within a conversation.
type Message struct {
	ID             string
	ConversationID string
	Direction      MessageDirection
	Content        string
	SentAt         time.Time
	InsertOrder    int64 // tie-breaker for messages sharing a SentAt
	Processed      bool
	Metadata       map[string]any
}

// TranscriptSegment is one utterance in a voice call transcript.
type TranscriptSegment struct {
	Speaker   string // "customer" or "assistant"
	Text      string
	Timestamp time.Time
}

// VoiceDetails is 1:1 with a voice Message.
type VoiceDetails struct {
	MessageID          string
	DurationSeconds    int
	RecordingURL       string
	TranscriptSegments []TranscriptSegment
	FunctionCalls      []string
	InterruptionCount  int
}

// SMSDetails is channel-specific metadata for an SMS message.
type SMSDetails struct {
	MessageID         string
	Sender            string
	Recipient         string
	ProviderMessageID string
	DeliveryStatus    string
}

// EmailDetails is channel-specific metadata for an email message.
type EmailDetails struct {
	MessageID         string
	Sender            string
	Recipient         string
	Subject           string
	ProviderMessageID string
	DeliveryStatus    string
	Attachments       []string
}

// Appointment is a booked, rescheduled, or cancelled service instance.
// Invariant: CalendarEventID round-trips to the calendar of record for any
// non-cancelled appointment.
type Appointment struct {
	ID                 string
	CustomerID         string
	CalendarEventID    string
	AppointmentDatetime time.Time
	ServiceType        string
	Provider           string
	DurationMinutes    int
	Status             AppointmentStatus
	BookedBy           BookedBy
	SpecialRequests    string
	CancellationReason string
	CancelledAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
