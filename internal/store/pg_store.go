package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrConversationNotFound is returned when a conversation id has no row.
var ErrConversationNotFound = errors.New("store: conversation not found")

// ErrAppointmentNotFound is returned when an appointment id has no row.
var ErrAppointmentNotFound = errors.New("store: appointment not found")

// pgxPool narrows pgxpool.Pool to the calls this package exercises, so
// tests can substitute pgxmock.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PGStore is the pgx-backed repository for conversations, messages,
// customers, and appointments.
type PGStore struct {
	pool pgxPool
}

// NewPGStore wraps a pgx connection pool. It panics on a nil pool, matching
// the teacher's constructor discipline for required collaborators.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	if pool == nil {
		panic("store: pool cannot be nil")
	}
	return &PGStore{pool: pool}
}

// newPGStoreWithPool is used by tests to inject a pgxmock pool.
func newPGStoreWithPool(pool pgxPool) *PGStore {
	if pool == nil {
		panic("store: pool cannot be nil")
	}
	return &PGStore{pool: pool}
}

// EnsureConversation loads the conversation with the given id, whatever its
// status, or creates it as active when no row exists. Callers derive id
// from the channel and the customer's identity (phone for sms/voice, email
// address for email).
func (s *PGStore) EnsureConversation(ctx context.Context, id string, channel Channel, customerID string, now time.Time) (*Conversation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, customer_id, channel, status, initiated_at, last_activity_at,
		       completed_at, satisfaction_score, sentiment, outcome_code, summary,
		       subject, metadata
		FROM conversations WHERE id = $1`, id)

	conv, err := scanConversation(row)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("store: failed to load conversation: %w", err)
	}

	metaJSON, err := Metadata{}.MarshalJSONB()
	if err != nil {
		return nil, fmt.Errorf("store: failed to encode empty metadata: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO conversations (id, customer_id, channel, status, initiated_at, last_activity_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $5, $6)`,
		id, nullableString(customerID), string(channel), string(ConversationActive), now, metaJSON)
	if err != nil {
		return nil, fmt.Errorf("store: failed to create conversation: %w", err)
	}

	return &Conversation{
		ID:             id,
		CustomerID:     customerID,
		Channel:        channel,
		Status:         ConversationActive,
		InitiatedAt:    now,
		LastActivityAt: now,
	}, nil
}

// GetConversation loads a conversation by id.
func (s *PGStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, customer_id, channel, status, initiated_at, last_activity_at,
		       completed_at, satisfaction_score, sentiment, outcome_code, summary,
		       subject, metadata
		FROM conversations WHERE id = $1`, id)

	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: failed to load conversation: %w", err)
	}
	return conv, nil
}

// MutateMetadata loads the current metadata, applies fn, and writes the
// whole map back in one statement — the "mutate then persist" discipline
// spec §9 calls for instead of naive in-place updates.
func (s *PGStore) MutateMetadata(ctx context.Context, conversationID string, fn func(Metadata) Metadata) error {
	conv, err := s.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}

	updated := fn(conv.Metadata.Clone())
	raw, err := updated.MarshalJSONB()
	if err != nil {
		return fmt.Errorf("store: failed to encode metadata: %w", err)
	}

	_, err = s.pool.Exec(ctx, `UPDATE conversations SET metadata = $2 WHERE id = $1`, conversationID, raw)
	if err != nil {
		return fmt.Errorf("store: failed to persist metadata: %w", err)
	}
	return nil
}

// UpdateStatus transitions a conversation's status. It does not enforce the
// monotonic active->(completed|failed) invariant itself; callers are
// expected to only call this from the finalize path.
func (s *PGStore) UpdateStatus(ctx context.Context, conversationID string, status ConversationStatus, completedAt *time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE conversations SET status = $2, completed_at = $3 WHERE id = $1`,
		conversationID, string(status), completedAt)
	if err != nil {
		return fmt.Errorf("store: failed to update conversation status: %w", err)
	}
	return nil
}

// RecordScoring persists the output of Conversation Scoring (spec §4.6).
func (s *PGStore) RecordScoring(ctx context.Context, conversationID string, satisfaction int, sentiment, outcome, summary string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE conversations SET satisfaction_score = $2, sentiment = $3, outcome_code = $4, summary = $5
		WHERE id = $1`, conversationID, satisfaction, sentiment, outcome, summary)
	if err != nil {
		return fmt.Errorf("store: failed to record scoring: %w", err)
	}
	return nil
}

// TouchActivity updates last_activity_at.
func (s *PGStore) TouchActivity(ctx context.Context, conversationID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE conversations SET last_activity_at = $2 WHERE id = $1`, conversationID, at)
	if err != nil {
		return fmt.Errorf("store: failed to touch activity: %w", err)
	}
	return nil
}

// AppendMessage inserts a new message and advances last_activity_at in the
// same transaction so the two are never observed out of sync.
func (s *PGStore) AppendMessage(ctx context.Context, msg Message) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, direction, content, sent_at, processed)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.ConversationID, string(msg.Direction), msg.Content, msg.SentAt, msg.Processed)
	if err != nil {
		return fmt.Errorf("store: failed to insert message: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE conversations SET last_activity_at = $2 WHERE id = $1`, msg.ConversationID, msg.SentAt)
	if err != nil {
		return fmt.Errorf("store: failed to update last activity: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: failed to commit message append: %w", err)
	}
	return nil
}

// GetMessages loads every message for a conversation ordered by sent_at,
// tie-breaking by insertion order.
func (s *PGStore) GetMessages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, direction, content, sent_at, processed
		FROM messages WHERE conversation_id = $1 ORDER BY sent_at ASC, ctid ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("store: failed to query messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var direction string
		if err := rows.Scan(&m.ID, &m.ConversationID, &direction, &m.Content, &m.SentAt, &m.Processed); err != nil {
			return nil, fmt.Errorf("store: failed to scan message: %w", err)
		}
		m.Direction = MessageDirection(direction)
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateAppointment inserts a new appointment row.
func (s *PGStore) CreateAppointment(ctx context.Context, appt Appointment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO appointments
			(id, customer_id, calendar_event_id, appointment_datetime, service_type,
			 provider, duration_minutes, status, booked_by, special_requests, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`,
		appt.ID, appt.CustomerID, appt.CalendarEventID, appt.AppointmentDatetime, appt.ServiceType,
		nullableString(appt.Provider), appt.DurationMinutes, string(appt.Status), string(appt.BookedBy),
		nullableString(appt.SpecialRequests), appt.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: failed to create appointment: %w", err)
	}
	return nil
}

// UpdateAppointmentStatus transitions an appointment, recording a
// cancellation reason/time when applicable.
func (s *PGStore) UpdateAppointmentStatus(ctx context.Context, appointmentID string, status AppointmentStatus, cancellationReason string, cancelledAt *time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE appointments SET status = $2, cancellation_reason = $3, cancelled_at = $4, updated_at = $5
		WHERE id = $1`, appointmentID, string(status), nullableString(cancellationReason), cancelledAt, time.Now())
	if err != nil {
		return fmt.Errorf("store: failed to update appointment status: %w", err)
	}
	return nil
}

// GetAppointmentByCalendarEventID looks up the appointment row anchored to
// a calendar_event_id, the key the Booking Orchestrator upserts on so a
// retried book_appointment or reschedule_appointment call updates the
// existing row instead of creating a duplicate.
func (s *PGStore) GetAppointmentByCalendarEventID(ctx context.Context, calendarEventID string) (*Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, customer_id, calendar_event_id, appointment_datetime, service_type, provider,
		       duration_minutes, status, booked_by, special_requests, cancellation_reason, cancelled_at,
		       created_at, updated_at
		FROM appointments WHERE calendar_event_id = $1`, calendarEventID)

	var appt Appointment
	var status, bookedBy string
	var provider, specialRequests, cancellationReason *string
	err := row.Scan(&appt.ID, &appt.CustomerID, &appt.CalendarEventID, &appt.AppointmentDatetime, &appt.ServiceType,
		&provider, &appt.DurationMinutes, &status, &bookedBy, &specialRequests, &cancellationReason, &appt.CancelledAt,
		&appt.CreatedAt, &appt.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: failed to look up appointment: %w", err)
	}
	appt.Status = AppointmentStatus(status)
	appt.BookedBy = BookedBy(bookedBy)
	if provider != nil {
		appt.Provider = *provider
	}
	if specialRequests != nil {
		appt.SpecialRequests = *specialRequests
	}
	if cancellationReason != nil {
		appt.CancellationReason = *cancellationReason
	}
	return &appt, nil
}

// UpdateAppointmentDetails rewrites the mutable scheduling fields of an
// existing appointment row, used by reschedule_appointment. It resets the
// status to scheduled and clears any prior cancellation, mirroring a
// reschedule overwriting a cancellation in the source system.
func (s *PGStore) UpdateAppointmentDetails(ctx context.Context, appointmentID string, datetime time.Time, serviceType, provider string, durationMinutes int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE appointments SET appointment_datetime = $2, service_type = $3, provider = $4,
			duration_minutes = $5, status = $6, cancellation_reason = NULL, cancelled_at = NULL, updated_at = $7
		WHERE id = $1`, appointmentID, datetime, serviceType, nullableString(provider), durationMinutes,
		string(AppointmentScheduled), time.Now())
	if err != nil {
		return fmt.Errorf("store: failed to update appointment details: %w", err)
	}
	return nil
}

// FindOrCreateCustomer resolves a customer by phone (or a synthesized
// email:<hash> placeholder when only an email is known), creating one on
// first contact.
func (s *PGStore) FindOrCreateCustomer(ctx context.Context, id, name, phone, email string, synthesized bool, now time.Time) (*Customer, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, name, phone, synthesized, email, created_at, updated_at FROM customers WHERE phone = $1`, phone)

	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Synthesized, &c.Email, &c.CreatedAt, &c.UpdatedAt)
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("store: failed to look up customer: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO customers (id, name, phone, synthesized, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`, id, name, phone, synthesized, email, now)
	if err != nil {
		return nil, fmt.Errorf("store: failed to create customer: %w", err)
	}

	return &Customer{ID: id, Name: name, Phone: phone, Synthesized: synthesized, Email: email, CreatedAt: now, UpdatedAt: now}, nil
}

// SaveVoiceDetails persists the 1:1 voice-channel detail row for a voice
// Message, including the full transcript and observed function calls
// (spec §4.5's finalization step).
func (s *PGStore) SaveVoiceDetails(ctx context.Context, vd VoiceDetails) error {
	segments, err := json.Marshal(vd.TranscriptSegments)
	if err != nil {
		return fmt.Errorf("store: failed to encode transcript segments: %w", err)
	}
	calls, err := json.Marshal(vd.FunctionCalls)
	if err != nil {
		return fmt.Errorf("store: failed to encode function calls: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO voice_details
			(message_id, duration_seconds, recording_url, transcript_segments, function_calls, interruption_count)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		vd.MessageID, vd.DurationSeconds, nullableString(vd.RecordingURL), segments, calls, vd.InterruptionCount)
	if err != nil {
		return fmt.Errorf("store: failed to save voice details: %w", err)
	}
	return nil
}

func scanConversation(row pgx.Row) (*Conversation, error) {
	var c Conversation
	var channel, status string
	var metaJSON []byte
	var customerID *string
	var subject, sentiment, outcome, summary *string
	var satisfaction *int

	err := row.Scan(&c.ID, &customerID, &channel, &status, &c.InitiatedAt, &c.LastActivityAt,
		&c.CompletedAt, &satisfaction, &sentiment, &outcome, &summary, &subject, &metaJSON)
	if err != nil {
		return nil, err
	}

	c.Channel = Channel(channel)
	c.Status = ConversationStatus(status)
	if customerID != nil {
		c.CustomerID = *customerID
	}
	if subject != nil {
		c.Subject = *subject
	}
	if sentiment != nil {
		c.Sentiment = *sentiment
	}
	if outcome != nil {
		c.OutcomeCode = *outcome
	}
	if summary != nil {
		c.Summary = *summary
	}
	c.SatisfactionScore = satisfaction

	meta, err := UnmarshalMetadataJSONB(metaJSON)
	if err != nil {
		return nil, fmt.Errorf("store: failed to decode metadata: %w", err)
	}
	c.Metadata = meta

	return &c, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
