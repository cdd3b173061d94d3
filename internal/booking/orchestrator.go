package booking

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/auroraspa/receptionist/internal/calendarport"
	"github.com/auroraspa/receptionist/internal/services"
	"github.com/auroraspa/receptionist/internal/slotselect"
	"github.com/auroraspa/receptionist/internal/spaclock"
	"github.com/auroraspa/receptionist/internal/store"
	"github.com/auroraspa/receptionist/pkg/logging"
)

// Store is the persistence surface the Orchestrator writes through once a
// calendar operation succeeds: it resolves the customer a booking belongs
// to and upserts the Appointment row by calendar_event_id. A nil Store
// (the Orchestrator's default) leaves the calendar as the only system of
// record, which is how every existing test constructs one.
type Store interface {
	FindOrCreateCustomer(ctx context.Context, id, name, phone, email string, synthesized bool, now time.Time) (*store.Customer, error)
	GetAppointmentByCalendarEventID(ctx context.Context, calendarEventID string) (*store.Appointment, error)
	CreateAppointment(ctx context.Context, appt store.Appointment) error
	UpdateAppointmentDetails(ctx context.Context, appointmentID string, datetime time.Time, serviceType, provider string, durationMinutes int) error
	UpdateAppointmentStatus(ctx context.Context, appointmentID string, status store.AppointmentStatus, cancellationReason string, cancelledAt *time.Time) error
}

var _ Store = (*store.PGStore)(nil)

// bookingOutcomesTotal counts every Orchestrator call by operation and
// outcome code, mirroring the teacher's llm_service.go metrics idiom.
var bookingOutcomesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "receptionist",
		Subsystem: "booking",
		Name:      "outcomes_total",
		Help:      "Booking Orchestrator calls by operation and outcome code.",
	},
	[]string{"operation", "code"},
)

// slotSelectionMismatchesTotal counts book_appointment calls rejected
// because the requested start_time did not match any offered slot.
var slotSelectionMismatchesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "receptionist",
		Subsystem: "booking",
		Name:      "slot_selection_mismatches_total",
		Help:      "book_appointment calls rejected for not matching a presented slot offer.",
	},
	[]string{"service_type"},
)

func init() {
	prometheus.MustRegister(bookingOutcomesTotal, slotSelectionMismatchesTotal)
}

// RegisterMetrics registers booking metrics with a custom registry,
// mirroring the teacher's per-package opt-in pattern.
func RegisterMetrics(reg prometheus.Registerer) {
	if reg == nil || reg == prometheus.DefaultRegisterer {
		return
	}
	reg.MustRegister(bookingOutcomesTotal, slotSelectionMismatchesTotal)
}

// Orchestrator is a thin typed facade over the four booking tools. It owns
// wiring each tool to the Slot-Selection Engine so no caller can execute a
// booking outside the engine's guarantees.
type Orchestrator struct {
	cal      calendarport.Port
	clock    *spaclock.Clock
	notifier *Notifier
	store    Store
	logger   *logging.Logger
}

// NewOrchestrator constructs an Orchestrator. It panics if cal is nil,
// mirroring the teacher's constructor-panics-on-nil-dependency pattern.
func NewOrchestrator(cal calendarport.Port, clock *spaclock.Clock) *Orchestrator {
	if cal == nil {
		panic("booking: NewOrchestrator requires a non-nil calendarport.Port")
	}
	if clock == nil {
		panic("booking: NewOrchestrator requires a non-nil spaclock.Clock")
	}
	return &Orchestrator{cal: cal, clock: clock, logger: logging.Default()}
}

// WithNotifier attaches a confirmation notifier. Confirmations are sent
// best-effort after a successful book_appointment call; a nil notifier (the
// default) disables them.
func (o *Orchestrator) WithNotifier(n *Notifier) *Orchestrator {
	o.notifier = n
	return o
}

// WithStore attaches the Appointment-persistence store. A nil store (the
// default) disables persistence: the calendar call still runs, but no
// Appointment row is written.
func (o *Orchestrator) WithStore(s Store) *Orchestrator {
	o.store = s
	return o
}

func (o *Orchestrator) log() *logging.Logger {
	if o.logger == nil {
		return logging.Default()
	}
	return o.logger
}

// Outcome discriminant codes. These are not Go errors: the turn and voice
// orchestrators serialize an Outcome directly into a tool-result payload,
// so a typed discriminant plus payload fields is the right shape, not an
// error interface (spec §10.2).
const (
	OutcomeOK                   = "ok"
	OutcomeSlotSelectionMismatch = "slot_selection_mismatch"
	OutcomeCalendarError        = "calendar_error"
	OutcomeInvalidArguments     = "invalid_arguments"
)

// Outcome is the typed result of any Orchestrator call, serialized
// directly into the tool-result content sent back to the LLM.
type Outcome struct {
	Code               string                   `json:"-"`
	Success            bool                     `json:"success"`
	Error              string                   `json:"error,omitempty"`
	BookingCode        string                   `json:"code,omitempty"`
	PendingSlotOptions []store.PresentedSlot    `json:"pending_slot_options,omitempty"`
	CheckAvailability  *CheckAvailabilityResult `json:"-"`
	BookAppointment    *BookAppointmentResult   `json:"-"`
	Reschedule         *RescheduleAppointmentResult `json:"-"`
	Cancel             *CancelAppointmentResult `json:"-"`
}

// CheckAvailability runs the check_availability tool and, per spec §4.3,
// calls record_offers on success or clear_offers on failure/empty results.
func (o *Orchestrator) CheckAvailability(ctx context.Context, meta store.Metadata, toolCallID string, args CheckAvailabilityArgs, now time.Time) (Outcome, store.Metadata) {
	result, slots, err := CheckAvailability(ctx, o.cal, o.clock, args)
	if err != nil || !result.Success || len(slots) == 0 {
		meta = slotselect.ClearOffers(meta)
		bookingOutcomesTotal.WithLabelValues("check_availability", OutcomeOK).Inc()
		return Outcome{Code: OutcomeOK, Success: result.Success, Error: result.Error, CheckAvailability: &result}, meta
	}

	presented := toPresentedSlots(slots)
	meta = slotselect.RecordOffers(meta, toolCallID, result.ServiceType, result.Date, presented, now)
	bookingOutcomesTotal.WithLabelValues("check_availability", OutcomeOK).Inc()
	return Outcome{Code: OutcomeOK, Success: true, CheckAvailability: &result}, meta
}

func toPresentedSlots(slots []calendarport.Slot) []store.PresentedSlot {
	out := make([]store.PresentedSlot, len(slots))
	for i, s := range slots {
		out[i] = store.PresentedSlot{
			Index:     i + 1,
			Start:     s.Start,
			StartTime: s.StartTime,
			End:       s.End,
			EndTime:   s.EndTime,
		}
	}
	return out
}

// BookAppointment enforces slot-selection precedence before ever touching
// the calendar. On SlotSelectionMismatch it returns a structured failure
// payload per spec §4.3 so the LLM re-offers instead of retrying blindly.
func (o *Orchestrator) BookAppointment(ctx context.Context, meta store.Metadata, args BookAppointmentArgs, now time.Time) (Outcome, store.Metadata) {
	meta, normalizedTimes, _, err := slotselect.EnforceBooking(meta, slotselect.BookingArguments{
		StartTime:   args.StartTime,
		ServiceType: args.ServiceType,
	}, o.clock, now)
	if err != nil {
		if mismatch, ok := err.(*slotselect.ErrSlotSelectionMismatch); ok {
			slotSelectionMismatchesTotal.WithLabelValues(args.ServiceType).Inc()
			bookingOutcomesTotal.WithLabelValues("book_appointment", OutcomeSlotSelectionMismatch).Inc()
			return Outcome{
				Code:               OutcomeSlotSelectionMismatch,
				Success:            false,
				Error:              mismatch.Error(),
				BookingCode:        OutcomeSlotSelectionMismatch,
				PendingSlotOptions: mismatch.PendingSlotOptions,
			}, meta
		}
		bookingOutcomesTotal.WithLabelValues("book_appointment", OutcomeInvalidArguments).Inc()
		return Outcome{Code: OutcomeInvalidArguments, Success: false, Error: err.Error()}, meta
	}

	args.StartTime = normalizedTimes.StartTime
	if normalizedTimes.ServiceType != "" {
		args.ServiceType = normalizedTimes.ServiceType
	}

	result, err := BookAppointment(ctx, o.cal, o.clock, args)
	if err != nil {
		bookingOutcomesTotal.WithLabelValues("book_appointment", OutcomeCalendarError).Inc()
		return Outcome{Code: OutcomeCalendarError, Success: false, Error: err.Error(), BookAppointment: &result}, meta
	}
	if !result.Success {
		bookingOutcomesTotal.WithLabelValues("book_appointment", OutcomeCalendarError).Inc()
		return Outcome{Code: OutcomeCalendarError, Success: false, Error: result.Error, BookAppointment: &result}, meta
	}

	meta = slotselect.ClearOffers(meta)
	meta = meta.Clone()
	meta.PendingBookingIntent = false
	meta.PendingBookingService = ""
	meta.LastAppointment = &store.LastAppointment{
		CalendarEventID: result.EventID,
		ServiceType:     result.ServiceType,
		Provider:        result.Provider,
		StartTime:       result.StartTime,
		Status:          string(store.AppointmentScheduled),
	}

	bookingOutcomesTotal.WithLabelValues("book_appointment", OutcomeOK).Inc()
	o.persistBooking(ctx, args, result, now)
	o.notifier.NotifyBooked(ctx, args.CustomerPhone, args.CustomerEmail, result)
	return Outcome{Code: OutcomeOK, Success: true, BookAppointment: &result}, meta
}

// persistBooking upserts the Appointment row for a newly booked calendar
// event, keyed by calendar_event_id so a retried book_appointment tool call
// updates the existing row rather than creating a second one (spec's
// at-most-one-row idempotence law). The calendar event has already been
// created by this point; a persistence failure is logged, not surfaced to
// the caller, since rolling back a live calendar booking would be worse.
func (o *Orchestrator) persistBooking(ctx context.Context, args BookAppointmentArgs, result BookAppointmentResult, now time.Time) {
	if o.store == nil {
		return
	}
	customer, err := o.store.FindOrCreateCustomer(ctx, spaclock.NewID(), args.CustomerName, args.CustomerPhone, args.CustomerEmail, false, now)
	if err != nil {
		o.log().Warn("booking: failed to resolve customer for appointment persistence", "error", err)
		return
	}
	start, err := o.clock.ParseISO(result.StartTime)
	if err != nil {
		start = now
	}

	existing, err := o.store.GetAppointmentByCalendarEventID(ctx, result.EventID)
	switch {
	case err == nil:
		if uerr := o.store.UpdateAppointmentDetails(ctx, existing.ID, start, result.ServiceType, result.Provider, result.DurationMinutes); uerr != nil {
			o.log().Warn("booking: failed to update existing appointment row", "error", uerr)
		}
	case errors.Is(err, store.ErrAppointmentNotFound):
		if cerr := o.store.CreateAppointment(ctx, store.Appointment{
			ID:                  spaclock.NewID(),
			CustomerID:          customer.ID,
			CalendarEventID:     result.EventID,
			AppointmentDatetime: start,
			ServiceType:         result.ServiceType,
			Provider:            result.Provider,
			DurationMinutes:     result.DurationMinutes,
			Status:              store.AppointmentScheduled,
			BookedBy:            store.BookedByAI,
			SpecialRequests:     args.Notes,
			CreatedAt:           now,
		}); cerr != nil {
			o.log().Warn("booking: failed to create appointment row", "error", cerr)
		}
	default:
		o.log().Warn("booking: failed to look up appointment by calendar event id", "error", err)
	}
}

// RescheduleAppointment runs the reschedule tool and, on success, updates
// last_appointment's anchor fields. If args carries no appointment_id, it
// falls back to meta.LastAppointment's anchor, mirroring the source
// system's "appointment_id or last_appointment.calendar_event_id" rule for
// a caller (LLM or voice provider) that omits the id.
func (o *Orchestrator) RescheduleAppointment(ctx context.Context, meta store.Metadata, args RescheduleAppointmentArgs, now time.Time) (Outcome, store.Metadata) {
	if args.AppointmentID == "" && meta.LastAppointment != nil {
		args.AppointmentID = meta.LastAppointment.CalendarEventID
	}

	result, err := RescheduleAppointment(ctx, o.cal, o.clock, args)
	if err != nil || !result.Success {
		errMsg := result.Error
		if err != nil {
			errMsg = err.Error()
		}
		bookingOutcomesTotal.WithLabelValues("reschedule_appointment", OutcomeCalendarError).Inc()
		return Outcome{Code: OutcomeCalendarError, Success: false, Error: errMsg, Reschedule: &result}, meta
	}

	meta = meta.Clone()
	if meta.LastAppointment != nil && meta.LastAppointment.CalendarEventID == args.AppointmentID {
		meta.LastAppointment.StartTime = result.StartTime
		meta.LastAppointment.Status = string(store.AppointmentRescheduled)
	}
	bookingOutcomesTotal.WithLabelValues("reschedule_appointment", OutcomeOK).Inc()
	o.persistReschedule(ctx, args, result, now)
	return Outcome{Code: OutcomeOK, Success: true, Reschedule: &result}, meta
}

// persistReschedule rewrites the anchored appointment row's scheduling
// fields. If no row is anchored to this calendar_event_id (the appointment
// was never persisted, or persistence is disabled), it leaves the calendar
// as the only system of record rather than guessing a customer to attach a
// new row to.
func (o *Orchestrator) persistReschedule(ctx context.Context, args RescheduleAppointmentArgs, result RescheduleAppointmentResult, now time.Time) {
	if o.store == nil {
		return
	}
	existing, err := o.store.GetAppointmentByCalendarEventID(ctx, args.AppointmentID)
	if err != nil {
		if !errors.Is(err, store.ErrAppointmentNotFound) {
			o.log().Warn("booking: failed to look up appointment for reschedule", "error", err)
		}
		return
	}

	start, err := o.clock.ParseISO(result.StartTime)
	if err != nil {
		start = now
	}
	serviceType := args.ServiceType
	if serviceType == "" {
		serviceType = existing.ServiceType
	}
	provider := args.Provider
	if provider == "" {
		provider = existing.Provider
	}
	duration := existing.DurationMinutes
	if svc, ok := services.Lookup(serviceType); ok {
		duration = svc.DurationMinutes
	}

	if uerr := o.store.UpdateAppointmentDetails(ctx, existing.ID, start, serviceType, provider, duration); uerr != nil {
		o.log().Warn("booking: failed to update appointment row on reschedule", "error", uerr)
	}
}

// CancelAppointment runs the cancel tool and, on success, marks the
// anchored appointment cancelled. If args carries no appointment_id, it
// falls back to meta.LastAppointment's anchor, same as RescheduleAppointment.
func (o *Orchestrator) CancelAppointment(ctx context.Context, meta store.Metadata, args CancelAppointmentArgs) (Outcome, store.Metadata) {
	if args.AppointmentID == "" && meta.LastAppointment != nil {
		args.AppointmentID = meta.LastAppointment.CalendarEventID
	}

	result, err := CancelAppointment(ctx, o.cal, args)
	if err != nil || !result.Success {
		errMsg := result.Error
		if err != nil {
			errMsg = err.Error()
		}
		bookingOutcomesTotal.WithLabelValues("cancel_appointment", OutcomeCalendarError).Inc()
		return Outcome{Code: OutcomeCalendarError, Success: false, Error: errMsg, Cancel: &result}, meta
	}

	meta = meta.Clone()
	if meta.LastAppointment != nil && meta.LastAppointment.CalendarEventID == args.AppointmentID {
		meta.LastAppointment.Status = string(store.AppointmentCancelled)
		meta.LastAppointment.CancellationReason = args.CancellationReason
	}
	bookingOutcomesTotal.WithLabelValues("cancel_appointment", OutcomeOK).Inc()
	o.persistCancel(ctx, args, o.clock.Now())
	return Outcome{Code: OutcomeOK, Success: true, Cancel: &result}, meta
}

// persistCancel marks the anchored appointment row cancelled. As with
// persistReschedule, a missing row (nothing ever persisted for this
// calendar_event_id) is left alone.
func (o *Orchestrator) persistCancel(ctx context.Context, args CancelAppointmentArgs, now time.Time) {
	if o.store == nil {
		return
	}
	existing, err := o.store.GetAppointmentByCalendarEventID(ctx, args.AppointmentID)
	if err != nil {
		if !errors.Is(err, store.ErrAppointmentNotFound) {
			o.log().Warn("booking: failed to look up appointment for cancel", "error", err)
		}
		return
	}
	if uerr := o.store.UpdateAppointmentStatus(ctx, existing.ID, store.AppointmentCancelled, args.CancellationReason, &now); uerr != nil {
		o.log().Warn("booking: failed to update appointment status on cancel", "error", uerr)
	}
}
