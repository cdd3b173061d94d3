// Package booking implements the Booking Tools (pure handlers over the
// Calendar Port and services catalog) and the Booking Orchestrator, a thin
// facade that wires the tools to the Slot-Selection Engine. See spec.md
// §4.2/§4.3.
package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/auroraspa/receptionist/internal/calendarport"
	"github.com/auroraspa/receptionist/internal/services"
	"github.com/auroraspa/receptionist/internal/spaclock"
)

// SlotOption is the wire shape of one offered slot within a
// check_availability result.
type SlotOption struct {
	Index     int    `json:"index"`
	Start     string `json:"start"`
	End       string `json:"end"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// CheckAvailabilityArgs is the tool's input.
type CheckAvailabilityArgs struct {
	Date        string
	ServiceType string
	Limit       int
}

// CheckAvailabilityResult is the tool's output shape, matching spec §4.2's
// {success, date, service_type, available_slots, all_slots,
// availability_summary?, suggested_slots?, error?} contract.
type CheckAvailabilityResult struct {
	Success             bool         `json:"success"`
	Date                string       `json:"date"`
	ServiceType         string       `json:"service_type"`
	AvailableSlots      []SlotOption `json:"available_slots"`
	AllSlots            []SlotOption `json:"all_slots"`
	AvailabilitySummary string       `json:"availability_summary,omitempty"`
	SuggestedSlots      []SlotOption `json:"suggested_slots,omitempty"`
	Error               string       `json:"error,omitempty"`
}

// CheckAvailability scans the calendar of record for open slots. It never
// touches conversation state; persisting the offer is the Orchestrator's
// job (record_offers).
func CheckAvailability(ctx context.Context, cal calendarport.Port, clock *spaclock.Clock, args CheckAvailabilityArgs) (CheckAvailabilityResult, []calendarport.Slot, error) {
	svc, ok := services.Lookup(args.ServiceType)
	if !ok {
		return CheckAvailabilityResult{
			Success:     false,
			Date:        args.Date,
			ServiceType: args.ServiceType,
			Error:       fmt.Sprintf("unknown service_type %q", args.ServiceType),
		}, nil, nil
	}

	date, err := time.ParseInLocation(spaclock.ISODate, args.Date, clock.Location())
	if err != nil {
		return CheckAvailabilityResult{
			Success:     false,
			Date:        args.Date,
			ServiceType: args.ServiceType,
			Error:       fmt.Sprintf("invalid date %q: %v", args.Date, err),
		}, nil, nil
	}

	slots, err := cal.AvailableSlots(ctx, date, svc.Key)
	if err != nil {
		return CheckAvailabilityResult{
			Success:     false,
			Date:        args.Date,
			ServiceType: args.ServiceType,
			Error:       err.Error(),
		}, nil, err
	}

	limit := args.Limit
	if limit <= 0 || limit > len(slots) {
		limit = len(slots)
	}

	all := toSlotOptions(slots)
	suggested := all[:limit]

	summary := ""
	if len(slots) == 0 {
		summary = fmt.Sprintf("No openings for %s on %s.", svc.DisplayName, args.Date)
	} else {
		summary = fmt.Sprintf("%d openings for %s on %s, starting at %s.", len(slots), svc.DisplayName, args.Date, slots[0].StartTime)
	}

	return CheckAvailabilityResult{
		Success:             true,
		Date:                args.Date,
		ServiceType:         svc.Key,
		AvailableSlots:      suggested,
		AllSlots:            all,
		AvailabilitySummary: summary,
		SuggestedSlots:      suggested,
	}, slots, nil
}

func toSlotOptions(slots []calendarport.Slot) []SlotOption {
	out := make([]SlotOption, len(slots))
	for i, s := range slots {
		out[i] = SlotOption{
			Index:     i + 1,
			Start:     s.Start.Format(time.RFC3339),
			End:       s.End.Format(time.RFC3339),
			StartTime: s.StartTime,
			EndTime:   s.EndTime,
		}
	}
	return out
}

// BookAppointmentArgs is the tool's input, already normalized by
// enforce_booking before this handler runs.
type BookAppointmentArgs struct {
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	StartTime     string
	ServiceType   string
	Provider      string
	Notes         string
}

// BookAppointmentResult is the tool's output shape.
type BookAppointmentResult struct {
	Success         bool   `json:"success"`
	EventID         string `json:"event_id,omitempty"`
	StartTime       string `json:"start_time,omitempty"`
	Service         string `json:"service,omitempty"`
	ServiceType     string `json:"service_type,omitempty"`
	Provider        string `json:"provider,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Error           string `json:"error,omitempty"`
}

// BookAppointment resolves the service duration, creates the calendar
// event, and reports the result. Enforcement of slot-selection precedence
// happens one layer up, in the Orchestrator, before this is ever called.
func BookAppointment(ctx context.Context, cal calendarport.Port, clock *spaclock.Clock, args BookAppointmentArgs) (BookAppointmentResult, error) {
	svc, ok := services.Lookup(args.ServiceType)
	duration := 30
	displayName := args.ServiceType
	if ok {
		duration = svc.DurationMinutes
		displayName = svc.DisplayName
	}

	start, err := clock.ParseISO(args.StartTime)
	if err != nil {
		return BookAppointmentResult{Success: false, Error: fmt.Sprintf("invalid start_time %q: %v", args.StartTime, err)}, nil
	}
	end := start.Add(time.Duration(duration) * time.Minute)

	eventID, err := cal.CreateEvent(ctx, calendarport.CreateEventInput{
		Start:         start,
		End:           end,
		CustomerName:  args.CustomerName,
		CustomerPhone: args.CustomerPhone,
		CustomerEmail: args.CustomerEmail,
		ServiceType:   args.ServiceType,
		ServiceName:   displayName,
		Provider:      args.Provider,
		Notes:         args.Notes,
	})
	if err != nil {
		return BookAppointmentResult{Success: false, Error: err.Error()}, err
	}

	return BookAppointmentResult{
		Success:         true,
		EventID:         eventID,
		StartTime:       clock.FormatISO(start),
		Service:         displayName,
		ServiceType:     args.ServiceType,
		Provider:        args.Provider,
		DurationMinutes: duration,
	}, nil
}

// RescheduleAppointmentArgs is the tool's input.
type RescheduleAppointmentArgs struct {
	AppointmentID string
	NewStartTime  string
	ServiceType   string
	Provider      string
}

// RescheduleAppointmentResult is the tool's output shape.
type RescheduleAppointmentResult struct {
	Success   bool   `json:"success"`
	EventID   string `json:"event_id,omitempty"`
	StartTime string `json:"start_time,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RescheduleAppointment calls the calendar's update path.
func RescheduleAppointment(ctx context.Context, cal calendarport.Port, clock *spaclock.Clock, args RescheduleAppointmentArgs) (RescheduleAppointmentResult, error) {
	svc, ok := services.Lookup(args.ServiceType)
	duration := 30
	if ok {
		duration = svc.DurationMinutes
	}

	newStart, err := clock.ParseISO(args.NewStartTime)
	if err != nil {
		return RescheduleAppointmentResult{Success: false, Error: fmt.Sprintf("invalid new_start_time %q: %v", args.NewStartTime, err)}, nil
	}
	newEnd := newStart.Add(time.Duration(duration) * time.Minute)

	ok2, err := cal.UpdateEvent(ctx, args.AppointmentID, newStart, newEnd)
	if err != nil {
		return RescheduleAppointmentResult{Success: false, Error: err.Error()}, err
	}
	if !ok2 {
		return RescheduleAppointmentResult{Success: false, Error: "calendar update reported failure"}, nil
	}

	return RescheduleAppointmentResult{
		Success:   true,
		EventID:   args.AppointmentID,
		StartTime: clock.FormatISO(newStart),
	}, nil
}

// CancelAppointmentArgs is the tool's input.
type CancelAppointmentArgs struct {
	AppointmentID      string
	CancellationReason string
}

// CancelAppointmentResult is the tool's output shape.
type CancelAppointmentResult struct {
	Success bool   `json:"success"`
	EventID string `json:"event_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CancelAppointment calls the calendar's delete path.
func CancelAppointment(ctx context.Context, cal calendarport.Port, args CancelAppointmentArgs) (CancelAppointmentResult, error) {
	ok, err := cal.DeleteEvent(ctx, args.AppointmentID)
	if err != nil {
		return CancelAppointmentResult{Success: false, Error: err.Error()}, err
	}
	if !ok {
		return CancelAppointmentResult{Success: false, Error: "calendar delete reported failure"}, nil
	}
	return CancelAppointmentResult{Success: true, EventID: args.AppointmentID}, nil
}
