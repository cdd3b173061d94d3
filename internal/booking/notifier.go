package booking

import (
	"context"
	"fmt"
	"strings"

	"github.com/auroraspa/receptionist/internal/messagingport"
	"github.com/auroraspa/receptionist/internal/services"
	"github.com/auroraspa/receptionist/pkg/logging"
)

// Notifier sends the customer-facing confirmation message for a newly
// booked appointment, independent of whichever channel the booking
// conversation itself ran over. Reschedules and cancellations send no
// confirmation. A voice call that books an
// appointment still gets a text confirmation, matching the source system's
// voice-to-SMS acknowledgement behavior.
type Notifier struct {
	messaging messagingport.Port
	fromSMS   string
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

// NewNotifier wraps a messaging port. A nil messaging port disables
// confirmations entirely (NotifyBooked becomes a no-op), since not every
// deployment configures an SMS/email provider.
func NewNotifier(messaging messagingport.Port, fromSMS, fromEmail, fromName string, logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &Notifier{messaging: messaging, fromSMS: fromSMS, fromEmail: fromEmail, fromName: fromName, logger: logger}
}

// NotifyBooked sends a confirmation for a newly booked appointment,
// preferring SMS (the customer is already mid-phone-or-text-conversation)
// and falling back to email when no usable phone number is available.
func (n *Notifier) NotifyBooked(ctx context.Context, phone, email string, result BookAppointmentResult) {
	if n == nil || n.messaging == nil || !result.Success {
		return
	}
	body := confirmationText(result.ServiceType, result.StartTime, result.Provider)
	n.send(ctx, phone, email, "Appointment confirmed", body)
}

func confirmationText(serviceType, startTime, provider string) string {
	name := serviceType
	if svc, ok := services.Lookup(serviceType); ok {
		name = svc.DisplayName
	}
	text := fmt.Sprintf("You're booked for %s at %s.", name, startTime)
	if provider != "" {
		text += fmt.Sprintf(" Your provider is %s.", provider)
	}
	return text
}

func (n *Notifier) send(ctx context.Context, phone, email, subject, body string) {
	phone = strings.TrimSpace(phone)
	if phone != "" && !strings.HasPrefix(phone, "email:") {
		if _, err := n.messaging.SendSMS(ctx, messagingport.SMS{To: phone, From: n.fromSMS, Body: body}); err != nil {
			n.logger.Warn("booking: failed to send sms confirmation", "error", err)
		}
		return
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return
	}
	if _, err := n.messaging.SendEmail(ctx, messagingport.Email{
		To: email, From: n.fromEmail, FromName: n.fromName, Subject: subject, BodyText: body,
	}); err != nil {
		n.logger.Warn("booking: failed to send email confirmation", "error", err)
	}
}
