package booking

import (
	"context"
	"testing"

	"github.com/auroraspa/receptionist/internal/messagingport"
)

func TestNotifyBookedPrefersSMSWhenPhoneKnown(t *testing.T) {
	fake := &messagingport.Fake{}
	n := NewNotifier(fake, "+15555550199", "spa@example.com", "Medspa", nil)

	n.NotifyBooked(context.Background(), "+15555550100", "jane@example.com", BookAppointmentResult{
		Success: true, ServiceType: "botox", StartTime: "2026-07-30T14:00:00-04:00", Provider: "Dr. Lee",
	})

	if len(fake.SMS) != 1 {
		t.Fatalf("expected one sms confirmation, got %d", len(fake.SMS))
	}
	if len(fake.Emails) != 0 {
		t.Fatalf("expected no email confirmation when phone is known, got %d", len(fake.Emails))
	}
	if fake.SMS[0].To != "+15555550100" {
		t.Fatalf("unexpected sms recipient: %q", fake.SMS[0].To)
	}
}

func TestNotifyBookedFallsBackToEmailForSynthesizedPhone(t *testing.T) {
	fake := &messagingport.Fake{}
	n := NewNotifier(fake, "+15555550199", "spa@example.com", "Medspa", nil)

	n.NotifyBooked(context.Background(), "email:abc123", "jane@example.com", BookAppointmentResult{
		Success: true, ServiceType: "hydrafacial", StartTime: "2026-07-30T10:00:00-04:00",
	})

	if len(fake.Emails) != 1 {
		t.Fatalf("expected one email confirmation, got %d", len(fake.Emails))
	}
	if len(fake.SMS) != 0 {
		t.Fatalf("expected no sms sent for a synthesized phone, got %d", len(fake.SMS))
	}
}

func TestNotifyBookedSkipsUnsuccessfulBookings(t *testing.T) {
	fake := &messagingport.Fake{}
	n := NewNotifier(fake, "+15555550199", "spa@example.com", "Medspa", nil)

	n.NotifyBooked(context.Background(), "+15555550100", "", BookAppointmentResult{Success: false})

	if len(fake.SMS) != 0 || len(fake.Emails) != 0 {
		t.Fatalf("expected no confirmation for a failed booking")
	}
}

func TestNotifyBookedNilNotifierIsNoop(t *testing.T) {
	var n *Notifier
	n.NotifyBooked(context.Background(), "+15555550100", "", BookAppointmentResult{Success: true})
}
