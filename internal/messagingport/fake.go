package messagingport

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Fake records every outbound send for test assertions.
type Fake struct {
	mu      sync.Mutex
	SMS     []SMS
	Emails  []Email
	SMSErr  error
	EmailErr error
}

var _ Port = (*Fake)(nil)

func (f *Fake) SendSMS(_ context.Context, msg SMS) (string, error) {
	if f.SMSErr != nil {
		return "", f.SMSErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SMS = append(f.SMS, msg)
	return uuid.NewString(), nil
}

func (f *Fake) SendEmail(_ context.Context, msg Email) (string, error) {
	if f.EmailErr != nil {
		return "", f.EmailErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Emails = append(f.Emails, msg)
	return uuid.NewString(), nil
}
