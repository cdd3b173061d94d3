// Package messagingport abstracts outbound SMS/email delivery. Delivery
// providers are external collaborators (spec §1 Out of scope); this
// package only declares the interface the core sends through and thin
// implementations over Telnyx, SendGrid, and SES.
package messagingport

import "context"

// SMS is one outbound text message.
type SMS struct {
	To   string
	From string
	Body string
}

// Email is one outbound email.
type Email struct {
	To       string
	From     string
	FromName string
	Subject  string
	BodyText string
	BodyHTML string
}

// SMSSender sends outbound SMS and returns the provider's message id.
type SMSSender interface {
	SendSMS(ctx context.Context, msg SMS) (providerMessageID string, err error)
}

// EmailSender sends outbound email and returns the provider's message id.
type EmailSender interface {
	SendEmail(ctx context.Context, msg Email) (providerMessageID string, err error)
}

// Port bundles both outbound channels; the booking Notifier sends its
// confirmations through it.
type Port interface {
	SMSSender
	EmailSender
}

// Composite joins an independently-configured SMS provider and email
// provider into a single Port, since the two channels are selected by
// separate config knobs (SMS_PROVIDER, EMAIL_PROVIDER).
type Composite struct {
	SMSSender
	EmailSender
}

var _ Port = Composite{}
