package messagingport

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridEmail sends outbound email through SendGrid. It is the secondary
// email provider, selectable by EMAIL_PROVIDER=sendgrid when SES is not
// configured.
type SendGridEmail struct {
	apiKey      string
	defaultFrom string
	defaultName string
}

// NewSendGridEmail constructs a SendGrid-backed email sender.
func NewSendGridEmail(apiKey, defaultFromEmail, defaultFromName string) *SendGridEmail {
	return &SendGridEmail{apiKey: apiKey, defaultFrom: defaultFromEmail, defaultName: defaultFromName}
}

var _ EmailSender = (*SendGridEmail)(nil)

func (s *SendGridEmail) SendEmail(ctx context.Context, msg Email) (string, error) {
	from := msg.From
	if from == "" {
		from = s.defaultFrom
	}
	fromName := msg.FromName
	if fromName == "" {
		fromName = s.defaultName
	}

	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(fromName, from))
	m.Subject = msg.Subject
	m.AddContent(mail.NewContent("text/plain", msg.BodyText))
	if msg.BodyHTML != "" {
		m.AddContent(mail.NewContent("text/html", msg.BodyHTML))
	}

	personalization := mail.NewPersonalization()
	personalization.AddTos(mail.NewEmail("", msg.To))
	m.AddPersonalizations(personalization)

	client := sendgrid.NewSendClient(s.apiKey)
	resp, err := client.SendWithContext(ctx, m)
	if err != nil {
		return "", fmt.Errorf("messagingport: sendgrid send failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("messagingport: sendgrid returned %d: %s", resp.StatusCode, resp.Body)
	}

	for _, h := range resp.Headers["X-Message-Id"] {
		return h, nil
	}
	return "", nil
}
