package messagingport

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// sesAPI narrows the generated SESv2 client to the single call this
// package exercises.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESEmail sends outbound email through Amazon SES v2.
type SESEmail struct {
	api          sesAPI
	defaultFrom  string
	defaultName  string
}

// NewSESEmail wraps an SESv2 client.
func NewSESEmail(api sesAPI, defaultFromEmail, defaultFromName string) *SESEmail {
	return &SESEmail{api: api, defaultFrom: defaultFromEmail, defaultName: defaultFromName}
}

var _ EmailSender = (*SESEmail)(nil)

func (s *SESEmail) SendEmail(ctx context.Context, msg Email) (string, error) {
	from := msg.From
	if from == "" {
		from = s.defaultFrom
	}
	fromName := msg.FromName
	if fromName == "" {
		fromName = s.defaultName
	}
	fromHeader := from
	if fromName != "" {
		fromHeader = fmt.Sprintf("%s <%s>", fromName, from)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromHeader),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(msg.BodyText)},
					Html: &types.Content{Data: aws.String(msg.BodyHTML)},
				},
			},
		},
	}

	out, err := s.api.SendEmail(ctx, input)
	if err != nil {
		return "", fmt.Errorf("messagingport: ses send failed: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}
