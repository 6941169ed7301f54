// Package resend delivers mail through the Resend API.
package resend

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v3"

	"github.com/canopyhq/canopy/pkg/mailer"
)

// Sender implements mailer.Sender.
type Sender struct {
	client *resend.Client
	from   string
}

var _ mailer.Sender = (*Sender)(nil)

// New creates a sender. from is used when a message sets none.
func New(apiKey, from string) *Sender {
	return &Sender{client: resend.NewClient(apiKey), from: from}
}

func (s *Sender) Send(ctx context.Context, email *mailer.Email) error {
	from := email.From
	if from == "" {
		from = s.from
	}

	req := &resend.SendEmailRequest{
		From:    from,
		To:      email.To,
		Subject: email.Subject,
		Html:    email.HTML,
		Text:    email.Text,
		ReplyTo: email.ReplyTo,
	}
	for name, value := range email.Tags {
		req.Tags = append(req.Tags, resend.Tag{Name: name, Value: value})
	}

	if _, err := s.client.Emails.SendWithContext(ctx, req); err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}
