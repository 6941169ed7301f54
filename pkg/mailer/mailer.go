package mailer

import (
	"context"
	"errors"
)

// Message addresses a template to one recipient.
type Message struct {
	Data     any
	Tags     map[string]string
	To       string
	Template string

	// Subject overrides the template subject.
	Subject string
	ReplyTo string
}

// Mailer renders messages and sends them.
type Mailer struct {
	sender   Sender
	renderer *Renderer
	cfg      Config
}

func New(sender Sender, renderer *Renderer, cfg Config) *Mailer {
	return &Mailer{sender: sender, renderer: renderer, cfg: cfg}
}

// Send renders msg and delivers it. The subject is msg.Subject, then the
// template's, then the configured fallback.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}

	out, err := m.renderer.Render(m.cfg.Layout, msg.Template, msg.Data)
	if err != nil {
		return err
	}

	subject := msg.Subject
	if subject == "" {
		subject = out.Subject
	}
	if subject == "" {
		subject = m.cfg.FallbackSubject
	}
	if subject == "" {
		return ErrNoSubject
	}

	if err := m.sender.Send(ctx, &Email{
		To:      []string{msg.To},
		From:    m.cfg.From,
		ReplyTo: msg.ReplyTo,
		Subject: subject,
		HTML:    out.HTML,
		Text:    out.Text,
		Tags:    msg.Tags,
	}); err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	return nil
}
