package mailer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, email *Email) error
}

// Email is a rendered message.
type Email struct {
	Tags    map[string]string
	From    string
	ReplyTo string
	Subject string
	HTML    string
	Text    string
	To      []string
}

// Recipient formats an address as "Name <email>", or the bare address
// when name is empty.
func Recipient(name, email string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", name, email)
}

// LogSender logs messages instead of delivering them. The plain text part
// is included, so it must not be used where logs are shared.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(l *slog.Logger) *LogSender {
	if l == nil {
		l = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LogSender{logger: l}
}

func (s *LogSender) Send(ctx context.Context, email *Email) error {
	s.logger.InfoContext(ctx, "mail",
		slog.Any("to", email.To),
		slog.String("subject", email.Subject),
		slog.String("text", email.Text))
	return nil
}
