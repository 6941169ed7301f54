package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/canopyhq/canopy/internal/users"
	"github.com/canopyhq/canopy/pkg/mailer"
)

// ReminderTask is enqueued by user.unauth:reminder.
const ReminderTask = "user_reminder"

const (
	reminderTemplate = "reminder.md"
	resetMode        = "user.unauth:reset"
)

type ReminderPayload struct {
	Uname string `json:"uname"`
}

// Reminders stamps reminder requests.
type Reminders interface {
	RequestReminder(ctx context.Context, uname string) (users.Reminder, error)
}

// Mailer sends a templated message.
type Mailer interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// Reminder records a password reminder request on the user row and mails
// the reset link.
type Reminder struct {
	users   Reminders
	mail    Mailer
	logger  *slog.Logger
	baseURL string
}

// ReminderOption configures a Reminder.
type ReminderOption func(*Reminder)

// WithMailer sends reset links built on baseURL through m. Without it the
// token is only stamped.
func WithMailer(m Mailer, baseURL string) ReminderOption {
	return func(r *Reminder) {
		r.mail = m
		r.baseURL = baseURL
	}
}

func NewReminder(u Reminders, l *slog.Logger, opts ...ReminderOption) *Reminder {
	if l == nil {
		l = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &Reminder{users: u, logger: l}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (*Reminder) Name() string { return ReminderTask }

type reminderMail struct {
	Name    string
	Uname   string
	Link    string
	Expires string
}

// Handle stamps the request and mails the link. Unknown user names and
// users without an address succeed so the job is not retried and callers
// learn nothing about which names exist.
func (r *Reminder) Handle(ctx context.Context, p ReminderPayload) error {
	if p.Uname == "" {
		return nil
	}
	rem, err := r.users.RequestReminder(ctx, p.Uname)
	if errors.Is(err, users.ErrNotFound) {
		r.logger.InfoContext(ctx, "reminder for unknown user ignored", slog.String("uname", p.Uname))
		return nil
	}
	if err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "password reminder requested", slog.String("uname", p.Uname))

	if r.mail == nil {
		return nil
	}
	u := rem.User
	if u.Email == "" {
		r.logger.WarnContext(ctx, "reminder not mailed, user has no email", slog.String("uname", u.Uname))
		return nil
	}

	name := u.Fullname
	if name == "" {
		name = u.Uname
	}
	return r.mail.Send(ctx, mailer.Message{
		To:       mailer.Recipient(u.Fullname, u.Email),
		Template: reminderTemplate,
		Tags:     map[string]string{"task": ReminderTask},
		Data: reminderMail{
			Name:    name,
			Uname:   u.Uname,
			Link:    resetLink(r.baseURL, rem.Token.String()),
			Expires: rem.ExpiresAt.UTC().Format(time.RFC1123),
		},
	})
}

func resetLink(base, token string) string {
	q := url.Values{"mode": {resetMode}, "token": {token}}
	return base + "/?" + q.Encode()
}
