package units

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/canopyhq/canopy/internal"
	"github.com/canopyhq/canopy/internal/jobs"
	"github.com/canopyhq/canopy/internal/users"
	"github.com/canopyhq/canopy/pkg/job"
	"github.com/canopyhq/canopy/pkg/mode"
)

// userUnauth serves the pages reachable before sign-in.
type userUnauth struct {
	c     internal.Context
	users Directory
}

func (u *userUnauth) Init(c internal.Context) error {
	u.c = c
	return nil
}

func (*userUnauth) GuestAccess() {}

func registerUserUnauth(reg *mode.Registry[internal.Context], deps Deps) error {
	return mode.Register(reg, mode.Spec[internal.Context, *userUnauth]{
		Package:     "user.unauth",
		Kind:        mode.KindPackage,
		Description: "Password reminder and reset",
		Guest:       []string{"reminder", "reset"},
		New:         func() *userUnauth { return &userUnauth{users: deps.Users} },
		Methods: map[string]mode.Method[internal.Context, *userUnauth]{
			"reminder": (*userUnauth).reminder,
			"reset":    (*userUnauth).reset,
		},
	})
}

type reminderResult struct {
	Status string `json:"status"`
}

// reminder queues a password reminder. The answer is the same whether or
// not the user exists.
func (u *userUnauth) reminder(c internal.Context, _ ...string) error {
	if err := requirePost(c); err != nil {
		return err
	}
	uname := strings.TrimSpace(c.Form("uname"))
	if uname == "" {
		return internal.ErrBadRequest("user name is required", internal.WithErrorCode("uname-required"))
	}

	err := c.Enqueue(jobs.ReminderTask, jobs.ReminderPayload{Uname: uname},
		job.UniqueFor(10*time.Minute, uname))
	if errors.Is(err, job.ErrNotConfigured) {
		return internal.ErrServiceUnavailable("reminders are unavailable", internal.WithError(err))
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, reminderResult{Status: "queued"})
}

// reset sets a new password with the token from a reminder mail.
func (u *userUnauth) reset(c internal.Context, _ ...string) error {
	if err := requirePost(c); err != nil {
		return err
	}
	token, err := uuid.Parse(strings.TrimSpace(c.Form("token")))
	if err != nil {
		return internal.ErrBadRequest("reset token is malformed", internal.WithErrorCode("reminder-invalid"))
	}
	password := c.Form("upass")
	if password != c.Form("retype") {
		return internal.ErrBadRequest("passwords do not match", internal.WithErrorCode("retype-mismatch"))
	}

	_, err = u.users.ResetPassword(c, token, password)
	if errors.Is(err, users.ErrReminderInvalid) {
		return internal.ErrBadRequest("reset token is invalid or expired",
			internal.WithErrorCode("reminder-invalid"), internal.WithError(err))
	}
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, reminderResult{Status: "reset"})
}
