package users

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/canopyhq/canopy/pkg/nsm"
	"github.com/canopyhq/canopy/pkg/sanitizer"
)

const minPasswordLength = 8

// ReminderTTL is how long a password reminder token stays valid.
const ReminderTTL = time.Hour

var unamePattern = regexp.MustCompile(`^[A-Za-z0-9._@-]{1,64}$`)

// User is a row of the users tree.
type User struct {
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	Uname     string    `db:"uname" json:"uname"`
	Fullname  string    `db:"fullname" json:"fullname"`
	Email     string    `db:"email" json:"email,omitempty"`
	Note      string    `db:"note" json:"note,omitempty"`
	ID        int64     `db:"id" json:"id"`
	Lft       int64     `db:"lft" json:"-"`
	Rgt       int64     `db:"rgt" json:"-"`
	Admin     bool      `db:"admin" json:"admin"`
}

// IsRoot reports whether u is the root of the tree.
func (u User) IsRoot() bool {
	return u.Lft == 1
}

// Node returns the structural part of u.
func (u User) Node() nsm.Node {
	return nsm.Node{ID: u.ID, Lft: u.Lft, Rgt: u.Rgt}
}

// Descendants is the number of users below u.
func (u User) Descendants() int64 {
	return (u.Rgt - u.Lft - 1) / 2
}

// Tree is a user with its direct children.
type Tree struct {
	Children []*Tree `json:"children,omitempty"`
	User
}

// Reminder is a pending password reset.
type Reminder struct {
	ExpiresAt time.Time
	User      User
	Token     uuid.UUID
}

// Input carries the editable fields of a user.
type Input struct {
	Permissions Permissions
	Uname       string
	Password    string
	Fullname    string
	Email       string
	Note        string
	Admin       bool
}

// Clean trims and sanitizes the free-text fields.
func (in Input) Clean() Input {
	in.Uname = strings.TrimSpace(in.Uname)
	in.Password = strings.TrimSpace(in.Password)
	in.Fullname = sanitizer.Text(in.Fullname)
	in.Email = strings.TrimSpace(in.Email)
	in.Note = strings.TrimSpace(sanitizer.HTML(in.Note))
	return in
}

// Validate checks in. A password is required when creating.
func (in Input) Validate(creating bool) error {
	if !unamePattern.MatchString(in.Uname) {
		return fmt.Errorf("%w: user name %q", ErrInvalidInput, in.Uname)
	}
	if creating && in.Password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if in.Password != "" && len(in.Password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	if in.Email != "" {
		if _, err := mail.ParseAddress(in.Email); err != nil {
			return fmt.Errorf("%w: email %q", ErrInvalidInput, in.Email)
		}
	}
	return nil
}
