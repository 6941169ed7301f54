// Package units holds the built-in units served by the dispatcher.
package units

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/canopyhq/canopy/internal"
	"github.com/canopyhq/canopy/internal/users"
	"github.com/canopyhq/canopy/pkg/mode"
)

// Directory is the user store the units read and write.
type Directory interface {
	Get(ctx context.Context, id int64) (users.User, error)
	Descendants(ctx context.Context, id int64) ([]users.User, error)
	Children(ctx context.Context, id int64) ([]users.User, error)
	ChildCounts(ctx context.Context, id int64) (map[int64]int64, error)
	Ancestors(ctx context.Context, id int64, floor *users.User) ([]users.User, error)
	Path(ctx context.Context, top, bottom int64) ([]users.User, error)
	Subtree(ctx context.Context, id int64) (*users.Tree, error)
	IsParent(ctx context.Context, parentID, childID int64) (bool, error)
	Contains(ctx context.Context, ancestor users.User, id int64) (bool, error)
	Create(ctx context.Context, parentID int64, in users.Input) (users.User, error)
	Update(ctx context.Context, id int64, in users.Input) (users.User, error)
	Remove(ctx context.Context, id int64) (int64, error)
	Can(ctx context.Context, u users.User, key string) (bool, error)
	ResetPassword(ctx context.Context, token uuid.UUID, password string) (users.User, error)
}

// Deps are shared by every built-in unit.
type Deps struct {
	Users   Directory
	Version string

	// URLExpiry bounds file manager download links. Default 15m.
	URLExpiry time.Duration
}

// Register adds the built-in units to reg.
func Register(reg *mode.Registry[internal.Context], deps Deps) error {
	if deps.URLExpiry <= 0 {
		deps.URLExpiry = 15 * time.Minute
	}
	return errors.Join(
		registerSystem(reg, deps),
		registerUserResponse(reg, deps),
		registerUserReceive(reg, deps),
		registerUserUnauth(reg, deps),
		registerFileManager(reg, deps),
	)
}

// base loads the signed-in user. Guests and anonymous callers get a zero
// user.
type base struct {
	c     internal.Context
	users Directory
	me    users.User
}

func (b *base) Init(c internal.Context) error {
	b.c = c
	uid := c.UserID()
	if uid == "" || c.IsGuest() {
		return nil
	}

	id, err := strconv.ParseInt(uid, 10, 64)
	if err != nil {
		return internal.ErrUnauthorized("invalid session", internal.WithError(err))
	}
	b.me, err = b.users.Get(c, id)
	if errors.Is(err, users.ErrNotFound) {
		// The account went away while signed in.
		_ = c.DestroySession()
		return internal.ErrUnauthorized("session user no longer exists", internal.WithError(err))
	}
	return err
}

// signedIn rejects guests.
func (b *base) signedIn() error {
	if b.me.ID == 0 {
		return internal.ErrForbidden("sign in required", internal.WithErrorCode("signin-required"))
	}
	return nil
}

// require fails with a PermitError unless the user holds key.
func (b *base) require(key string) error {
	if err := b.signedIn(); err != nil {
		return err
	}
	ok, err := b.users.Can(b.c, b.me, key)
	if err != nil {
		return err
	}
	if !ok {
		return internal.Deny(key)
	}
	return nil
}

// within fails unless id is the user or one of their descendants.
func (b *base) within(id int64) error {
	ok, err := b.users.Contains(b.c, b.me, id)
	if err != nil {
		return err
	}
	if !ok {
		return internal.ErrNotFound("user not found")
	}
	return nil
}

// idArg reads the user id from the mode arguments, then the "id" form
// field, falling back to the signed-in user.
func (b *base) idArg(args []string) (int64, error) {
	if id, ok := internal.Arg[int64](args, 0); ok {
		return id, nil
	}
	if raw := b.c.Form("id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, internal.ErrBadRequest("invalid user id")
		}
		return id, nil
	}
	if len(args) > 0 && args[0] != "" {
		return 0, internal.ErrBadRequest("invalid user id")
	}
	return b.me.ID, nil
}

func requirePost(c internal.Context) error {
	if c.Request().Method != http.MethodPost {
		return internal.NewHTTPError(http.StatusMethodNotAllowed, "POST required")
	}
	return nil
}

// storeError maps user store failures onto HTTP errors.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, users.ErrNotFound):
		return internal.ErrNotFound("user not found", internal.WithError(err))
	case errors.Is(err, users.ErrInvalidInput):
		return internal.ErrBadRequest(err.Error(), internal.WithErrorCode("invalid-input"), internal.WithError(err))
	case errors.Is(err, users.ErrUnameTaken):
		return internal.ErrConflict("user name is taken", internal.WithErrorCode("uname-taken"), internal.WithError(err))
	default:
		return err
	}
}
