package units

import (
	"net/http"
	"strings"

	"github.com/canopyhq/canopy/internal"
	"github.com/canopyhq/canopy/internal/users"
	"github.com/canopyhq/canopy/pkg/mode"
)

type userReceive struct {
	base
}

func registerUserReceive(reg *mode.Registry[internal.Context], deps Deps) error {
	return mode.Register(reg, mode.Spec[internal.Context, *userReceive]{
		Package:     "user.receive",
		Kind:        mode.KindPackage,
		Description: "Create, update and remove users",
		New:         func() *userReceive { return &userReceive{base{users: deps.Users}} },
		Methods: map[string]mode.Method[internal.Context, *userReceive]{
			"save":   (*userReceive).save,
			"update": (*userReceive).update,
			"remove": (*userReceive).remove,
		},
	})
}

// input reads the user form. Admin and permissions are only taken from
// callers holding user.grant; otherwise keep is used.
func (u *userReceive) input(c internal.Context, keep users.User, keepPerms users.Permissions) (users.Input, error) {
	in := users.Input{
		Uname:    c.Form("uname"),
		Password: c.Form("upass"),
		Fullname: c.Form("fullname"),
		Email:    c.Form("email"),
		Note:     c.Form("note"),
		Admin:    keep.Admin,
	}
	if in.Password != c.Form("retype") {
		return in, internal.ErrBadRequest("passwords do not match", internal.WithErrorCode("retype-mismatch"))
	}

	canGrant, err := u.users.Can(c, u.me, users.PermGrant)
	if err != nil {
		return in, err
	}
	if !canGrant {
		in.Permissions = keepPerms
		return in, nil
	}

	in.Admin = c.Form("admin") == "1"
	if err := c.Request().ParseForm(); err != nil {
		return in, internal.ErrBadRequest("invalid form", internal.WithError(err))
	}
	in.Permissions = make(users.Permissions)
	for _, key := range c.Request().PostForm["perm"] {
		if key = strings.TrimSpace(key); key != "" {
			in.Permissions[key] = true
		}
	}
	for _, key := range c.Request().PostForm["deny"] {
		if key = strings.TrimSpace(key); key != "" {
			in.Permissions[key] = false
		}
	}
	return in, nil
}

// save creates a child of the signed-in user.
func (u *userReceive) save(c internal.Context, _ ...string) error {
	if err := requirePost(c); err != nil {
		return err
	}
	if err := u.require(users.PermCreate); err != nil {
		return err
	}

	in, err := u.input(c, users.User{}, nil)
	if err != nil {
		return err
	}
	created, err := u.users.Create(c, u.me.ID, in)
	if err != nil {
		return storeError(err)
	}
	c.LogInfo("user created", "user_id", created.ID)
	return c.JSON(http.StatusCreated, created)
}

// update edits the signed-in user, or a user below them. Editing a direct
// child needs no permission.
func (u *userReceive) update(c internal.Context, args ...string) error {
	if err := requirePost(c); err != nil {
		return err
	}
	if err := u.signedIn(); err != nil {
		return err
	}
	id, err := u.idArg(args)
	if err != nil {
		return err
	}
	if err := u.within(id); err != nil {
		return err
	}
	if err := u.parentOr(id, users.PermUpdate); err != nil {
		return err
	}

	target, err := u.users.Get(c, id)
	if err != nil {
		return storeError(err)
	}
	in, err := u.input(c, target, nil)
	if err != nil {
		return err
	}
	if id == u.me.ID {
		// Nobody grants themselves anything.
		in.Admin, in.Permissions = target.Admin, nil
	}
	updated, err := u.users.Update(c, id, in)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

type removeResult struct {
	Removed int64 `json:"removed"`
}

// remove deletes a user below the signed-in user together with their
// subtree.
func (u *userReceive) remove(c internal.Context, args ...string) error {
	if err := requirePost(c); err != nil {
		return err
	}
	if err := u.signedIn(); err != nil {
		return err
	}
	id, err := u.idArg(args)
	if err != nil {
		return err
	}
	if id == u.me.ID {
		return internal.ErrBadRequest("cannot remove yourself", internal.WithErrorCode("remove-self"))
	}
	if err := u.within(id); err != nil {
		return err
	}
	if err := u.parentOr(id, users.PermRemove); err != nil {
		return err
	}

	n, err := u.users.Remove(c, id)
	if err != nil {
		return storeError(err)
	}
	c.LogInfo("user removed", "user_id", id, "rows", n)
	return c.JSON(http.StatusOK, removeResult{Removed: n})
}

// parentOr passes when the signed-in user is id itself or its parent, and
// otherwise requires key.
func (u *userReceive) parentOr(id int64, key string) error {
	if id == u.me.ID {
		return nil
	}
	parent, err := u.users.IsParent(u.c, u.me.ID, id)
	if err != nil {
		return err
	}
	if parent {
		return nil
	}
	return u.require(key)
}
