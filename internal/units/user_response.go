package units

import (
	"net/http"

	"github.com/canopyhq/canopy/internal"
	"github.com/canopyhq/canopy/internal/users"
	"github.com/canopyhq/canopy/pkg/mode"
)

type userResponse struct {
	base
}

func registerUserResponse(reg *mode.Registry[internal.Context], deps Deps) error {
	return mode.Register(reg, mode.Spec[internal.Context, *userResponse]{
		Package:     "user.response",
		Kind:        mode.KindUserResponse,
		Description: "Read views over the user tree",
		New:         func() *userResponse { return &userResponse{base{users: deps.Users}} },
		Methods: map[string]mode.Method[internal.Context, *userResponse]{
			"default-view": (*userResponse).defaultView,
			"profile":      (*userResponse).profile,
			"children":     (*userResponse).children,
			"path":         (*userResponse).path,
			"tree":         (*userResponse).tree,
		},
	})
}

type userList struct {
	Users []users.User `json:"users"`
}

// defaultView lists everyone below the signed-in user.
func (u *userResponse) defaultView(c internal.Context, _ ...string) error {
	if err := u.signedIn(); err != nil {
		return err
	}
	list, err := u.users.Descendants(c, u.me.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userList{Users: nonNil(list)})
}

type profileView struct {
	User    users.User   `json:"user"`
	Parents []users.User `json:"parents"`
}

func (u *userResponse) profile(c internal.Context, args ...string) error {
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

	target := u.me
	if id != u.me.ID {
		if target, err = u.users.Get(c, id); err != nil {
			return storeError(err)
		}
	}
	// Ancestors above the signed-in user stay hidden.
	parents, err := u.users.Ancestors(c, id, &u.me)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profileView{User: target, Parents: nonNil(parents)})
}

type childView struct {
	users.User
	Children int64 `json:"children"`
}

// children lists the direct children of id with their own child counts.
func (u *userResponse) children(c internal.Context, args ...string) error {
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

	list, err := u.users.Children(c, id)
	if err != nil {
		return err
	}
	counts, err := u.users.ChildCounts(c, id)
	if err != nil {
		return err
	}
	out := make([]childView, 0, len(list))
	for _, child := range list {
		out = append(out, childView{User: child, Children: counts[child.ID]})
	}
	return c.JSON(http.StatusOK, struct {
		Users []childView `json:"users"`
	}{out})
}

// path lists the users from the signed-in user down to id.
func (u *userResponse) path(c internal.Context, args ...string) error {
	if err := u.signedIn(); err != nil {
		return err
	}
	id, err := u.idArg(args)
	if err != nil {
		return err
	}
	list, err := u.users.Path(c, u.me.ID, id)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return internal.ErrNotFound("user not found")
	}
	return c.JSON(http.StatusOK, userList{Users: list})
}

func (u *userResponse) tree(c internal.Context, _ ...string) error {
	if err := u.signedIn(); err != nil {
		return err
	}
	t, err := u.users.Subtree(c, u.me.ID)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
