package units

import (
	"errors"
	"net/http"
	"runtime"

	"github.com/canopyhq/canopy/internal"
	"github.com/canopyhq/canopy/internal/users"
	"github.com/canopyhq/canopy/pkg/mode"
	"github.com/canopyhq/canopy/pkg/session"
)

type systemResponse struct {
	base
	registry *mode.Registry[internal.Context]
	version  string
}

func registerSystem(reg *mode.Registry[internal.Context], deps Deps) error {
	return mode.Register(reg, mode.Spec[internal.Context, *systemResponse]{
		Package:     "system.response",
		Kind:        mode.KindSystemResponse,
		Description: "Sign-in contract and system information",
		New: func() *systemResponse {
			return &systemResponse{base: base{users: deps.Users}, registry: reg, version: deps.Version}
		},
		Methods: map[string]mode.Method[internal.Context, *systemResponse]{
			"failed":       (*systemResponse).failed,
			"default-view": (*systemResponse).defaultView,
			"plugins":      (*systemResponse).plugins,
		},
	})
}

type signinResponse struct {
	Status string `json:"status"`
	Ticket string `json:"ticket,omitempty"`
}

// failed answers callers that must sign in. The ticket goes back in the
// "stub" field of the sign-in POST.
func (u *systemResponse) failed(c internal.Context, _ ...string) error {
	ticket, err := c.Ticket()
	if err != nil && !errors.Is(err, session.ErrNotConfigured) {
		return err
	}
	return c.JSON(http.StatusUnauthorized, signinResponse{Status: "signin", Ticket: ticket})
}

type systemInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Namespace string `json:"namespace"`
	User      string `json:"user"`
	Units     int    `json:"units"`
}

func (u *systemResponse) defaultView(c internal.Context, _ ...string) error {
	if err := u.require(users.PermRoot); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, systemInfo{
		Version:   u.version,
		GoVersion: runtime.Version(),
		Namespace: u.registry.Core(),
		User:      u.me.Uname,
		Units:     len(u.registry.Units()),
	})
}

type pluginInfo struct {
	Route       string   `json:"route"`
	Description string   `json:"description,omitempty"`
	Methods     []string `json:"methods"`
}

func (u *systemResponse) plugins(c internal.Context, _ ...string) error {
	if err := u.require(users.PermRoot); err != nil {
		return err
	}
	out := []pluginInfo{}
	for _, info := range u.registry.Units() {
		if !info.Plugin {
			continue
		}
		out = append(out, pluginInfo{Route: info.Route(), Description: info.Description, Methods: info.Methods})
	}
	return c.JSON(http.StatusOK, out)
}
