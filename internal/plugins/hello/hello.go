// Package hello is a minimal plugin. It serves "hello~greeting" and sends
// guests there when they ask for no mode.
package hello

import (
	"net/http"

	"github.com/canopyhq/canopy/internal"
	"github.com/canopyhq/canopy/pkg/mode"
)

const (
	Namespace = "hello"
	Mode      = Namespace + "~greeting"
)

type greeting struct {
	c internal.Context
}

func (g *greeting) Init(c internal.Context) error {
	g.c = c
	return nil
}

// Register adds the plugin unit and its default-mode hook.
func Register(reg *mode.Registry[internal.Context], d *internal.Dispatcher) error {
	err := mode.Register(reg, mode.Spec[internal.Context, *greeting]{
		Namespace:   Namespace,
		Package:     "greeting",
		Kind:        mode.KindPlugin,
		Plugin:      true,
		Description: "Says hello",
		New:         func() *greeting { return &greeting{} },
		Methods: map[string]mode.Method[internal.Context, *greeting]{
			"default-view": (*greeting).defaultView,
			"echo":         (*greeting).echo,
		},
	})
	if err != nil {
		return err
	}

	d.OverrideDefaultMode(func(c internal.Context, _ string) string {
		if c.IsGuest() {
			return Mode
		}
		return ""
	})
	return nil
}

type greetingView struct {
	Greeting string `json:"greeting"`
}

func (g *greeting) defaultView(c internal.Context, _ ...string) error {
	name := "guest"
	if !c.IsGuest() && c.UserID() != "" {
		name = "user " + c.UserID()
	}
	return c.JSON(http.StatusOK, greetingView{Greeting: "Hello, " + name})
}

func (g *greeting) echo(c internal.Context, args ...string) error {
	if args == nil {
		args = []string{}
	}
	return c.JSON(http.StatusOK, map[string][]string{"args": args})
}
