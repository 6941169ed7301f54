// Package canopy serves a tree of users through mode-dispatched units.
//
// Every request to the site root names a mode such as
// "user.response:children(12)". The dispatcher signs the caller in or out,
// resolves the mode against a registry of units and invokes one method:
//
//	reg := mode.NewRegistry[canopy.Context](mode.DefaultNamespace)
//	if err := units.Register(reg, units.Deps{Users: store}); err != nil {
//	    return err
//	}
//
//	d := canopy.NewDispatcher(
//	    mode.NewResolver(reg),
//	    canopy.WithAuthenticator(store),
//	)
//
//	app := canopy.New(
//	    canopy.WithLogger(log),
//	    canopy.WithSession(session.NewMemoryStore()),
//	    canopy.WithHandlers(d),
//	)
//
//	err := app.Run(":8080", canopy.Logger(log))
//
// # Units
//
// A unit is a struct with an Init method and a table of methods. Plugins
// register the same way under their own namespace and are addressed with
// "namespace~package:function". See package pkg/mode for the grammar.
//
// # Errors
//
// Units return errors. HTTP errors built with ErrNotFound, ErrForbidden and
// friends keep their status; Deny produces a 403 naming the permission;
// anything else is a 500 with the details logged, not sent.
//
// # Lifecycle
//
// App.Run starts job workers, opens the listener and blocks until SIGINT,
// SIGTERM or the base context ends. Shutdown hooks run in order with the
// configured timeout.
package canopy
