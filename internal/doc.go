// Package internal holds the request kernel behind the canopy package:
// the App, the request Context, routing, sessions and the mode Dispatcher.
//
// Import "github.com/canopyhq/canopy" instead; it re-exports what
// applications need.
//
// # Context as context.Context
//
// Context embeds context.Context, so units pass it straight to database
// calls and job enqueues:
//
//	func (u *Users) Children(c canopy.Context, args ...string) error {
//		id, _ := canopy.Arg[int64](args, 0)
//		rows, err := u.store.Children(c, id)
//		...
//	}
//
// Values added with Set are visible through Value, Get and the logger
// extractors.
//
// # Dispatch
//
// The Dispatcher serves every request at "/". For each request it
//
//  1. signs the caller out on "?logout" or on a POST whose "stub" does not
//     match the session ticket,
//  2. signs the caller in from "uname" and "upass", or as a guest when the
//     application allows it,
//  3. reads "swap_mode" or "mode", falling back to the default mode,
//  4. resolves the mode through pkg/mode and invokes the unit.
//
// Unit errors are mapped by DispatchError: a PermitError becomes 403, an
// unknown method 404, and anything not already an HTTPError a bare 500.
//
// # Sessions
//
// Sessions load lazily on first use and are saved right before the first
// byte of the response is written. Signing in rotates the session token.
//
// # Lifecycle
//
// Run starts job workers, opens the listener and on SIGINT or SIGTERM
// drains requests before stopping workers and running shutdown hooks.
package internal
