// Package mode parses request modes and routes them to registered units.
//
// A mode names a unit and a function on it:
//
//	[namespace(~|#)]package.path[:function[(arg,arg)]]
//
// "~" marks a plugin namespace and "#" an explicit one. Package segments are
// kebab-case in the mode and UpperCamel in the routing table; functions are
// lowerCamel and default to "defaultView".
//
// Units are registered against a Registry with a Spec:
//
//	reg := mode.NewRegistry[*Ctx]("canopy")
//	mode.MustRegister(reg, mode.Spec[*Ctx, *UserResponse]{
//		Package: "user.response",
//		Kind:    mode.KindUserResponse,
//		New:     func() *UserResponse { return &UserResponse{} },
//		Methods: map[string]mode.Method[*Ctx, *UserResponse]{
//			"default-view": (*UserResponse).DefaultView,
//		},
//	})
//
// A Resolver applies the namespace allow-list and the root namespace, and
// falls back to DefaultResponse for unauthenticated callers.
package mode
