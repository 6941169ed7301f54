package mode

import (
	"fmt"
	"slices"
	"strings"
)

// DefaultNamespace is the root namespace used when none is configured.
const DefaultNamespace = "canopy"

// RequestContext is the caller state the resolver needs.
type RequestContext struct {
	UserID        string
	Application   string
	Authenticated bool
}

// ResolverOption configures a Resolver.
type ResolverOption func(*resolverOptions)

type resolverOptions struct {
	root  string
	allow []string
}

// WithAllowList restricts explicit namespaces to the given set.
// A nil list leaves resolution unrestricted; an empty non-nil list rejects
// every explicit namespace.
func WithAllowList(namespaces []string) ResolverOption {
	return func(o *resolverOptions) {
		if namespaces == nil {
			o.allow = nil
			return
		}
		o.allow = make([]string, 0, len(namespaces))
		for _, ns := range namespaces {
			o.allow = append(o.allow, strings.ToLower(ns))
		}
	}
}

// WithRootNamespace sets the namespace used for modes that name none.
func WithRootNamespace(ns string) ResolverOption {
	return func(o *resolverOptions) {
		if ns != "" {
			o.root = strings.ToLower(ns)
		}
	}
}

// Resolver maps descriptors to registered units.
type Resolver[C any] struct {
	registry *Registry[C]
	root     string
	allow    []string
}

// NewResolver creates a resolver over reg. The root namespace defaults to
// the registry's core namespace.
func NewResolver[C any](reg *Registry[C], opts ...ResolverOption) *Resolver[C] {
	o := resolverOptions{root: reg.Core()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Resolver[C]{
		registry: reg,
		root:     o.root,
		allow:    o.allow,
	}
}

// Root returns the namespace applied to modes without one.
func (r *Resolver[C]) Root() string {
	return r.root
}

// Enabled reports whether ns may be named explicitly in a mode.
func (r *Resolver[C]) Enabled(ns string) bool {
	return r.allow == nil || slices.Contains(r.allow, strings.ToLower(ns))
}

// Resolve finds the unit serving d. Unauthenticated callers asking for an
// unknown unit are routed to DefaultResponse instead of failing.
func (r *Resolver[C]) Resolve(rc RequestContext, d Descriptor) (*Resolved[C], error) {
	if d.Namespace != "" {
		if !r.Enabled(d.Namespace) {
			return nil, fmt.Errorf("%w: %s", ErrNamespaceNotEnabled, d.Namespace)
		}
	} else {
		d.Namespace = r.root
	}

	e, ok := r.registry.lookup(d.key())
	if !ok {
		if rc.Authenticated {
			return nil, fmt.Errorf("%w: %s", ErrClassNotFound, d.String())
		}
		fb := Parse(DefaultResponse)
		fb.Namespace = r.registry.Core()
		if e, ok = r.registry.lookup(fb.key()); !ok {
			return nil, fmt.Errorf("%w: %w", ErrClassNotFound, ErrFallbackMissing)
		}
		d = fb
	}

	if !e.info.Kind.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPackage, d.Path())
	}

	return &Resolved[C]{Descriptor: d, entry: e}, nil
}

// IsGuestExecutable reports whether d may run without authentication.
// Resolution errors count as not executable.
func (r *Resolver[C]) IsGuestExecutable(rc RequestContext, d Descriptor) bool {
	res, err := r.Resolve(rc, d)
	if err != nil {
		return false
	}
	return res.GuestExecutable()
}

// Resolved is a descriptor bound to its unit.
type Resolved[C any] struct {
	entry *entry[C]

	// Descriptor is the effective target. It differs from the requested one
	// when the root namespace was applied or the fallback was taken.
	Descriptor Descriptor
}

// Kind returns the unit variant.
func (r *Resolved[C]) Kind() Kind {
	return r.entry.info.Kind
}

// Unit returns the registration info of the bound unit.
func (r *Resolved[C]) Unit() UnitInfo {
	return r.entry.info
}

// GuestExecutable reports whether the bound function is open to guests.
func (r *Resolved[C]) GuestExecutable() bool {
	info := r.entry.info
	return info.Unauth && slices.Contains(info.Guest, r.Descriptor.Function)
}

// Invoke builds a fresh unit, runs Init, then calls the target function with
// the mode arguments followed by extra.
func (r *Resolved[C]) Invoke(c C, extra ...string) error {
	fn := r.Descriptor.Function
	if fn == "" {
		fn = LowerCamel(DefaultMethod)
	}
	args := append(slices.Clone(r.Descriptor.Arguments), extra...)
	return r.entry.invoke(c, fn, args)
}
