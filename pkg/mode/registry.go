package mode

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Handler is implemented by every routable unit.
// Init runs on a fresh instance before the target method.
type Handler[C any] interface {
	Init(c C) error
}

// Unauth is implemented by units that serve some of their methods to
// unauthenticated callers. The methods themselves are listed in Spec.Guest.
type Unauth interface {
	GuestAccess()
}

// Method is a unit method as stored in the routing table.
type Method[C any, U Handler[C]] func(u U, c C, args ...string) error

// Spec describes one unit at registration time.
type Spec[C any, U Handler[C]] struct {
	// New builds a fresh unit for each invocation.
	New func() U

	// Methods maps function names (lowerCamel or kebab) to implementations.
	Methods map[string]Method[C, U]

	// Namespace is empty for units in the registry's core namespace.
	Namespace string

	// Package in dotted mode form, e.g. "user.response".
	Package string

	// Description is shown in route listings.
	Description string

	// Guest lists methods callable without authentication.
	// Only honored when U implements Unauth.
	Guest []string

	Kind   Kind
	Plugin bool
}

// UnitInfo is the read-only view of a registered unit.
type UnitInfo struct {
	Namespace   string
	Package     string
	Description string
	Methods     []string
	Guest       []string
	Kind        Kind
	Plugin      bool
	Unauth      bool
}

// Route renders the unit address in mode syntax without a function.
func (u UnitInfo) Route() string {
	d := Descriptor{Namespace: u.Namespace, Package: u.Package, Plugin: u.Plugin, Function: LowerCamel(DefaultMethod)}
	return d.String()
}

type entry[C any] struct {
	invoke func(c C, fn string, args []string) error
	info   UnitInfo
}

// Registry is the routing table from (namespace, package) to units.
// It is filled at startup; lookups are safe for concurrent use.
type Registry[C any] struct {
	entries map[key]*entry[C]
	core    string
	mu      sync.RWMutex
}

// NewRegistry creates an empty routing table. core is the namespace that
// holds built-in units, including the DefaultResponse fallback.
func NewRegistry[C any](core string) *Registry[C] {
	return &Registry[C]{
		entries: make(map[key]*entry[C]),
		core:    strings.ToLower(core),
	}
}

// Core returns the namespace of built-in units.
func (r *Registry[C]) Core() string {
	return r.core
}

// Register adds a unit to the routing table.
func Register[C any, U Handler[C]](r *Registry[C], s Spec[C, U]) error {
	if s.New == nil || strings.TrimSpace(s.Package) == "" {
		return fmt.Errorf("%w: package and constructor are required", ErrInvalidSpec)
	}

	d := Parse(s.Package)
	d.Namespace = strings.ToLower(s.Namespace)
	if d.Namespace == "" {
		d.Namespace = r.core
	}
	d.Plugin = s.Plugin

	methods := make(map[string]Method[C, U], len(s.Methods))
	for name, m := range s.Methods {
		if m == nil {
			continue
		}
		methods[normalizeMethod(name)] = m
	}

	guest := make([]string, 0, len(s.Guest))
	for _, g := range s.Guest {
		guest = append(guest, normalizeMethod(g))
	}

	var zero U
	_, unauth := any(zero).(Unauth)

	e := &entry[C]{
		info: UnitInfo{
			Namespace:   d.Namespace,
			Package:     d.Package,
			Description: s.Description,
			Methods:     slices.Sorted(maps.Keys(methods)),
			Guest:       guest,
			Kind:        s.Kind,
			Plugin:      s.Plugin,
			Unauth:      unauth,
		},
		invoke: func(c C, fn string, args []string) error {
			m, ok := methods[fn]
			if !ok {
				return fmt.Errorf("%w: %s", ErrMethodNotFound, fn)
			}
			u := s.New()
			if err := u.Init(c); err != nil {
				return err
			}
			return m(u, c, args...)
		},
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k := d.key()
	if _, exists := r.entries[k]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateUnit, e.info.Route())
	}
	r.entries[k] = e
	return nil
}

// MustRegister is Register that panics on error. Use it in startup wiring.
func MustRegister[C any, U Handler[C]](r *Registry[C], s Spec[C, U]) {
	if err := Register(r, s); err != nil {
		panic(err)
	}
}

func (r *Registry[C]) lookup(k key) (*entry[C], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[k]
	return e, ok
}

// Units lists registered units ordered by route.
func (r *Registry[C]) Units() []UnitInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	units := make([]UnitInfo, 0, len(r.entries))
	for _, e := range r.entries {
		units = append(units, e.info)
	}
	slices.SortFunc(units, func(a, b UnitInfo) int {
		return cmp.Compare(a.Route(), b.Route())
	})
	return units
}

// Validate checks the whole table and reports every problem found.
// Call it once after registration, before serving.
func (r *Registry[C]) Validate() error {
	var errs []error

	for _, u := range r.Units() {
		route := u.Route()
		if !u.Kind.Valid() {
			errs = append(errs, fmt.Errorf("%w: %s has no recognized kind", ErrInvalidPackage, route))
		}
		if len(u.Methods) == 0 {
			errs = append(errs, fmt.Errorf("%w: %s exposes no methods", ErrInvalidSpec, route))
		}
		if u.Plugin != (u.Kind == KindPlugin) {
			errs = append(errs, fmt.Errorf("%w: %s plugin flag does not match kind %s", ErrInvalidSpec, route, u.Kind))
		}
		if len(u.Guest) > 0 && !u.Unauth {
			errs = append(errs, fmt.Errorf("%w: %s declares guest methods without Unauth", ErrInvalidSpec, route))
		}
		for _, g := range u.Guest {
			if !slices.Contains(u.Methods, g) {
				errs = append(errs, fmt.Errorf("%w: %s guest method %q is not exposed", ErrInvalidSpec, route, g))
			}
		}
	}

	fb := Parse(DefaultResponse)
	fb.Namespace = r.core
	e, ok := r.lookup(fb.key())
	if !ok || !slices.Contains(e.info.Methods, fb.Function) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrFallbackMissing, DefaultResponse))
	}

	return errors.Join(errs...)
}

func normalizeMethod(name string) string {
	return LowerCamel(kebab(name, false))
}
