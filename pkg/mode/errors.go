package mode

import "errors"

var (
	// ErrNamespaceNotEnabled is returned when a mode names a namespace
	// that is not in the resolver's allow-list.
	ErrNamespaceNotEnabled = errors.New("mode: namespace is not enabled")

	// ErrClassNotFound is returned to authenticated callers when no unit
	// is registered for the requested namespace and package.
	ErrClassNotFound = errors.New("mode: unit not found")

	// ErrInvalidPackage is returned when the unit exists but is not one of
	// the recognized kinds. It is a server fault, not a client one.
	ErrInvalidPackage = errors.New("mode: invalid package")

	// ErrMethodNotFound is returned by Invoke for functions the unit does not expose.
	ErrMethodNotFound = errors.New("mode: method not found")

	// ErrDuplicateUnit is returned when two units claim the same route.
	ErrDuplicateUnit = errors.New("mode: duplicate unit")

	// ErrInvalidSpec is returned when a registration is missing required fields.
	ErrInvalidSpec = errors.New("mode: invalid unit spec")

	// ErrFallbackMissing is reported by Validate when the default response is not registered.
	ErrFallbackMissing = errors.New("mode: fallback response is not registered")
)
