package mode

// Kind is the closed set of unit variants the resolver accepts.
type Kind int

const (
	// KindInvalid marks a unit registered without a recognized variant.
	// Resolving it fails with ErrInvalidPackage.
	KindInvalid Kind = iota
	KindPackage
	KindSystemResponse
	KindUserResponse
	KindFileManager
	KindPlugin
)

func (k Kind) String() string {
	switch k {
	case KindPackage:
		return "package"
	case KindSystemResponse:
		return "system-response"
	case KindUserResponse:
		return "user-response"
	case KindFileManager:
		return "file-manager"
	case KindPlugin:
		return "plugin"
	default:
		return "invalid"
	}
}

// Valid reports whether k is one of the recognized variants.
func (k Kind) Valid() bool {
	return k >= KindPackage && k <= KindPlugin
}
