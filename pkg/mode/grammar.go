package mode

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	// DefaultMethod is the function used when a mode names none.
	DefaultMethod = "default-view"

	// DefaultResponse is the mode served to unauthenticated callers
	// whose requested unit does not exist.
	DefaultResponse = "system.response:failed"

	// PackageSeparator joins the UpperCamel segments of a package path.
	PackageSeparator = "/"
)

var (
	// modePattern splits a mode into namespace, package and function parts.
	// It is deliberately loose: anything that fails the strict wire grammar
	// is rejected earlier by Valid.
	modePattern = regexp.MustCompile(`^((.+)[~#])?(.+?)(:+(.+))?$`)

	// callPattern separates a function name from its argument list. It is
	// unanchored, so text after the closing parenthesis is dropped.
	callPattern = regexp.MustCompile(`(.+)\((.*)\)`)

	// wirePattern is the grammar accepted at the request boundary.
	wirePattern = regexp.MustCompile(`(?i)^([0-9a-z_-]+[~#])?[0-9a-z._-]+(:[0-9a-z_-]+)?(\(.*\))?$`)

	camelPattern = regexp.MustCompile(`[-_]([a-z])`)
)

// Valid reports whether s matches the mode grammar accepted from clients.
func Valid(s string) bool {
	return s != "" && wirePattern.MatchString(s)
}

// Parse turns a mode string into a Descriptor. It never fails: strings the
// grammar cannot split are treated as a bare package path with defaults.
func Parse(s string) Descriptor {
	d := Descriptor{
		Package:  s,
		Function: LowerCamel(DefaultMethod),
	}

	if m := modePattern.FindStringSubmatch(s); m != nil {
		d.Namespace = strings.ToLower(m[2])
		d.Plugin = strings.HasSuffix(m[1], "~")
		d.Package = m[3]

		if m[5] != "" {
			fn := m[5]
			if call := callPattern.FindStringSubmatch(fn); call != nil {
				fn = call[1]
				d.Arguments = strings.Split(call[2], ",")
			}
			d.Function = LowerCamel(fn)
		}
	}

	segments := strings.Split(d.Package, ".")
	for i, seg := range segments {
		segments[i] = UpperCamel(seg)
	}
	d.Package = strings.Join(segments, PackageSeparator)

	return d
}

// LowerCamel lowercases s and folds "-x" and "_x" into "X".
func LowerCamel(s string) string {
	return camelPattern.ReplaceAllStringFunc(strings.ToLower(s), func(m string) string {
		return strings.ToUpper(m[1:])
	})
}

// UpperCamel is LowerCamel with the first letter capitalized.
func UpperCamel(s string) string {
	s = LowerCamel(s)
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// kebab reverses LowerCamel. With leading set, an initial capital gets a
// dash too, so kebab(LowerCamel(x), true) survives another LowerCamel.
func kebab(s string, leading bool) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 || leading {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
