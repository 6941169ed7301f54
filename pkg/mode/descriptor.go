package mode

import "strings"

// Descriptor is the parsed form of a mode string.
type Descriptor struct {
	// Namespace is lowercased; empty when the mode did not name one.
	Namespace string
	// Package holds UpperCamel segments joined with PackageSeparator.
	Package string
	// Function is the lowerCamel method name.
	Function string
	// Arguments is nil when the mode carried no argument list.
	Arguments []string
	// Plugin is set when the namespace was marked with "~".
	Plugin bool
}

// String renders d back into mode syntax. Parsing the result yields d again.
func (d Descriptor) String() string {
	var b strings.Builder

	if d.Namespace != "" {
		b.WriteString(d.Namespace)
		if d.Plugin {
			b.WriteByte('~')
		} else {
			b.WriteByte('#')
		}
	}

	b.WriteString(d.Path())

	if d.Function != LowerCamel(DefaultMethod) || d.Arguments != nil {
		b.WriteByte(':')
		b.WriteString(kebab(d.Function, true))
		if d.Arguments != nil {
			b.WriteByte('(')
			b.WriteString(strings.Join(d.Arguments, ","))
			b.WriteByte(')')
		}
	}

	return b.String()
}

// Path returns the package in dotted mode form, e.g. "user.response".
func (d Descriptor) Path() string {
	segments := strings.Split(d.Package, PackageSeparator)
	for i, seg := range segments {
		segments[i] = kebab(seg, false)
	}
	return strings.Join(segments, ".")
}

// IsDefault reports whether d targets the default method.
func (d Descriptor) IsDefault() bool {
	return d.Function == LowerCamel(DefaultMethod)
}

// key identifies a routing table entry.
type key struct {
	namespace string
	pkg       string
	plugin    bool
}

func (d Descriptor) key() key {
	return key{namespace: d.Namespace, pkg: d.Package, plugin: d.Plugin}
}
