package internal

import "strconv"

// ContextValue returns the value stored under key, or the zero T.
func ContextValue[T any](c Context, key any) T {
	if v, ok := c.Get(key).(T); ok {
		return v
	}
	var zero T
	return zero
}

// QueryDefault returns a typed query parameter, or def when it is missing
// or does not parse.
func QueryDefault[T string | int | int64 | bool](c Context, name string, def T) T {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	if v, ok := convertParam[T](raw); ok {
		return v
	}
	return def
}

// Arg returns the i-th mode argument converted to T. Units use it to read
// ids out of modes such as "user.response:children(42)".
func Arg[T string | int | int64 | bool](args []string, i int) (T, bool) {
	if i < 0 || i >= len(args) {
		var zero T
		return zero, false
	}
	return convertParam[T](args[i])
}

func convertParam[T string | int | int64 | bool](raw string) (T, bool) {
	var zero T
	var out any
	switch any(zero).(type) {
	case string:
		out = raw
	case int:
		v, err := strconv.Atoi(raw)
		if err != nil {
			return zero, false
		}
		out = v
	case int64:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return zero, false
		}
		out = v
	case bool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return zero, false
		}
		out = v
	default:
		return zero, false
	}
	return out.(T), true
}
