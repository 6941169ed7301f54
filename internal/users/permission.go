package users

import (
	"regexp"
	"strings"
)

// Permission keys checked by the built-in units.
const (
	PermRoot       = "root"
	PermGrant      = "user.grant"
	PermCreate     = "user.create"
	PermUpdate     = "user.update"
	PermRemove     = "user.remove"
	PermFileRead   = "file.read"
	PermFileWrite  = "file.write"
	PermFileRemove = "file.remove"
)

// Permissions maps a key to an explicit grant or denial.
type Permissions map[string]bool

// negative matches keys whose last segment starts with "no", which read as
// a restriction and are therefore not implied by admin rights.
var negative = regexp.MustCompile(`\.no[^.]+$`)

// Allowed decides key for u given its stored permissions.
//
// "root" is held by the root user alone. Admins hold every other key except
// negative ones and "user.grant". Keys ending in ".exec" are allowed unless
// explicitly denied; all others must be granted.
func Allowed(u User, perms Permissions, key string) bool {
	if key == PermRoot {
		return u.IsRoot()
	}
	if key != PermGrant && u.Admin {
		return !negative.MatchString(key)
	}

	granted, set := perms[key]
	if strings.HasSuffix(key, ".exec") {
		return !set || granted
	}
	return granted
}
