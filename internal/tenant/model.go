package tenant

import "errors"

var (
	ErrInvalidSchema   = errors.New("invalid schema")
	ErrProtectedColumn = errors.New("protected column")
)

// DefaultColumns is the fixed set of columns every tenant table carries.
// They are never removable, and generic update operations refuse to write
// them unless the caller explicitly overrides.
var DefaultColumns = []string{
	"id",
	"password",
	"total_logins",
	"prev_locations",
	"prev_devices",
	"prev_logins",
	"attempts",
	"all_attempts",
	"mfa_key",
	"pending_mfa",
}

// IsProtected reports whether name is a default column.
func IsProtected(name string) bool {
	for _, c := range DefaultColumns {
		if c == name {
			return true
		}
	}
	return false
}
