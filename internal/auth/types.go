package auth

import "errors"

// Role represents an authorisation tier.
type Role string

const (
	// RoleViewer can watch the amplifier but not change it.
	RoleViewer Role = "viewer"

	// RoleOperator can also send control commands.
	RoleOperator Role = "operator"

	// RoleAdmin can also read registers back from the hardware.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of roles a token may carry.
var ValidRoles = []Role{RoleViewer, RoleOperator, RoleAdmin}

// IsValidRole returns true if r is one of ValidRoles.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Sentinel errors for auth operations.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrForbidden    = errors.New("insufficient permissions")
	ErrInvalidRole  = errors.New("invalid role")
)
