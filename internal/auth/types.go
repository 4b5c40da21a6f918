package auth

import (
	"errors"
	"regexp"
)

// usernamePattern defines the valid format for usernames:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// IsValidUsername checks if a username meets format requirements.
func IsValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// Role represents an authorisation tier.
type Role string

const (
	// RoleViewer can list sequences, targets, status and execution history.
	RoleViewer Role = "viewer"

	// RoleOperator can additionally load, play and skip sequences.
	RoleOperator Role = "operator"

	// RoleAdmin can additionally create, edit and delete definitions.
	RoleAdmin Role = "admin"
)

// ValidRoles lists every role a configured user may hold.
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

// Principal is the authenticated caller of an API request.
type Principal struct {
	Subject   string `json:"subject"`
	Role      Role   `json:"role"`
	SessionID string `json:"session_id"`
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrForbidden          = errors.New("insufficient permissions")
)
