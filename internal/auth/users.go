package auth

import (
	"fmt"

	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/config"
)

// Authenticate checks username and password against the configured users
// and returns the matching principal. Unknown users and wrong passwords
// both yield ErrInvalidCredentials.
func Authenticate(users []config.UserConfig, username, password string) (Principal, error) {
	if !IsValidUsername(username) || password == "" {
		return Principal{}, ErrInvalidCredentials
	}

	for _, u := range users {
		if u.Username != username {
			continue
		}
		ok, err := VerifyPassword(password, u.PasswordHash)
		if err != nil {
			return Principal{}, fmt.Errorf("user %q: %w", username, err)
		}
		if !ok {
			return Principal{}, ErrInvalidCredentials
		}
		role := Role(u.Role)
		if !IsValidRole(role) {
			return Principal{}, fmt.Errorf("user %q: unknown role %q", username, u.Role)
		}
		return Principal{Subject: u.Username, Role: role}, nil
	}

	return Principal{}, ErrInvalidCredentials
}
