// README: Bearer-token contract shared by the Firebase and HS256 verifiers.
package infra

import (
	"context"
	"errors"
)

var ErrInvalidToken = errors.New("invalid token")

// AuthToken is a verified caller identity.
type AuthToken struct {
	UID    string
	Claims map[string]interface{}
}

// Role returns the "role" claim, or "" when absent or not a string.
func (t *AuthToken) Role() string {
	if t == nil {
		return ""
	}
	role, _ := t.Claims["role"].(string)
	return role
}

type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*AuthToken, error)
}
