// README: HS256 JWT verifier and issuer for deployments without Firebase.
package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Issue signs a token for uid with the given role claim.
func (v *JWTVerifier) Issue(uid, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  uid,
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func (v *JWTVerifier) VerifyIDToken(_ context.Context, raw string) (*AuthToken, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	uid, _ := claims["sub"].(string)
	if uid == "" {
		// tokens minted by the legacy account service carry _id
		uid, _ = claims["_id"].(string)
	}
	if uid == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return &AuthToken{UID: uid, Claims: map[string]interface{}(claims)}, nil
}
