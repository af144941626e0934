package infra

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v := NewJWTVerifier("test-secret")

	raw, err := v.Issue("driver-1", "driver", time.Hour)
	require.NoError(t, err)

	tok, err := v.VerifyIDToken(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "driver-1", tok.UID)
	assert.Equal(t, "driver", tok.Claims["role"])
}

func TestJWTVerifier_WrongSecret(t *testing.T) {
	raw, err := NewJWTVerifier("one").Issue("u1", "rider", time.Hour)
	require.NoError(t, err)

	_, err = NewJWTVerifier("two").VerifyIDToken(context.Background(), raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTVerifier_Expired(t *testing.T) {
	v := NewJWTVerifier("test-secret")
	raw, err := v.Issue("u1", "rider", -time.Minute)
	require.NoError(t, err)

	_, err = v.VerifyIDToken(context.Background(), raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTVerifier_LegacyIDClaim(t *testing.T) {
	secret := []byte("test-secret")
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"_id": "64f0c0ffee",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(secret)
	require.NoError(t, err)

	tok, err := NewJWTVerifier(string(secret)).VerifyIDToken(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "64f0c0ffee", tok.UID)
}

func TestJWTVerifier_RejectsNoneAlg(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "x"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewJWTVerifier("test-secret").VerifyIDToken(context.Background(), raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
