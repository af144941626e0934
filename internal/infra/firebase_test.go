package infra

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIDTokenClient struct {
	token *auth.Token
	err   error
}

func (f fakeIDTokenClient) VerifyIDToken(context.Context, string) (*auth.Token, error) {
	return f.token, f.err
}

func TestFirebaseVerifier_MapsClaims(t *testing.T) {
	v := &FirebaseVerifier{client: fakeIDTokenClient{token: &auth.Token{
		UID:    "captain-7",
		Claims: map[string]interface{}{"role": "captain"},
	}}}

	tok, err := v.VerifyIDToken(context.Background(), "raw")
	require.NoError(t, err)
	assert.Equal(t, "captain-7", tok.UID)
	assert.Equal(t, "captain", tok.Role())
}

func TestFirebaseVerifier_NoClaimsMeansNoRole(t *testing.T) {
	v := &FirebaseVerifier{client: fakeIDTokenClient{token: &auth.Token{UID: "u1"}}}

	tok, err := v.VerifyIDToken(context.Background(), "raw")
	require.NoError(t, err)
	assert.Empty(t, tok.Role())
	assert.NotNil(t, tok.Claims)
}

func TestFirebaseVerifier_Rejections(t *testing.T) {
	_, err := (&FirebaseVerifier{client: fakeIDTokenClient{err: errors.New("ID token has expired")}}).
		VerifyIDToken(context.Background(), "raw")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = (&FirebaseVerifier{client: fakeIDTokenClient{token: &auth.Token{}}}).
		VerifyIDToken(context.Background(), "raw")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthToken_Role(t *testing.T) {
	var nilToken *AuthToken
	assert.Empty(t, nilToken.Role())
	assert.Empty(t, (&AuthToken{Claims: map[string]interface{}{"role": 3}}).Role())
	assert.Equal(t, "rider", (&AuthToken{Claims: map[string]interface{}{"role": "rider"}}).Role())
}
