// README: Firebase ID-token verifier for auth mode "firebase".
package infra

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// idTokenClient is the part of *auth.Client the verifier needs.
type idTokenClient interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

type FirebaseVerifier struct {
	client idTokenClient
}

// NewFirebaseVerifier falls back to application-default credentials when
// credentialsFile is empty.
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string) (*FirebaseVerifier, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialising firebase app for %s: %w", projectID, err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialising firebase auth client: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

// VerifyIDToken checks signature, expiry and audience through the Admin SDK.
// Custom claims (role) are set on the account by the onboarding flow.
func (v *FirebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*AuthToken, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if token.UID == "" {
		return nil, fmt.Errorf("%w: missing uid", ErrInvalidToken)
	}
	claims := token.Claims
	if claims == nil {
		claims = map[string]interface{}{}
	}
	return &AuthToken{UID: token.UID, Claims: claims}, nil
}
