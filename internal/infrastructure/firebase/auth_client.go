package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"

	"repairhub/pkg/errors"
)

// IDTokenVerifier is the part of *auth.Client used to check ID tokens.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseAuthClient authenticates requests carrying Firebase ID tokens.
type FirebaseAuthClient struct {
	client IDTokenVerifier
}

func NewFirebaseAuthClient(client IDTokenVerifier) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client: client,
	}
}

func (f *FirebaseAuthClient) VerifyToken(ctx context.Context, token string) (string, error) {
	result, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", errors.Unauthorized("Invalid or expired token", err)
	}

	return result.UID, nil
}
