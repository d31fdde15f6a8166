package auth

import (
	"context"
	"errors"
	"fmt"

	googleAuthIDTokenVerifier "github.com/futurenda/google-auth-id-token-verifier"
)

// GoogleProvider accepts Google ID tokens issued for the configured client.
type GoogleProvider struct {
	clientID string
	verifier googleAuthIDTokenVerifier.Verifier
}

func NewGoogleProvider(clientID string) (*GoogleProvider, error) {
	if clientID == "" {
		return nil, errors.New("GOOGLE_CLIENT_ID is required for the google auth provider")
	}
	return &GoogleProvider{clientID: clientID}, nil
}

func (p *GoogleProvider) Authenticate(_ context.Context, token string) (*User, error) {
	if err := p.verifier.VerifyIDToken(token, []string{p.clientID}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	claimSet, err := googleAuthIDTokenVerifier.Decode(token)
	if err != nil {
		return nil, fmt.Errorf("%w: decode id token: %v", ErrUnauthenticated, err)
	}
	if claimSet.Sub == "" || claimSet.Email == "" {
		return nil, fmt.Errorf("%w: id token missing subject or email", ErrUnauthenticated)
	}
	return &User{ID: claimSet.Sub, Email: claimSet.Email, Name: claimSet.Name}, nil
}
