package gmail

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const scopeReadonly = "https://www.googleapis.com/auth/gmail.readonly"

// ErrNotAuthenticated is returned when no credential has been configured.
var ErrNotAuthenticated = errors.New("gmail: not authenticated")

// CredentialProvider is everything the client needs from the OAuth flow.
type CredentialProvider interface {
	IsAuthenticated() bool
	BearerToken(ctx context.Context) (string, error)
}

// TokenCredentials adapts an oauth2.TokenSource. A nil source means logged out.
type TokenCredentials struct {
	source oauth2.TokenSource
}

// NewStaticCredentials wraps an access token obtained elsewhere.
func NewStaticCredentials(accessToken string) *TokenCredentials {
	if accessToken == "" {
		return &TokenCredentials{}
	}
	return &TokenCredentials{
		source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
	}
}

// NewRefreshCredentials refreshes access tokens from a long-lived refresh token.
func NewRefreshCredentials(ctx context.Context, clientID, clientSecret, refreshToken string) *TokenCredentials {
	if clientID == "" || refreshToken == "" {
		return &TokenCredentials{}
	}
	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{scopeReadonly},
	}
	return &TokenCredentials{
		source: oauth2.ReuseTokenSource(nil, conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})),
	}
}

func (c *TokenCredentials) IsAuthenticated() bool {
	return c != nil && c.source != nil
}

func (c *TokenCredentials) BearerToken(ctx context.Context) (string, error) {
	if !c.IsAuthenticated() {
		return "", ErrNotAuthenticated
	}
	tok, err := c.source.Token()
	if err != nil {
		return "", fmt.Errorf("gmail: failed to get token: %w", err)
	}
	return tok.AccessToken, nil
}
