// package services defines interface Service for interacting with HTTP APIs
package services

import (
	"context"

	"golang.org/x/oauth2"
)

// Service defines the interface for authenticated HTTP API clients.
type Service interface {
	// Authenticate configures the client from stored credentials.
	// Returns an error if no usable credential is present.
	Authenticate(ctx context.Context, credentials map[string]string) error

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// OAuthService is a [Service] that supports the OAuth2 authorization code flow.
type OAuthService interface {
	Service

	// GetAuthURL returns the URL the user visits to grant access.
	GetAuthURL(state string) string

	// Exchange trades an authorization code for a token and authenticates the service with it.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}
