package service

import (
	"context"
	"errors"

	"studio-api/internal/domain"
)

// Sentinel errors reported by the identity provider client. Handlers map
// these onto response envelopes with distinct messages.
var (
	ErrInvalidCredentials  = errors.New("invalid password")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidEmail        = errors.New("invalid email format")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrNotConfigured       = errors.New("identity provider API key is not configured")
)

// TokenVerifier turns a raw access token into decoded claims or a failure.
// Every protected call re-verifies; results are never cached.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*domain.DecodedClaims, error)
}

// SignInResult is the identity provider's password-grant response
type SignInResult struct {
	UID          string
	Email        string
	DisplayName  string
	IDToken      string
	RefreshToken string
	ExpiresIn    int64
}

// RefreshResult is the identity provider's token-refresh response
type RefreshResult struct {
	UID          string
	IDToken      string
	RefreshToken string
	ExpiresIn    int64
}

// IdentityProvider defines the interface to the external identity service
type IdentityProvider interface {
	// SignInWithPassword exchanges an email/password pair for tokens
	SignInWithPassword(ctx context.Context, email, password string) (*SignInResult, error)

	// Refresh exchanges a refresh token for a fresh token pair
	Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error)

	// LookupByIDToken fetches the user record behind a valid ID token
	LookupByIDToken(ctx context.Context, idToken string) (*domain.UserProfile, error)

	// LookupByUID fetches a user record by its provider-assigned uid
	LookupByUID(ctx context.Context, uid string) (*domain.UserProfile, error)
}

// ImageHost defines the interface to the external image hosting service
type ImageHost interface {
	// Destroy removes an uploaded image by its public id and returns the
	// host's result string ("ok", "not found", ...)
	Destroy(ctx context.Context, publicID string) (string, error)
}

// Services aggregates all service interfaces
type Services struct {
	Verifier TokenVerifier
	Identity IdentityProvider
	Images   ImageHost
	Resource *ResourceService
}
