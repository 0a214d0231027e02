package exchange

import (
	"context"
	"time"
)

// Account is the identity a provider returns alongside issued tokens.
type Account struct {
	HomeAccountID  string
	Environment    string
	TenantID       string
	LocalAccountID string
	Username       string
	Name           string
	AuthorityType  string
	TenantProfiles []string
	IDToken        string
	IDTokenClaims  map[string]any
}

// Result is a provider's token response before normalization.
type Result struct {
	AccessToken string
	ExpiresOn   time.Time // zero when the provider omitted an expiry
	Scopes      []string
	Account     *Account
}

// CacheSnapshot is the provider session cache after an operation. Changed
// reports whether Data differs from the blob the operation was given.
type CacheSnapshot struct {
	Data    []byte
	Changed bool
}

type AuthRequest struct {
	RedirectURI string
	Scopes      []string
	State       string
}

type CodeRequest struct {
	Code        string
	RedirectURI string
	Scopes      []string
}

type SilentRequest struct {
	HomeAccountID string
	Scopes        []string
	ForceRefresh  bool
}

// Provider performs the OAuth protocol work for one calendar provider. Every
// call receives the user's current cache blob (nil when none is stored) and
// returns the resulting snapshot even when it also returns an error.
type Provider interface {
	Scopes() []string
	AuthCodeURL(ctx context.Context, req AuthRequest, cache []byte) (string, CacheSnapshot, error)
	AcquireByCode(ctx context.Context, req CodeRequest, cache []byte) (*Result, CacheSnapshot, error)
	AcquireSilent(ctx context.Context, req SilentRequest, cache []byte) (*Result, CacheSnapshot, error)
}
