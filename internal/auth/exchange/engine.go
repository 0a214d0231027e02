// Package exchange drives the OAuth token lifecycle for calendar providers:
// authorization URLs, code exchange and silent refresh, with the resulting
// credentials and provider session caches persisted through stores.
package exchange

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pysugar/calsync/internal/calendar"
	"github.com/pysugar/calsync/internal/logging"
	"github.com/pysugar/calsync/internal/util"
)

const (
	opAuthURL  = "build authorization url"
	opExchange = "exchange code"
	opRefresh  = "refresh silently"
)

type CredentialStore interface {
	Get(ctx context.Context, userID string, kind calendar.ProviderKind) (*calendar.CredentialRecord, error)
	Upsert(ctx context.Context, rec *calendar.CredentialRecord) error
}

type CacheStore interface {
	Load(ctx context.Context, userID string) ([]byte, error)
	Save(ctx context.Context, userID string, data []byte) error
}

type UserStore interface {
	Get(ctx context.Context, id string) (*calendar.User, error)
}

// Engine runs the protocol operations. Operations for the same user and
// provider are serialized within the process.
type Engine struct {
	baseURL     string
	providers   map[calendar.ProviderKind]Provider
	users       UserStore
	credentials CredentialStore
	caches      CacheStore
	now         func() time.Time
	locks       *keyedMutex
}

type Option func(*Engine)

// WithProvider registers the implementation used for kind.
func WithProvider(kind calendar.ProviderKind, p Provider) Option {
	return func(e *Engine) { e.providers[kind] = p }
}

// WithClock overrides the time source used for default expiries.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(baseURL string, users UserStore, credentials CredentialStore, caches CacheStore, opts ...Option) *Engine {
	e := &Engine{
		baseURL:     strings.TrimRight(baseURL, "/"),
		providers:   make(map[calendar.ProviderKind]Provider),
		users:       users,
		credentials: credentials,
		caches:      caches,
		now:         time.Now,
		locks:       newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RedirectURI is the callback URL registered with the provider.
func (e *Engine) RedirectURI(kind calendar.ProviderKind) string {
	return e.baseURL + "/api/calendar/" + string(kind) + "/callback"
}

// BuildAuthorizationURL returns the provider consent URL for userID. state is
// echoed back by the provider on the callback.
func (e *Engine) BuildAuthorizationURL(ctx context.Context, kind calendar.ProviderKind, userID, state string) (string, error) {
	p, err := e.provider(opAuthURL, kind)
	if err != nil {
		return "", err
	}
	if err := e.requireUser(ctx, opAuthURL, userID); err != nil {
		return "", err
	}

	blob, err := e.loadCache(ctx, userID)
	if err != nil {
		return "", opError(opAuthURL, calendar.ErrPersistenceFailed, err)
	}

	authURL, snap, err := p.AuthCodeURL(ctx, AuthRequest{
		RedirectURI: e.RedirectURI(kind),
		Scopes:      p.Scopes(),
		State:       state,
	}, blob)
	if saveErr := e.saveCache(ctx, userID, snap); saveErr != nil && err == nil {
		return "", opError(opAuthURL, calendar.ErrPersistenceFailed, saveErr)
	}
	if err != nil {
		return "", opError(opAuthURL, calendar.ErrExchangeFailed, err)
	}
	return authURL, nil
}

// ExchangeCode redeems an authorization code and stores the resulting
// credential, replacing any previous one for the same user and provider.
func (e *Engine) ExchangeCode(ctx context.Context, kind calendar.ProviderKind, userID, code string) (*calendar.CredentialRecord, error) {
	log := logging.Ctx(ctx, "exchange")

	p, err := e.provider(opExchange, kind)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(code) == "" {
		return nil, opError(opExchange, calendar.ErrMissingCode, nil)
	}
	if err := e.requireUser(ctx, opExchange, userID); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(lockKey(userID, kind))
	defer unlock()

	blob, err := e.loadCache(ctx, userID)
	if err != nil {
		return nil, opError(opExchange, calendar.ErrPersistenceFailed, err)
	}

	scopes := p.Scopes()
	result, snap, err := p.AcquireByCode(ctx, CodeRequest{
		Code:        code,
		RedirectURI: e.RedirectURI(kind),
		Scopes:      scopes,
	}, blob)
	saveErr := e.saveCache(ctx, userID, snap)
	if err != nil {
		if saveErr != nil {
			log.Error().Err(saveErr).Str("user_id", userID).Msg("failed to persist token cache after rejected exchange")
		}
		log.Warn().Err(err).Str("user_id", userID).Str("provider", string(kind)).Msg("code exchange failed")
		return nil, providerError(opExchange, calendar.ErrExchangeFailed, err)
	}
	if saveErr != nil {
		return nil, opError(opExchange, calendar.ErrPersistenceFailed, saveErr)
	}

	rec := normalize(kind, userID, result, scopes, e.now())
	if err := e.credentials.Upsert(ctx, rec); err != nil {
		return nil, opError(opExchange, calendar.ErrPersistenceFailed, err)
	}

	log.Info().
		Str("user_id", userID).
		Str("provider", string(kind)).
		Str("access_token", util.MaskSecret(rec.AccessToken)).
		Time("expires", rec.TokenExpiry).
		Msg("calendar connected")
	return rec, nil
}

// RefreshSilently renews the stored credential without user interaction,
// using the account recorded in the credential and the scopes it was granted.
func (e *Engine) RefreshSilently(ctx context.Context, kind calendar.ProviderKind, userID string) (*calendar.CredentialRecord, error) {
	log := logging.Ctx(ctx, "exchange")

	p, err := e.provider(opRefresh, kind)
	if err != nil {
		return nil, err
	}
	if err := e.requireUser(ctx, opRefresh, userID); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(lockKey(userID, kind))
	defer unlock()

	current, err := e.credentials.Get(ctx, userID, kind)
	if err != nil {
		if errors.Is(err, calendar.ErrRecordNotFound) {
			return nil, opError(opRefresh, calendar.ErrCredentialNotFound, nil)
		}
		return nil, opError(opRefresh, calendar.ErrPersistenceFailed, err)
	}

	blob, err := e.caches.Load(ctx, userID)
	if err != nil {
		if errors.Is(err, calendar.ErrRecordNotFound) {
			return nil, opError(opRefresh, calendar.ErrCacheNotFound, nil)
		}
		return nil, opError(opRefresh, calendar.ErrPersistenceFailed, err)
	}

	scopes := current.Scopes
	if len(scopes) == 0 {
		scopes = p.Scopes()
	}
	result, snap, err := p.AcquireSilent(ctx, SilentRequest{
		HomeAccountID: current.HomeAccountID(),
		Scopes:        scopes,
		ForceRefresh:  true,
	}, blob)
	saveErr := e.saveCache(ctx, userID, snap)
	if err != nil {
		if saveErr != nil {
			log.Error().Err(saveErr).Str("user_id", userID).Msg("failed to persist token cache after rejected refresh")
		}
		log.Warn().Err(err).Str("user_id", userID).Str("provider", string(kind)).Msg("silent refresh failed")
		return nil, providerError(opRefresh, calendar.ErrRefreshFailed, err)
	}
	if saveErr != nil {
		return nil, opError(opRefresh, calendar.ErrPersistenceFailed, saveErr)
	}

	// the granted scope list is carried over unchanged
	renewed := *result
	renewed.Scopes = scopes
	rec := normalize(kind, userID, &renewed, scopes, e.now())
	if err := e.credentials.Upsert(ctx, rec); err != nil {
		return nil, opError(opRefresh, calendar.ErrPersistenceFailed, err)
	}

	log.Info().
		Str("user_id", userID).
		Str("provider", string(kind)).
		Time("expires", rec.TokenExpiry).
		Msg("calendar token refreshed")
	return rec, nil
}

func (e *Engine) provider(op string, kind calendar.ProviderKind) (Provider, error) {
	p, ok := e.providers[kind]
	if !ok {
		return nil, opError(op, calendar.ErrUnsupportedProvider, errors.New(string(kind)))
	}
	return p, nil
}

func (e *Engine) requireUser(ctx context.Context, op, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return opError(op, calendar.ErrUserNotFound, nil)
	}
	if _, err := e.users.Get(ctx, userID); err != nil {
		if errors.Is(err, calendar.ErrRecordNotFound) {
			return opError(op, calendar.ErrUserNotFound, nil)
		}
		return opError(op, calendar.ErrPersistenceFailed, err)
	}
	return nil
}

// loadCache returns the stored cache blob, or nil for a first connection.
func (e *Engine) loadCache(ctx context.Context, userID string) ([]byte, error) {
	blob, err := e.caches.Load(ctx, userID)
	if errors.Is(err, calendar.ErrRecordNotFound) {
		return nil, nil
	}
	return blob, err
}

// saveCache persists snap when the provider reports a change.
func (e *Engine) saveCache(ctx context.Context, userID string, snap CacheSnapshot) error {
	if !snap.Changed {
		return nil
	}
	return e.caches.Save(ctx, userID, snap.Data)
}

func opError(op string, kind, cause error) error {
	return &calendar.OpError{Op: op, Kind: kind, Err: cause}
}

// providerError classifies a provider failure. A missing cached account is
// reported as such so callers can send the user back through consent.
func providerError(op string, kind, cause error) error {
	if errors.Is(cause, calendar.ErrAccountNotFound) {
		return opError(op, calendar.ErrAccountNotFound, cause)
	}
	return opError(op, kind, cause)
}

func lockKey(userID string, kind calendar.ProviderKind) string {
	return userID + "|" + string(kind)
}
