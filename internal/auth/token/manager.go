package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pysugar/calsync/internal/calendar"
	"github.com/pysugar/calsync/internal/logging"
	"golang.org/x/oauth2"
)

// MinValidity is how long an access token must remain valid before
// AccessToken hands it out without refreshing.
const MinValidity = time.Minute

type CredentialSource interface {
	Get(ctx context.Context, userID string, kind calendar.ProviderKind) (*calendar.CredentialRecord, error)
	ListExpiring(ctx context.Context, before time.Time) ([]*calendar.CredentialRecord, error)
}

type Refresher interface {
	RefreshSilently(ctx context.Context, kind calendar.ProviderKind, userID string) (*calendar.CredentialRecord, error)
}

// Manager keeps stored calendar credentials fresh in the background and
// serves valid access tokens to callers.
type Manager struct {
	credentials CredentialSource
	refresher   Refresher
	interval    time.Duration
	window      time.Duration
	now         func() time.Time

	mu sync.Mutex
	// parked holds the access token a credential had when its refresh failed
	// permanently. The credential is skipped until that token changes.
	parked map[string]string
}

// NewManager creates a manager that, every interval, refreshes credentials
// expiring within window.
func NewManager(credentials CredentialSource, refresher Refresher, interval, window time.Duration) *Manager {
	return &Manager{
		credentials: credentials,
		refresher:   refresher,
		interval:    interval,
		window:      window,
		now:         time.Now,
		parked:      make(map[string]string),
	}
}

// StartRefreshLoop starts background token refresh until ctx is done. A zero
// interval disables the loop.
func (m *Manager) StartRefreshLoop(ctx context.Context) {
	log := logging.For("token")
	if m.interval <= 0 {
		log.Info().Msg("token refresh loop disabled")
		return
	}

	ticker := time.NewTicker(m.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.RefreshExpiring(ctx)
			}
		}
	}()
	log.Info().Dur("interval", m.interval).Dur("window", m.window).Msg("token refresh loop started")
}

// RefreshExpiring refreshes every credential expiring within the window and
// returns how many were renewed.
func (m *Manager) RefreshExpiring(ctx context.Context) int {
	log := logging.For("token")

	records, err := m.credentials.ListExpiring(ctx, m.now().Add(m.window))
	if err != nil {
		log.Error().Err(err).Msg("failed to list expiring credentials")
		return 0
	}

	refreshed := 0
	for _, rec := range records {
		if m.isParked(rec) {
			continue
		}
		if _, err := m.refresh(ctx, rec); err == nil {
			refreshed++
		}
	}
	if len(records) > 0 {
		log.Info().Int("expiring", len(records)).Int("refreshed", refreshed).Msg("refresh pass complete")
	}
	return refreshed
}

// AccessToken returns a token for (userID, kind) valid for at least
// MinValidity, refreshing silently first when needed.
func (m *Manager) AccessToken(ctx context.Context, kind calendar.ProviderKind, userID string) (string, error) {
	rec, err := m.credentials.Get(ctx, userID, kind)
	if err != nil {
		if errors.Is(err, calendar.ErrRecordNotFound) {
			return "", &calendar.OpError{Op: "access token", Kind: calendar.ErrCredentialNotFound}
		}
		return "", &calendar.OpError{Op: "access token", Kind: calendar.ErrPersistenceFailed, Err: err}
	}
	if rec.TokenExpiry.After(m.now().Add(MinValidity)) {
		return rec.AccessToken, nil
	}

	logging.Ctx(ctx, "token").Info().Str("user_id", userID).Msg("access token expiring, refreshing")
	fresh, err := m.refresh(ctx, rec)
	if err != nil {
		return "", err
	}
	return fresh.AccessToken, nil
}

func (m *Manager) refresh(ctx context.Context, rec *calendar.CredentialRecord) (*calendar.CredentialRecord, error) {
	log := logging.Ctx(ctx, "token")

	fresh, err := m.refresher.RefreshSilently(ctx, rec.Provider, rec.UserID)
	if err != nil {
		if isPermanentRefreshError(err) {
			m.park(rec)
			log.Warn().Err(err).Str("user_id", rec.UserID).Str("provider", string(rec.Provider)).
				Msg("refresh failed permanently, waiting for the user to reconnect")
		} else {
			log.Warn().Err(err).Str("user_id", rec.UserID).Msg("transient refresh failure, will retry")
		}
		return nil, err
	}

	m.mu.Lock()
	delete(m.parked, parkKey(rec))
	m.mu.Unlock()
	return fresh, nil
}

func (m *Manager) park(rec *calendar.CredentialRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parked[parkKey(rec)] = rec.AccessToken
}

func (m *Manager) isParked(rec *calendar.CredentialRecord) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.parked[parkKey(rec)]
	if !ok {
		return false
	}
	if token != rec.AccessToken {
		// reconnected since the failure
		delete(m.parked, parkKey(rec))
		return false
	}
	return true
}

func parkKey(rec *calendar.CredentialRecord) string {
	return fmt.Sprintf("%s|%s", rec.UserID, rec.Provider)
}

func isPermanentRefreshError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, calendar.ErrAccountNotFound) ||
		errors.Is(err, calendar.ErrCacheNotFound) ||
		errors.Is(err, calendar.ErrCredentialNotFound) ||
		errors.Is(err, calendar.ErrUserNotFound) {
		return true
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		switch retrieveErr.ErrorCode {
		case "invalid_grant", "invalid_client", "unauthorized_client", "interaction_required", "consent_required":
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	permanentMarkers := []string{
		"invalid_grant",
		"invalid_client",
		"unauthorized_client",
		"token has been expired or revoked",
		"revoked",
	}
	for _, marker := range permanentMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
