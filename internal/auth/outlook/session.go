package outlook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pysugar/calsync/internal/auth/exchange"
)

const sessionVersion = 1

// session is the serialized form stored in the opaque token cache. Only this
// package reads or writes it.
type session struct {
	Version       int                      `json:"version"`
	Accounts      map[string]cachedAccount `json:"accounts"`
	RefreshTokens map[string]string        `json:"refresh_tokens"`
}

type cachedAccount struct {
	HomeAccountID  string   `json:"home_account_id"`
	Environment    string   `json:"environment"`
	Realm          string   `json:"realm"`
	LocalAccountID string   `json:"local_account_id"`
	Username       string   `json:"username"`
	Name           string   `json:"name,omitempty"`
	AuthorityType  string   `json:"authority_type"`
	TenantProfiles []string `json:"tenant_profiles,omitempty"`
	IDToken        string   `json:"id_token,omitempty"`
}

func loadSession(blob []byte) (*session, error) {
	s := &session{
		Version:       sessionVersion,
		Accounts:      map[string]cachedAccount{},
		RefreshTokens: map[string]string{},
	}
	if len(bytes.TrimSpace(blob)) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(blob, s); err != nil {
		return nil, fmt.Errorf("decode token cache: %w", err)
	}
	if s.Accounts == nil {
		s.Accounts = map[string]cachedAccount{}
	}
	if s.RefreshTokens == nil {
		s.RefreshTokens = map[string]string{}
	}
	return s, nil
}

// remember records the account and, when issued, its refresh token.
func (s *session) remember(a *exchange.Account, refreshToken string) {
	if a == nil || a.HomeAccountID == "" {
		return
	}
	s.Accounts[a.HomeAccountID] = cachedAccount{
		HomeAccountID:  a.HomeAccountID,
		Environment:    a.Environment,
		Realm:          a.TenantID,
		LocalAccountID: a.LocalAccountID,
		Username:       a.Username,
		Name:           a.Name,
		AuthorityType:  a.AuthorityType,
		TenantProfiles: a.TenantProfiles,
		IDToken:        a.IDToken,
	}
	if refreshToken != "" {
		s.RefreshTokens[a.HomeAccountID] = refreshToken
	}
}

func (s *session) account(homeAccountID string) (cachedAccount, bool) {
	a, ok := s.Accounts[homeAccountID]
	return a, ok
}

// loginHint returns the username of the only cached account, if any.
func (s *session) loginHint() string {
	if len(s.Accounts) != 1 {
		return ""
	}
	for _, a := range s.Accounts {
		return a.Username
	}
	return ""
}

// snapshot serializes the session and compares it with the blob it was
// loaded from.
func (s *session) snapshot(original []byte) (exchange.CacheSnapshot, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return unchanged(original), fmt.Errorf("encode token cache: %w", err)
	}
	return exchange.CacheSnapshot{
		Data:    data,
		Changed: !bytes.Equal(bytes.TrimSpace(original), data),
	}, nil
}

// homeAccountIDs lists cached account keys in a stable order.
func (s *session) homeAccountIDs() []string {
	ids := make([]string, 0, len(s.Accounts))
	for id := range s.Accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func unchanged(blob []byte) exchange.CacheSnapshot {
	return exchange.CacheSnapshot{Data: blob}
}

func (a cachedAccount) toAccount(claims map[string]any) *exchange.Account {
	return &exchange.Account{
		HomeAccountID:  a.HomeAccountID,
		Environment:    a.Environment,
		TenantID:       a.Realm,
		LocalAccountID: a.LocalAccountID,
		Username:       a.Username,
		Name:           a.Name,
		AuthorityType:  a.AuthorityType,
		TenantProfiles: a.TenantProfiles,
		IDToken:        a.IDToken,
		IDTokenClaims:  claims,
	}
}
