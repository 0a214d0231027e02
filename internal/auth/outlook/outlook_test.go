package outlook

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pysugar/calsync/internal/auth/exchange"
	"github.com/pysugar/calsync/internal/calendar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const redirectURI = "https://app.example.com/api/calendar/outlook/callback"

func mintIDToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return signed
}

func encodeClientInfo(uid, utid string) string {
	data, _ := json.Marshal(map[string]string{"uid": uid, "utid": utid})
	return base64.RawURLEncoding.EncodeToString(data)
}

type tokenServer struct {
	*httptest.Server
	forms    []url.Values
	response func(form url.Values) (int, map[string]any)
}

func newTokenServer(t *testing.T, response func(form url.Values) (int, map[string]any)) *tokenServer {
	ts := &tokenServer{response: response}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		ts.forms = append(ts.forms, r.PostForm)
		status, body := ts.response(r.PostForm)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestClient(ts *tokenServer) *Client {
	c := NewClient(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
			TokenURL: ts.URL + "/token",
		},
		HTTPClient: ts.Client(),
	})
	c.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestAuthCodeURL_Parameters(t *testing.T) {
	c := NewClient(Config{ClientID: "client-id", Tenant: "contoso"})

	raw, snap, err := c.AuthCodeURL(context.Background(), exchange.AuthRequest{
		RedirectURI: redirectURI,
		Scopes:      Scopes,
		State:       "state-123",
	}, nil)
	require.NoError(t, err)
	assert.False(t, snap.Changed)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "login.microsoftonline.com", u.Host)
	assert.True(t, strings.HasPrefix(u.Path, "/contoso/"))

	q := u.Query()
	assert.Equal(t, strings.Join(Scopes, " "), q.Get("scope"))
	assert.Equal(t, redirectURI, q.Get("redirect_uri"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "query", q.Get("response_mode"))
	assert.Equal(t, "offline", q.Get("access"))
	assert.Equal(t, "1", q.Get("client_info"))
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Empty(t, q.Get("login_hint"))
}

func TestAcquireByCode_PopulatesAccountAndCache(t *testing.T) {
	idToken := mintIDToken(t, jwt.MapClaims{
		"oid":                "oid-1",
		"tid":                "tid-1",
		"sub":                "sub-1",
		"preferred_username": "alex@contoso.com",
		"name":               "Alex",
		"email":              "alex@contoso.com",
	})
	ts := newTokenServer(t, func(form url.Values) (int, map[string]any) {
		return http.StatusOK, map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"token_type":    "Bearer",
			"expires_in":    3599,
			"scope":         "openid profile Calendars.Read",
			"id_token":      idToken,
			"client_info":   encodeClientInfo("uid-1", "utid-1"),
		}
	})
	c := newTestClient(ts)

	result, snap, err := c.AcquireByCode(context.Background(), exchange.CodeRequest{
		Code:        "the-code",
		RedirectURI: redirectURI,
		Scopes:      Scopes,
	}, nil)
	require.NoError(t, err)

	require.Len(t, ts.forms, 1)
	form := ts.forms[0]
	assert.Equal(t, "authorization_code", form.Get("grant_type"))
	assert.Equal(t, "the-code", form.Get("code"))
	assert.Equal(t, redirectURI, form.Get("redirect_uri"))
	assert.Equal(t, strings.Join(Scopes, " "), form.Get("scope"))
	assert.Equal(t, "client-secret", form.Get("client_secret"))

	assert.Equal(t, "access-1", result.AccessToken)
	assert.Equal(t, []string{"openid", "profile", "Calendars.Read"}, result.Scopes)
	assert.False(t, result.ExpiresOn.IsZero())
	require.NotNil(t, result.Account)
	assert.Equal(t, "uid-1.utid-1", result.Account.HomeAccountID)
	assert.Equal(t, "tid-1", result.Account.TenantID)
	assert.Equal(t, "oid-1", result.Account.LocalAccountID)
	assert.Equal(t, "alex@contoso.com", result.Account.Username)
	assert.Equal(t, "login.microsoftonline.com", result.Account.Environment)
	assert.Equal(t, "MSSTS", result.Account.AuthorityType)
	assert.Equal(t, "alex@contoso.com", result.Account.IDTokenClaims["email"])

	assert.True(t, snap.Changed)
	session, err := loadSession(snap.Data)
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", session.RefreshTokens["uid-1.utid-1"])
	assert.Equal(t, "alex@contoso.com", session.loginHint())
}

func TestAcquireByCode_ProviderRejection(t *testing.T) {
	ts := newTokenServer(t, func(url.Values) (int, map[string]any) {
		return http.StatusBadRequest, map[string]any{
			"error":             "invalid_grant",
			"error_description": "AADSTS70008: code expired",
		}
	})
	c := newTestClient(ts)

	_, snap, err := c.AcquireByCode(context.Background(), exchange.CodeRequest{Code: "x", RedirectURI: redirectURI, Scopes: Scopes}, []byte(`{"version":1}`))
	require.Error(t, err)
	var retrieveErr *oauth2.RetrieveError
	assert.True(t, errors.As(err, &retrieveErr))
	assert.False(t, snap.Changed)
}

func TestAcquireSilent_RefreshesWithGivenScopes(t *testing.T) {
	idToken := mintIDToken(t, jwt.MapClaims{"oid": "oid-1", "tid": "tid-1", "preferred_username": "alex@contoso.com"})
	ts := newTokenServer(t, func(form url.Values) (int, map[string]any) {
		return http.StatusOK, map[string]any{
			"access_token":  "access-2",
			"refresh_token": "refresh-2",
			"expires_in":    600,
			"id_token":      idToken,
		}
	})
	c := newTestClient(ts)

	seed, err := loadSession(nil)
	require.NoError(t, err)
	seed.remember(&exchange.Account{HomeAccountID: "oid-1.tid-1", Username: "alex@contoso.com"}, "refresh-1")
	blob, err := json.Marshal(seed)
	require.NoError(t, err)

	result, snap, err := c.AcquireSilent(context.Background(), exchange.SilentRequest{
		HomeAccountID: "oid-1.tid-1",
		Scopes:        []string{"Calendars.Read"},
		ForceRefresh:  true,
	}, blob)
	require.NoError(t, err)

	form := ts.forms[0]
	assert.Equal(t, "refresh_token", form.Get("grant_type"))
	assert.Equal(t, "refresh-1", form.Get("refresh_token"))
	assert.Equal(t, "Calendars.Read", form.Get("scope"))

	assert.Equal(t, "access-2", result.AccessToken)
	assert.Equal(t, []string{"Calendars.Read"}, result.Scopes)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC), result.ExpiresOn)
	assert.Equal(t, "oid-1.tid-1", result.Account.HomeAccountID)

	assert.True(t, snap.Changed)
	session, err := loadSession(snap.Data)
	require.NoError(t, err)
	assert.Equal(t, "refresh-2", session.RefreshTokens["oid-1.tid-1"])
}

func TestAcquireSilent_UnknownAccount(t *testing.T) {
	ts := newTokenServer(t, func(url.Values) (int, map[string]any) {
		t.Fatal("token endpoint must not be called")
		return 0, nil
	})
	c := newTestClient(ts)

	_, snap, err := c.AcquireSilent(context.Background(), exchange.SilentRequest{HomeAccountID: "missing"}, []byte(`{"version":1,"accounts":{},"refresh_tokens":{}}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, calendar.ErrAccountNotFound)
	assert.False(t, snap.Changed)
}

func TestAcquireSilent_InvalidGrant(t *testing.T) {
	ts := newTokenServer(t, func(url.Values) (int, map[string]any) {
		return http.StatusBadRequest, map[string]any{"error": "invalid_grant", "error_description": "revoked"}
	})
	c := newTestClient(ts)

	seed, _ := loadSession(nil)
	seed.remember(&exchange.Account{HomeAccountID: "h"}, "rt")
	blob, _ := json.Marshal(seed)

	_, snap, err := c.AcquireSilent(context.Background(), exchange.SilentRequest{HomeAccountID: "h", Scopes: Scopes}, blob)
	var retrieveErr *oauth2.RetrieveError
	require.True(t, errors.As(err, &retrieveErr))
	assert.Equal(t, "invalid_grant", retrieveErr.ErrorCode)
	assert.False(t, snap.Changed)
}

func TestHomeAccountID_Fallbacks(t *testing.T) {
	claims := jwt.MapClaims{"oid": "o", "tid": "t", "sub": "s"}
	assert.Equal(t, "u.ut", homeAccountID(claims, encodeClientInfo("u", "ut")))
	assert.Equal(t, "o.t", homeAccountID(claims, "not-base64!"))
	assert.Equal(t, "s", homeAccountID(jwt.MapClaims{"sub": "s"}, ""))
}
