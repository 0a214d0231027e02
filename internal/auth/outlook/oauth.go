// Package outlook implements the Microsoft identity platform side of the
// calendar connection: authorization URLs, code redemption and refresh.
package outlook

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pysugar/calsync/internal/auth/exchange"
	"github.com/pysugar/calsync/internal/logging"
	"github.com/pysugar/calsync/internal/util"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

// Scopes requested for calendar access. offline_access makes the grant
// refresh-capable.
var Scopes = []string{
	"openid",
	"profile",
	"Calendars.Read",
	"Calendars.ReadWrite",
	"email",
	"user.read",
	"offline_access",
}

const (
	defaultTenant = "common"
	authorityType = "MSSTS"
)

// Config configures a Client. Endpoint defaults to the Azure AD v2 endpoint
// for Tenant.
type Config struct {
	ClientID     string
	ClientSecret string
	Tenant       string
	Endpoint     oauth2.Endpoint
	HTTPClient   *http.Client
}

// Client talks to the Microsoft token endpoint and owns the session cache
// format.
type Client struct {
	clientID     string
	clientSecret string
	endpoint     oauth2.Endpoint
	environment  string
	httpClient   *http.Client
	now          func() time.Time
}

var _ exchange.Provider = (*Client)(nil)

func NewClient(cfg Config) *Client {
	tenant := strings.TrimSpace(cfg.Tenant)
	if tenant == "" {
		tenant = defaultTenant
	}
	endpoint := cfg.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = microsoft.AzureADEndpoint(tenant)
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	environment := "login.microsoftonline.com"
	if u, err := url.Parse(endpoint.AuthURL); err == nil && u.Host != "" {
		environment = u.Host
	}

	return &Client{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		endpoint:     endpoint,
		environment:  environment,
		httpClient:   httpClient,
		now:          time.Now,
	}
}

func (c *Client) Scopes() []string {
	return append([]string(nil), Scopes...)
}

func (c *Client) oauthConfig(redirectURI string, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Endpoint:     c.endpoint,
		RedirectURL:  redirectURI,
		Scopes:       scopes,
	}
}

// AuthCodeURL builds the consent URL. Consent is always forced so the grant
// carries a fresh refresh token. When the cache already holds an account its
// username is passed as login_hint.
func (c *Client) AuthCodeURL(ctx context.Context, req exchange.AuthRequest, cache []byte) (string, exchange.CacheSnapshot, error) {
	session, err := loadSession(cache)
	if err != nil {
		return "", unchanged(cache), err
	}

	opts := []oauth2.AuthCodeOption{
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("response_mode", "query"),
		oauth2.SetAuthURLParam("access", "offline"),
		oauth2.SetAuthURLParam("client_info", "1"),
	}
	if hint := session.loginHint(); hint != "" {
		opts = append(opts, oauth2.SetAuthURLParam("login_hint", hint))
	}

	return c.oauthConfig(req.RedirectURI, req.Scopes).AuthCodeURL(req.State, opts...), unchanged(cache), nil
}

// AcquireByCode redeems an authorization code. The redirect URI and scopes
// must match the ones used to build the authorization URL.
func (c *Client) AcquireByCode(ctx context.Context, req exchange.CodeRequest, cache []byte) (*exchange.Result, exchange.CacheSnapshot, error) {
	log := logging.For("oauth")

	session, err := loadSession(cache)
	if err != nil {
		return nil, unchanged(cache), err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.oauthConfig(req.RedirectURI, req.Scopes).Exchange(ctx, req.Code,
		oauth2.SetAuthURLParam("scope", strings.Join(req.Scopes, " ")),
	)
	if err != nil {
		log.Warn().Err(err).Msg("authorization code redemption rejected")
		return nil, unchanged(cache), fmt.Errorf("redeem authorization code: %w", err)
	}

	resp := tokenResponse{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		IDToken:      extraString(tok, "id_token"),
		ClientInfo:   extraString(tok, "client_info"),
		Scope:        extraString(tok, "scope"),
	}
	result, err := c.buildResult(resp, tok.Expiry, req.Scopes, nil)
	if err != nil {
		return nil, unchanged(cache), err
	}

	session.remember(result.Account, resp.RefreshToken)
	snapshot, err := session.snapshot(cache)
	if err != nil {
		return nil, unchanged(cache), err
	}

	log.Debug().
		Str("home_account_id", homeID(result.Account)).
		Str("access_token", util.MaskSecret(result.AccessToken)).
		Bool("cache_changed", snapshot.Changed).
		Msg("authorization code redeemed")
	return result, snapshot, nil
}

// buildResult turns a token response into a Result. previous supplies
// account fields when the response carries no id_token.
func (c *Client) buildResult(resp tokenResponse, expiry time.Time, requested []string, previous *cachedAccount) (*exchange.Result, error) {
	result := &exchange.Result{
		AccessToken: resp.AccessToken,
		ExpiresOn:   expiry,
		Scopes:      parseScopes(resp.Scope, requested),
	}

	idToken := resp.IDToken
	if idToken == "" && previous != nil {
		idToken = previous.IDToken
	}
	if idToken == "" {
		if previous != nil {
			result.Account = previous.toAccount(nil)
		}
		return result, nil
	}

	claims, err := parseIDToken(idToken)
	if err != nil {
		return nil, err
	}
	account := accountFromClaims(claims, resp.ClientInfo, c.environment)
	if previous != nil {
		// the cache key of an account never moves
		account.HomeAccountID = previous.HomeAccountID
	}
	account.IDToken = idToken
	result.Account = account
	return result, nil
}

func extraString(tok *oauth2.Token, key string) string {
	if v, ok := tok.Extra(key).(string); ok {
		return v
	}
	return ""
}

// parseScopes returns the granted scopes, falling back to the requested set
// when the response omits them.
func parseScopes(granted string, requested []string) []string {
	fields := strings.Fields(granted)
	if len(fields) == 0 {
		return append([]string(nil), requested...)
	}
	return fields
}

func homeID(a *exchange.Account) string {
	if a == nil {
		return ""
	}
	return a.HomeAccountID
}
