package outlook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pysugar/calsync/internal/auth/exchange"
	"github.com/pysugar/calsync/internal/calendar"
	"github.com/pysugar/calsync/internal/logging"
	"github.com/pysugar/calsync/internal/util"
	"golang.org/x/oauth2"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	ClientInfo   string `json:"client_info"`
	Scope        string `json:"scope"`
	ExpiresIn    int64  `json:"expires_in"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorURI         string `json:"error_uri"`
}

// AcquireSilent redeems the cached refresh token of the account keyed by
// req.HomeAccountID. A refresh is always performed against the token
// endpoint; no access token is served from the cache.
func (c *Client) AcquireSilent(ctx context.Context, req exchange.SilentRequest, cache []byte) (*exchange.Result, exchange.CacheSnapshot, error) {
	log := logging.For("oauth")

	session, err := loadSession(cache)
	if err != nil {
		return nil, unchanged(cache), err
	}

	account, ok := session.account(req.HomeAccountID)
	if !ok {
		log.Warn().
			Str("home_account_id", req.HomeAccountID).
			Strs("cached_accounts", session.homeAccountIDs()).
			Msg("account missing from token cache")
		return nil, unchanged(cache), fmt.Errorf("%w: %q", calendar.ErrAccountNotFound, req.HomeAccountID)
	}
	refreshToken := session.RefreshTokens[req.HomeAccountID]
	if refreshToken == "" {
		return nil, unchanged(cache), fmt.Errorf("no refresh token cached for account %q", req.HomeAccountID)
	}

	resp, err := c.refresh(ctx, refreshToken, req.Scopes)
	if err != nil {
		return nil, unchanged(cache), err
	}

	var expiry time.Time
	if resp.ExpiresIn > 0 {
		expiry = c.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	result, err := c.buildResult(*resp, expiry, req.Scopes, &account)
	if err != nil {
		return nil, unchanged(cache), err
	}

	// rotated refresh tokens replace the cached one
	session.remember(result.Account, resp.RefreshToken)
	snapshot, err := session.snapshot(cache)
	if err != nil {
		return nil, unchanged(cache), err
	}

	log.Debug().
		Str("home_account_id", req.HomeAccountID).
		Str("access_token", util.MaskSecret(result.AccessToken)).
		Bool("rotated", resp.RefreshToken != "" && resp.RefreshToken != refreshToken).
		Msg("token refreshed silently")
	return result, snapshot, nil
}

func (c *Client) refresh(ctx context.Context, refreshToken string, scopes []string) (*tokenResponse, error) {
	form := url.Values{
		"client_id":     {c.clientID},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"scope":         {strings.Join(scopes, " ")},
		"client_info":   {"1"},
	}
	if c.clientSecret != "" {
		form.Set("client_secret", c.clientSecret)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read refresh response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		retrieveErr := &oauth2.RetrieveError{Response: httpResp, Body: body}
		var e errorResponse
		if json.Unmarshal(body, &e) == nil {
			retrieveErr.ErrorCode = e.Error
			retrieveErr.ErrorDescription = e.ErrorDescription
			retrieveErr.ErrorURI = e.ErrorURI
		}
		logging.For("oauth").Warn().
			Int("status", httpResp.StatusCode).
			Str("body", util.TruncateBytes(body)).
			Msg("refresh rejected by token endpoint")
		return nil, retrieveErr
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse refresh response: %w", err)
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("refresh response carried no access_token")
	}
	return &resp, nil
}
