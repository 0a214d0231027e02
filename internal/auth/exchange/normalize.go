package exchange

import (
	"encoding/json"
	"time"

	"github.com/pysugar/calsync/internal/calendar"
)

// normalize maps a provider result onto the stored credential shape. The
// record always replaces the previous one wholesale.
func normalize(kind calendar.ProviderKind, userID string, result *Result, requested []string, now time.Time) *calendar.CredentialRecord {
	expiry := result.ExpiresOn.UTC()
	if result.ExpiresOn.IsZero() {
		expiry = now.UTC().Add(calendar.DefaultTokenLifetime)
	}

	scopes := result.Scopes
	if len(scopes) == 0 {
		scopes = requested
	}

	rec := &calendar.CredentialRecord{
		UserID:           userID,
		Provider:         kind,
		AccessToken:      result.AccessToken,
		TokenExpiry:      expiry,
		Scopes:           append([]string(nil), scopes...),
		IntegrationEmail: integrationEmail(result.Account),
	}

	if kind == calendar.ProviderOutlook {
		rec.Details = outlookDetails(result.Account)
	}
	return rec
}

func integrationEmail(a *Account) string {
	if a == nil {
		return ""
	}
	if email, ok := a.IDTokenClaims["email"].(string); ok && email != "" {
		return email
	}
	return a.Username
}

func outlookDetails(a *Account) calendar.OutlookAccount {
	if a == nil {
		return calendar.OutlookAccount{TenantProfiles: []string{}, IDTokenClaims: calendar.EmptyClaims}
	}
	profiles := a.TenantProfiles
	if profiles == nil {
		profiles = []string{}
	}
	return calendar.OutlookAccount{
		AccountID:      a.HomeAccountID,
		Username:       a.Username,
		Name:           a.Name,
		Environment:    a.Environment,
		TenantID:       a.TenantID,
		LocalAccountID: a.LocalAccountID,
		HomeAccountID:  a.HomeAccountID,
		AuthorityType:  a.AuthorityType,
		TenantProfiles: profiles,
		IDTokenClaims:  claimsText(a.IDTokenClaims),
		IDToken:        a.IDToken,
	}
}

// claimsText serializes id_token claims, yielding "{}" when there are none.
func claimsText(claims map[string]any) string {
	if len(claims) == 0 {
		return calendar.EmptyClaims
	}
	data, err := json.Marshal(claims)
	if err != nil {
		return calendar.EmptyClaims
	}
	return string(data)
}
