package calendar

import (
	"fmt"
	"time"
)

// DefaultTokenLifetime is applied when the provider omits an expiry.
const DefaultTokenLifetime = 3600 * time.Second

// EmptyClaims is stored in place of absent id_token claims so consumers always
// receive a JSON string.
const EmptyClaims = "{}"

// User is the minimal identity that scopes credential records.
type User struct {
	ID                string
	Email             string
	HasSyncedCalendar bool
}

// CredentialRecord is the application-facing token bundle for one
// (user, provider) pair. It is always written whole.
type CredentialRecord struct {
	UserID   string
	Provider ProviderKind

	AccessToken string
	// RefreshToken is a compatibility placeholder. Refresh capability lives in
	// the provider's opaque session cache, so this is usually empty.
	RefreshToken string
	TokenExpiry  time.Time
	Scopes       []string

	// IntegrationEmail is empty when neither a claim nor a username was available.
	IntegrationEmail string

	Details AccountDetails
}

// Validate checks the record identity and that the details variant matches
// the provider.
func (r *CredentialRecord) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("credential record: empty user id")
	}
	if !r.Provider.Valid() {
		return fmt.Errorf("credential record: %w: %q", ErrUnsupportedProvider, r.Provider)
	}
	if r.AccessToken == "" {
		return fmt.Errorf("credential record: empty access token")
	}
	if r.Details != nil && r.Details.Provider() != r.Provider {
		return fmt.Errorf("credential record: %s details attached to %s credential", r.Details.Provider(), r.Provider)
	}
	return nil
}

// HomeAccountID returns the provider account key used to find the account in
// the opaque cache, or "" when the record carries none.
func (r *CredentialRecord) HomeAccountID() string {
	if d, ok := r.Details.(OutlookAccount); ok {
		return d.AccountID
	}
	return ""
}

// AccountDetails is the provider-specific account metadata. The concrete type
// is selected by provider kind; only OutlookAccount is populated today.
type AccountDetails interface {
	Provider() ProviderKind
	accountDetails()
}

// OutlookAccount mirrors the account information returned by the Microsoft
// identity platform.
type OutlookAccount struct {
	AccountID      string   `json:"account_id"`
	Username       string   `json:"username"`
	Name           string   `json:"name"`
	Environment    string   `json:"environment"`
	TenantID       string   `json:"tenant_id"`
	LocalAccountID string   `json:"local_account_id"`
	HomeAccountID  string   `json:"home_account_id"`
	AuthorityType  string   `json:"authority_type"`
	TenantProfiles []string `json:"tenant_profiles"`
	// IDTokenClaims is the raw claim set serialized as JSON text, EmptyClaims when absent.
	IDTokenClaims string `json:"id_token_claims"`
	IDToken       string `json:"id_token"`
}

func (OutlookAccount) Provider() ProviderKind { return ProviderOutlook }
func (OutlookAccount) accountDetails()        {}

// GoogleAccount is reserved for the Google provider.
type GoogleAccount struct{}

func (GoogleAccount) Provider() ProviderKind { return ProviderGoogle }
func (GoogleAccount) accountDetails()        {}

// AppleAccount is reserved for the Apple provider.
type AppleAccount struct{}

func (AppleAccount) Provider() ProviderKind { return ProviderApple }
func (AppleAccount) accountDetails()        {}
