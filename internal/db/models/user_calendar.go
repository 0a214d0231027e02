package models

import "time"

// UserCalendar stores the token bundle for one (user, calendar type) pair.
// The (UserID, CalendarType) pair is the upsert key.
type UserCalendar struct {
	ID               string          `gorm:"primaryKey"` // UUID
	UserID           string          `gorm:"not null;uniqueIndex:idx_user_calendar_type"`
	CalendarType     string          `gorm:"not null;uniqueIndex:idx_user_calendar_type"` // outlook, google, apple
	AccessToken      string          `gorm:"type:text;not null"`
	RefreshToken     string          `gorm:"type:text"`
	TokenExpiry      time.Time       `gorm:"index"`
	Scopes           []string        `gorm:"serializer:json"`
	IntegrationEmail *string
	OutlookDetails   *OutlookAccount `gorm:"serializer:json"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// OutlookAccount is the JSON shape of the outlook_details column.
type OutlookAccount struct {
	AccountID      *string  `json:"account_id"`
	Username       *string  `json:"username"`
	Name           *string  `json:"name"`
	Environment    *string  `json:"environment"`
	TenantID       *string  `json:"tenant_id"`
	LocalAccountID *string  `json:"local_account_id"`
	HomeAccountID  *string  `json:"home_account_id"`
	AuthorityType  *string  `json:"authority_type"`
	TenantProfiles []string `json:"tenant_profiles"`
	IDTokenClaims  string   `json:"id_token_claims"`
	IDToken        *string  `json:"id_token"`
}
