package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pysugar/calsync/internal/calendar"
	"github.com/pysugar/calsync/internal/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CredentialStore persists CredentialRecords in the user_calendars table.
type CredentialStore struct {
	db *gorm.DB
}

func NewCredentialStore(db *gorm.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// Get returns the record for (userID, kind) or calendar.ErrRecordNotFound.
func (s *CredentialStore) Get(ctx context.Context, userID string, kind calendar.ProviderKind) (*calendar.CredentialRecord, error) {
	var row models.UserCalendar
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND calendar_type = ?", userID, string(kind)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, calendar.ErrRecordNotFound
		}
		return nil, err
	}
	return toCredentialRecord(&row), nil
}

// Upsert writes rec keyed by (user_id, calendar_type), replacing every column
// of an existing row.
func (s *CredentialStore) Upsert(ctx context.Context, rec *calendar.CredentialRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	row := fromCredentialRecord(rec)
	row.ID = uuid.New().String()

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "calendar_type"}},
		UpdateAll: true,
	}).Create(row).Error
}

// ListExpiring returns records whose token expires before the given time.
func (s *CredentialStore) ListExpiring(ctx context.Context, before time.Time) ([]*calendar.CredentialRecord, error) {
	var rows []models.UserCalendar
	if err := s.db.WithContext(ctx).
		Where("token_expiry < ?", before.UTC()).
		Order("token_expiry ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]*calendar.CredentialRecord, 0, len(rows))
	for i := range rows {
		records = append(records, toCredentialRecord(&rows[i]))
	}
	return records, nil
}

func toCredentialRecord(row *models.UserCalendar) *calendar.CredentialRecord {
	rec := &calendar.CredentialRecord{
		UserID:           row.UserID,
		Provider:         calendar.ProviderKind(row.CalendarType),
		AccessToken:      row.AccessToken,
		RefreshToken:     row.RefreshToken,
		TokenExpiry:      row.TokenExpiry.UTC(),
		Scopes:           row.Scopes,
		IntegrationEmail: deref(row.IntegrationEmail),
	}
	if rec.Provider == calendar.ProviderOutlook && row.OutlookDetails != nil {
		d := row.OutlookDetails
		rec.Details = calendar.OutlookAccount{
			AccountID:      deref(d.AccountID),
			Username:       deref(d.Username),
			Name:           deref(d.Name),
			Environment:    deref(d.Environment),
			TenantID:       deref(d.TenantID),
			LocalAccountID: deref(d.LocalAccountID),
			HomeAccountID:  deref(d.HomeAccountID),
			AuthorityType:  deref(d.AuthorityType),
			TenantProfiles: d.TenantProfiles,
			IDTokenClaims:  d.IDTokenClaims,
			IDToken:        deref(d.IDToken),
		}
	}
	return rec
}

func fromCredentialRecord(rec *calendar.CredentialRecord) *models.UserCalendar {
	row := &models.UserCalendar{
		UserID:           rec.UserID,
		CalendarType:     string(rec.Provider),
		AccessToken:      rec.AccessToken,
		RefreshToken:     rec.RefreshToken,
		TokenExpiry:      rec.TokenExpiry.UTC(),
		Scopes:           rec.Scopes,
		IntegrationEmail: ref(rec.IntegrationEmail),
	}
	if row.Scopes == nil {
		row.Scopes = []string{}
	}
	if d, ok := rec.Details.(calendar.OutlookAccount); ok {
		claims := d.IDTokenClaims
		if claims == "" {
			claims = calendar.EmptyClaims
		}
		profiles := d.TenantProfiles
		if profiles == nil {
			profiles = []string{}
		}
		row.OutlookDetails = &models.OutlookAccount{
			AccountID:      ref(d.AccountID),
			Username:       ref(d.Username),
			Name:           ref(d.Name),
			Environment:    ref(d.Environment),
			TenantID:       ref(d.TenantID),
			LocalAccountID: ref(d.LocalAccountID),
			HomeAccountID:  ref(d.HomeAccountID),
			AuthorityType:  ref(d.AuthorityType),
			TenantProfiles: profiles,
			IDTokenClaims:  claims,
			IDToken:        ref(d.IDToken),
		}
	}
	return row
}

// ref maps "" to a NULL column.
func ref(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
