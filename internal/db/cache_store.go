package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/pysugar/calsync/internal/calendar"
	"github.com/pysugar/calsync/internal/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenCacheStore keeps one opaque session-cache blob per user.
type TokenCacheStore struct {
	db *gorm.DB
}

func NewTokenCacheStore(db *gorm.DB) *TokenCacheStore {
	return &TokenCacheStore{db: db}
}

// Load returns the user's cache blob or calendar.ErrRecordNotFound.
func (s *TokenCacheStore) Load(ctx context.Context, userID string) ([]byte, error) {
	var row models.TokenCache
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, calendar.ErrRecordNotFound
		}
		return nil, err
	}
	return []byte(row.CacheData), nil
}

// Save upserts the user's cache blob.
func (s *TokenCacheStore) Save(ctx context.Context, userID string, data []byte) error {
	row := &models.TokenCache{
		ID:        uuid.New().String(),
		UserID:    userID,
		CacheData: string(data),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"cache_data", "updated_at"}),
	}).Create(row).Error
}
