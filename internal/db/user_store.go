package db

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/pysugar/calsync/internal/calendar"
	"github.com/pysugar/calsync/internal/db/models"
	"gorm.io/gorm"
)

// UserStore reads and updates application users.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// Get returns the user with the given id or calendar.ErrRecordNotFound.
func (s *UserStore) Get(ctx context.Context, id string) (*calendar.User, error) {
	var row models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, calendar.ErrRecordNotFound
		}
		return nil, err
	}
	return &calendar.User{ID: row.ID, Email: row.Email, HasSyncedCalendar: row.HasSyncedCalendar}, nil
}

// Create inserts a user with a fresh id.
func (s *UserStore) Create(ctx context.Context, email string) (*calendar.User, error) {
	row := models.User{
		ID:    uuid.New().String(),
		Email: strings.ToLower(strings.TrimSpace(email)),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	return &calendar.User{ID: row.ID, Email: row.Email}, nil
}

// MarkCalendarSynced sets has_synced_calendar for the user.
func (s *UserStore) MarkCalendarSynced(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("has_synced_calendar", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return calendar.ErrRecordNotFound
	}
	return nil
}
