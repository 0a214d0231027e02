package models

import "time"

// TokenCache holds the provider library's serialized session cache for a user.
// The application never interprets CacheData.
type TokenCache struct {
	ID        string `gorm:"primaryKey"` // UUID
	UserID    string `gorm:"not null;uniqueIndex"`
	CacheData string `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
