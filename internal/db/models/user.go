package models

import "time"

// User is an application account that calendar credentials are scoped to.
type User struct {
	ID                string `gorm:"primaryKey"` // UUID
	Email             string `gorm:"uniqueIndex"`
	HasSyncedCalendar bool   `gorm:"default:false"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
