package db

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/pysugar/calsync/internal/db/models"
	"github.com/pysugar/calsync/internal/logging"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sessionSecretKey = "session_secret"

// InitDB opens the SQLite database at dbPath and runs migrations.
func InitDB(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.UserCalendar{},
		&models.TokenCache{},
		&models.Config{},
	)
}

// EnsureSessionSecret returns the persisted session signing secret, generating
// and storing one on first run.
func EnsureSessionSecret(db *gorm.DB) (string, error) {
	var cfg models.Config
	err := db.Where("key = ?", sessionSecretKey).First(&cfg).Error
	if err == nil && cfg.Value != "" {
		return cfg.Value, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("load session secret: %w", err)
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session secret: %w", err)
	}
	secret := hex.EncodeToString(buf)

	if err := db.Save(&models.Config{Key: sessionSecretKey, Value: secret}).Error; err != nil {
		return "", fmt.Errorf("store session secret: %w", err)
	}
	logging.For("db").Info().Msg("generated new session signing secret")
	return secret, nil
}
