package database

import (
	"fmt"
	"strings"

	"github.com/goldenage/center-api/internal/config"
	"github.com/goldenage/center-api/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// DSN builds the sqlite connection string. _txlock=immediate makes every
// write transaction take the database lock at BEGIN, so concurrent
// registration transactions queue on the busy timeout instead of failing
// with SQLITE_BUSY after they have already read the activity row.
func DSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return fmt.Sprintf("%s?_busy_timeout=10000&_txlock=immediate", path)
}

func Connect(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(DSN(cfg.DatabasePath)), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the schema for every model.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Activity{},
		&models.Registration{},
		&models.RegistrationEvent{},
		&models.Survey{},
		&models.SurveyResponse{},
		&models.Message{},
		&models.MessageReply{},
		&models.APIKey{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
