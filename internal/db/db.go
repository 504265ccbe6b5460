package db

import (
	"fmt"
	"strings"

	"lotero/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB opens the store database. postgres:// and postgresql:// URLs go to
// postgres, anything else is handed to sqlite as a file DSN.
func InitDB(dsn string, debug ...bool) (*gorm.DB, error) {
	logLevel := logger.Warn
	if len(debug) > 0 && debug[0] {
		logLevel = logger.Info // Log SQL queries
	}

	cfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	}

	var (
		db  *gorm.DB
		err error
	)
	if isPostgres(dsn) {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
	} else {
		db, err = gorm.Open(sqlite.Open(dsn), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if !isPostgres(dsn) {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql handle: %w", err)
		}
		// one writer at a time; the unique index decides concurrent inserts
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

// Migrate creates or extends the store tables. Changes are additive only.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Prize{}, &models.ConfigEntry{}, &models.SyncLog{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Open is InitDB followed by Migrate.
func Open(dsn string, debug ...bool) (*gorm.DB, error) {
	db, err := InitDB(dsn, debug...)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}
