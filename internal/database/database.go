package database

import (
	"os"
	"path/filepath"
	"time"

	"github.com/mispartech/new-mispartechnologies-sub001/config"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/core/models"

	"github.com/glebarez/sqlite" // Pure Go
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlog "gorm.io/gorm/logger"
)

// Open connects to the SQLite database and runs migrations.
// The returned handle is passed explicitly to the components that need it.
func Open(cfg config.DBConfig) (*gorm.DB, error) {
	dbDir := filepath.Dir(cfg.File)
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		log.Errorf("Failed to create database directory '%s': %v", dbDir, err)
		return nil, err
	}

	// Route GORM logging through the configured logrus instance
	gormLogger := gormlog.New(
		log.StandardLogger(),
		gormlog.Config{
			SlowThreshold:             time.Second * 2,
			LogLevel:                  gormlog.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	log.Infof("Connecting to database: %s", cfg.File)
	db, err := gorm.Open(sqlite.Open(cfg.File), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		log.Errorf("Failed to connect to database '%s': %v", cfg.File, err)
		return nil, err
	}

	log.Info("Database connection established.")

	log.Info("Running database migrations...")
	if err := db.AutoMigrate(
		&models.TrialSession{},
		&models.Sighting{},
	); err != nil {
		log.Errorf("Database migration failed: %v", err)
		return nil, err
	}
	log.Info("Database migrations complete.")

	return db, nil
}
