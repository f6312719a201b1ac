package database

import (
	"example.com/autoparts/backoffice/config"
	"example.com/autoparts/backoffice/internal/models"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect establishes the write and read-only database connections, configures
// their pools and runs migrations on the write connection.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, *gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to write database")
	}

	readOnlyDB, err := gorm.Open(postgres.Open(cfg.ReadOnlyDSN), &gorm.Config{})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to read-only database")
	}

	// Auto-migrate only the write database
	if err := models.SetupModels(db); err != nil {
		return nil, nil, errors.Wrap(err, "failed to run migrations")
	}

	if err := configurePool(db, cfg.MaxOpenConns, cfg.MaxIdleConns, cfg); err != nil {
		return nil, nil, errors.Wrap(err, "failed to configure write pool")
	}

	// Higher limits for the read-only side, which serves listings and reports
	if err := configurePool(readOnlyDB, cfg.MaxOpenConns*2, cfg.MaxIdleConns*2, cfg); err != nil {
		return nil, nil, errors.Wrap(err, "failed to configure read-only pool")
	}

	return db, readOnlyDB, nil
}

func configurePool(db *gorm.DB, maxOpen, maxIdle int, cfg config.DatabaseConfig) error {
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get underlying DB connection")
	}

	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return nil
}
