package database

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"optionsledger/src/database/migrations"
	"optionsledger/src/model"
)

// InitMainDB opens the read/write ledger database and brings its schema up to
// date. The caller owns the returned handle and passes it to the repositories.
func InitMainDB(cfg Config) (*gorm.DB, error) {
	db, err := open(cfg, false)
	if err != nil {
		return nil, err
	}

	logrus.WithField("driver", db.Dialector.Name()).Info("[database] MainDB connection established")

	if err := Migrate(db); err != nil {
		return nil, err
	}

	logrus.Info("[database] MainDB migrations completed")

	return db, nil
}

// Migrate runs schema and data migrations on db.
func Migrate(db *gorm.DB) error {
	// Add here all models that belong to the ledger schema.
	if err := db.AutoMigrate(
		&model.Trade{},
		&model.HistoryEvent{},
		&migrations.DataMigration{},
	); err != nil {
		return fmt.Errorf("failed to run schema migrations: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("failed to run data migrations: %w", err)
	}

	return nil
}

// Close releases the connection pool behind db.
func Close(db *gorm.DB) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logrus.WithError(err).Warn("[database] failed to close connection pool")
	}
}
