package database

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// dialector picks the SQL backend named by cfg.Driver.
func dialector(cfg Config, readOnly bool) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverPostgres:
		dsn := cfg.DatabaseURLMain
		if readOnly && cfg.DatabaseURLReadOnly != "" {
			dsn = cfg.DatabaseURLReadOnly
		}
		return postgres.Open(dsn), nil
	case DriverSQLite, "":
		return sqlite.Open(sqliteDSN(cfg.SQLitePath, readOnly)), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
}

func sqliteDSN(path string, readOnly bool) string {
	if !readOnly || strings.Contains(path, "mode=") {
		return path
	}
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + "mode=ro"
	}
	return "file:" + path + "?mode=ro"
}

func open(cfg Config, readOnly bool) (*gorm.DB, error) {
	d, err := dialector(cfg, readOnly)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(d, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.LogLevel(cfg.GormLogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s database: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB from gorm: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if d.Name() == DriverSQLite {
		// sqlite allows a single writer
		maxOpen = 1
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	return db, nil
}
