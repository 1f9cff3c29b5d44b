package database

import (
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// InitReadOnlyDB opens the ledger for reporting. No migrations are run; on
// sqlite the file is opened with mode=ro, on postgres DATABASE_URL_READONLY is
// used when set.
func InitReadOnlyDB(cfg Config) (*gorm.DB, error) {
	db, err := open(cfg, true)
	if err != nil {
		return nil, err
	}

	logrus.WithField("driver", db.Dialector.Name()).Info("[database] ReadOnlyDB connection established")
	return db, nil
}
