package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"optionsledger/src/model"
)

// HistoryRepository reads and appends the audit log. Events are never
// updated or deleted.
type HistoryRepository struct {
	db *gorm.DB
}

var _ HistoryStore = (*HistoryRepository)(nil)

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Append stores a single event outside any trade write. EventAt is assigned
// when empty.
func (r *HistoryRepository) Append(ctx context.Context, event *model.HistoryEvent) error {
	logger.WithFields(map[string]interface{}{
		"repo":       "HistoryRepository",
		"op":         "Append",
		"trade_id":   event.TradeID,
		"event_type": event.EventType,
	}).Debug("Appending history event")

	if err := appendEvent(r.db.WithContext(ctx), event); err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "HistoryRepository",
			"op":   "Append",
		}).WithError(err).Error("Failed to append history event")

		return err
	}

	return nil
}

// List returns every event, most recent first.
func (r *HistoryRepository) List(ctx context.Context) ([]model.HistoryEvent, error) {
	var events []model.HistoryEvent

	err := r.db.WithContext(ctx).
		Order("event_at DESC, id DESC").
		Find(&events).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "HistoryRepository",
			"op":   "List",
		}).WithError(err).Error("Failed to list history events")

		return nil, err
	}

	return events, nil
}
