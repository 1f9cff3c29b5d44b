package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"optionsledger/src/model"
)

// TradeRepository handles read/write operations for trades and appends their
// history events in the same transaction.
type TradeRepository struct {
	db *gorm.DB

	mu          sync.RWMutex
	subscribers map[int]func()
	nextSubID   int
}

var _ TradeStore = (*TradeRepository)(nil)

// NewTradeRepository creates a repository on db. The backend (postgres or
// sqlite) is whatever db was opened with.
func NewTradeRepository(db *gorm.DB) *TradeRepository {
	logger.WithField("component", "TradeRepository").
		Info("Creating new TradeRepository")

	return &TradeRepository{
		db:          db,
		subscribers: make(map[int]func()),
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Subscribers are not carried over.
func (r *TradeRepository) WithDB(db *gorm.DB) *TradeRepository {
	logger.WithField("component", "TradeRepository").
		Debug("Creating TradeRepository with custom DB instance")

	return NewTradeRepository(db)
}

// ---------------------------------------------------
// Reads
// ---------------------------------------------------

// List returns every trade, newest first.
func (r *TradeRepository) List(ctx context.Context) ([]model.Trade, error) {
	logger.WithFields(map[string]interface{}{
		"repo": "TradeRepository",
		"op":   "List",
	}).Debug("Listing trades")

	var trades []model.Trade

	err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Find(&trades).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "TradeRepository",
			"op":   "List",
		}).WithError(err).Error("Failed to list trades")

		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":  "TradeRepository",
		"op":    "List",
		"count": len(trades),
	}).Debug("Trades listed successfully")

	return trades, nil
}

// FindByID fetches a single trade.
// Returns (nil, nil) if the trade is not found.
func (r *TradeRepository) FindByID(ctx context.Context, id string) (*model.Trade, error) {
	logger.WithFields(map[string]interface{}{
		"repo": "TradeRepository",
		"op":   "FindByID",
		"id":   id,
	}).Debug("Fetching trade by ID")

	var trade model.Trade

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&trade).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo": "TradeRepository",
				"op":   "FindByID",
				"id":   id,
			}).Info("Trade not found")

			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo": "TradeRepository",
			"op":   "FindByID",
			"id":   id,
		}).WithError(err).Error("Failed to fetch trade by ID")

		return nil, err
	}

	return &trade, nil
}

// ---------------------------------------------------
// Writes
// ---------------------------------------------------

// Add inserts a trade and its creation event. The trade gets its generated ID
// and timestamps.
func (r *TradeRepository) Add(ctx context.Context, trade *model.Trade, event model.HistoryEvent) error {
	logger.WithFields(map[string]interface{}{
		"repo":   "TradeRepository",
		"op":     "Add",
		"ticker": trade.TickerSymbol,
	}).Debug("Creating new trade")

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(trade).Error; err != nil {
			return err
		}
		event.TradeID = trade.ID
		return appendEvent(tx, &event)
	})
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "TradeRepository",
			"op":     "Add",
			"ticker": trade.TickerSymbol,
		}).WithError(err).Error("Failed to create trade")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":     "TradeRepository",
		"op":       "Add",
		"trade_id": trade.ID,
	}).Info("Trade created successfully")

	r.notify()
	return nil
}

// AddBatch inserts trades and events[i] for trades[i] in one transaction.
// Nothing is written if any insert fails.
func (r *TradeRepository) AddBatch(ctx context.Context, trades []model.Trade, events []model.HistoryEvent) error {
	if len(trades) != len(events) {
		return fmt.Errorf("add batch: %d trades but %d events", len(trades), len(events))
	}
	if len(trades) == 0 {
		return nil
	}

	logger.WithFields(map[string]interface{}{
		"repo":  "TradeRepository",
		"op":    "AddBatch",
		"count": len(trades),
	}).Debug("Creating trades in batch")

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(&trades, 100).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		for i := range events {
			events[i].TradeID = trades[i].ID
			if events[i].EventAt.IsZero() {
				events[i].EventAt = now
			}
		}
		return tx.CreateInBatches(&events, 100).Error
	})
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "TradeRepository",
			"op":    "AddBatch",
			"count": len(trades),
		}).WithError(err).Error("Failed to create trades in batch")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":  "TradeRepository",
		"op":    "AddBatch",
		"count": len(trades),
	}).Info("Trades created successfully")

	r.notify()
	return nil
}

// Update replaces the stored trade with the same ID and appends event.
// Returns gorm.ErrRecordNotFound if the trade does not exist.
func (r *TradeRepository) Update(ctx context.Context, trade *model.Trade, event model.HistoryEvent) error {
	logger.WithFields(map[string]interface{}{
		"repo":       "TradeRepository",
		"op":         "Update",
		"trade_id":   trade.ID,
		"event_type": event.EventType,
	}).Debug("Updating trade")

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Trade{}).Where("id = ?", trade.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}

		if err := tx.Save(trade).Error; err != nil {
			return err
		}
		event.TradeID = trade.ID
		return appendEvent(tx, &event)
	})
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "TradeRepository",
			"op":       "Update",
			"trade_id": trade.ID,
		}).WithError(err).Error("Failed to update trade")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":       "TradeRepository",
		"op":         "Update",
		"trade_id":   trade.ID,
		"event_type": event.EventType,
	}).Info("Trade updated successfully")

	r.notify()
	return nil
}

// Remove deletes the trade and appends its deletion event. Earlier events of
// the trade are kept.
// Returns gorm.ErrRecordNotFound if the trade does not exist.
func (r *TradeRepository) Remove(ctx context.Context, id string, event model.HistoryEvent) error {
	logger.WithFields(map[string]interface{}{
		"repo":     "TradeRepository",
		"op":       "Remove",
		"trade_id": id,
	}).Debug("Deleting trade")

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&model.Trade{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		event.TradeID = id
		return appendEvent(tx, &event)
	})
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "TradeRepository",
			"op":       "Remove",
			"trade_id": id,
		}).WithError(err).Error("Failed to delete trade")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":     "TradeRepository",
		"op":       "Remove",
		"trade_id": id,
	}).Info("Trade deleted successfully")

	r.notify()
	return nil
}

// ---------------------------------------------------
// Change notification
// ---------------------------------------------------

func (r *TradeRepository) Subscribe(fn func()) func() {
	r.mu.Lock()
	id := r.nextSubID
	r.nextSubID++
	r.subscribers[id] = fn
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subscribers, id)
			r.mu.Unlock()
		})
	}
}

func (r *TradeRepository) notify() {
	r.mu.RLock()
	fns := make([]func(), 0, len(r.subscribers))
	for _, fn := range r.subscribers {
		fns = append(fns, fn)
	}
	r.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

func appendEvent(tx *gorm.DB, event *model.HistoryEvent) error {
	if event.EventAt.IsZero() {
		event.EventAt = time.Now().UTC()
	}
	return tx.Create(event).Error
}
