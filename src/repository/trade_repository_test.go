package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"optionsledger/src/model"
)

// newTestDB opens a private in-memory sqlite database with the ledger schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return openTestDB(t, strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
}

func openTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open in memory db: %v", err)
	}

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&model.Trade{}, &model.HistoryEvent{}); err != nil {
		t.Fatalf("failed to automigrate: %v", err)
	}

	return db
}

func sampleTrade(ticker string, createdAt time.Time) model.Trade {
	return model.Trade{
		TickerSymbol:    ticker,
		Strategy:        "CSP",
		StartDate:       "2025-01-01",
		ExpirationDate:  "2025-02-01",
		ShareCount:      100,
		StrikePrice:     decimal.RequireFromString("200"),
		PremiumReceived: decimal.RequireFromString("500"),
		TotalPremium:    decimal.RequireFromString("500"),
		Commission:      decimal.RequireFromString("1.3"),
		Status:          model.TradeStatusOpen,
		Note:            "note, with \"quotes\"",
		CreatedAt:       createdAt,
	}
}

func countEvents(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&model.HistoryEvent{}).Count(&n).Error)
	return n
}

func TestTradeRepository_AddAndFind(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewTradeRepository(db)

	trade := sampleTrade("AAPL", time.Time{})
	ev := model.NewHistoryEvent(model.HistoryEventCreation, trade, trade.PremiumReceived)

	require.NoError(t, repo.Add(ctx, &trade, ev))
	require.NotEmpty(t, trade.ID)

	found, err := repo.FindByID(ctx, trade.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "AAPL", found.TickerSymbol)
	assert.True(t, found.TotalPremium.Equal(decimal.RequireFromString("500")))
	assert.True(t, found.Commission.Equal(decimal.RequireFromString("1.3")))
	assert.Nil(t, found.ClosePrice)
	assert.Equal(t, trade.Note, found.Note)

	events, err := NewHistoryRepository(db).List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, trade.ID, events[0].TradeID)
	assert.Equal(t, model.HistoryEventCreation, events[0].EventType)
	assert.False(t, events[0].EventAt.IsZero())
}

func TestTradeRepository_FindByIDMissing(t *testing.T) {
	repo := NewTradeRepository(newTestDB(t))

	found, err := repo.FindByID(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestTradeRepository_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewTradeRepository(newTestDB(t))
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	for i, ticker := range []string{"AAPL", "MSFT", "TSLA"} {
		trade := sampleTrade(ticker, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, repo.Add(ctx, &trade, model.NewHistoryEvent(model.HistoryEventCreation, trade, trade.PremiumReceived)))
	}

	trades, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, "TSLA", trades[0].TickerSymbol)
	assert.Equal(t, "AAPL", trades[2].TickerSymbol)
}

func TestTradeRepository_AddRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewTradeRepository(db)

	first := sampleTrade("AAPL", time.Time{})
	require.NoError(t, repo.Add(ctx, &first, model.NewHistoryEvent(model.HistoryEventCreation, first, first.PremiumReceived)))

	dup := sampleTrade("MSFT", time.Time{})
	dup.ID = first.ID
	err := repo.Add(ctx, &dup, model.NewHistoryEvent(model.HistoryEventCreation, dup, dup.PremiumReceived))
	require.Error(t, err)

	assert.EqualValues(t, 1, countEvents(t, db), "no event is written for a failed insert")
}

func TestTradeRepository_AddBatch(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewTradeRepository(db)

	trades := []model.Trade{sampleTrade("AAPL", time.Time{}), sampleTrade("MSFT", time.Time{})}
	events := make([]model.HistoryEvent, len(trades))
	for i, tr := range trades {
		events[i] = model.NewHistoryEvent(model.HistoryEventCreation, tr, tr.PremiumReceived)
	}

	require.NoError(t, repo.AddBatch(ctx, trades, events))

	for _, tr := range trades {
		assert.NotEmpty(t, tr.ID)
	}

	stored, err := NewHistoryRepository(db).List(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	ids := map[string]bool{trades[0].ID: true, trades[1].ID: true}
	for _, ev := range stored {
		assert.True(t, ids[ev.TradeID], "event %d points at an unknown trade %q", ev.ID, ev.TradeID)
	}

	err = repo.AddBatch(ctx, trades, events[:1])
	require.Error(t, err)
}

func TestTradeRepository_Update(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewTradeRepository(db)

	trade := sampleTrade("AAPL", time.Time{})
	require.NoError(t, repo.Add(ctx, &trade, model.NewHistoryEvent(model.HistoryEventCreation, trade, trade.PremiumReceived)))

	price := decimal.RequireFromString("201.25")
	trade.Status = model.TradeStatusClosed
	trade.CloseDate = "2025-01-20"
	trade.ClosePrice = &price
	trade.ClosingCost = decimal.RequireFromString("30")
	require.NoError(t, repo.Update(ctx, &trade, model.NewHistoryEvent(model.HistoryEventClose, trade, trade.TotalPremium)))

	found, err := repo.FindByID(ctx, trade.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, model.TradeStatusClosed, found.Status)
	assert.Equal(t, "2025-01-20", found.CloseDate)
	require.NotNil(t, found.ClosePrice)
	assert.True(t, found.ClosePrice.Equal(price))
	assert.True(t, found.ClosingCost.Equal(decimal.RequireFromString("30")))

	events, err := NewHistoryRepository(db).List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.HistoryEventClose, events[0].EventType, "latest event first")
}

func TestTradeRepository_UpdateMissing(t *testing.T) {
	db := newTestDB(t)
	repo := NewTradeRepository(db)

	ghost := sampleTrade("AAPL", time.Time{})
	ghost.ID = "ghost"

	err := repo.Update(context.Background(), &ghost, model.NewHistoryEvent(model.HistoryEventEdit, ghost, ghost.PremiumReceived))
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	assert.EqualValues(t, 0, countEvents(t, db))

	var n int64
	require.NoError(t, db.Model(&model.Trade{}).Count(&n).Error)
	assert.EqualValues(t, 0, n, "update must not insert")
}

func TestTradeRepository_Remove(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewTradeRepository(db)

	trade := sampleTrade("AAPL", time.Time{})
	require.NoError(t, repo.Add(ctx, &trade, model.NewHistoryEvent(model.HistoryEventCreation, trade, trade.PremiumReceived)))

	require.NoError(t, repo.Remove(ctx, trade.ID, model.NewHistoryEvent(model.HistoryEventDeletion, trade, trade.TotalPremium)))

	found, err := repo.FindByID(ctx, trade.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
	assert.EqualValues(t, 2, countEvents(t, db), "creation and deletion events are both kept")

	err = repo.Remove(ctx, trade.ID, model.NewHistoryEvent(model.HistoryEventDeletion, trade, trade.TotalPremium))
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	assert.EqualValues(t, 2, countEvents(t, db))
}

func TestTradeRepository_Subscribe(t *testing.T) {
	ctx := context.Background()
	repo := NewTradeRepository(newTestDB(t))

	var calls int32
	unsubscribe := repo.Subscribe(func() { atomic.AddInt32(&calls, 1) })

	trade := sampleTrade("AAPL", time.Time{})
	require.NoError(t, repo.Add(ctx, &trade, model.NewHistoryEvent(model.HistoryEventCreation, trade, trade.PremiumReceived)))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	// failed writes do not notify
	_ = repo.Remove(ctx, "missing", model.HistoryEvent{EventType: model.HistoryEventDeletion})
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	unsubscribe()
	unsubscribe()
	require.NoError(t, repo.Remove(ctx, trade.ID, model.NewHistoryEvent(model.HistoryEventDeletion, trade, trade.TotalPremium)))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestTradeRepository_WithDB(t *testing.T) {
	ctx := context.Background()
	primary := NewTradeRepository(newTestDB(t))

	var calls int32
	primary.Subscribe(func() { atomic.AddInt32(&calls, 1) })

	other := primary.WithDB(openTestDB(t, "TestTradeRepository_WithDB_other"))

	trade := sampleTrade("AAPL", time.Time{})
	require.NoError(t, other.Add(ctx, &trade, model.NewHistoryEvent(model.HistoryEventCreation, trade, trade.PremiumReceived)))

	onOther, err := other.List(ctx)
	require.NoError(t, err)
	assert.Len(t, onOther, 1)

	onPrimary, err := primary.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, onPrimary)
	assert.EqualValues(t, 0, atomic.LoadInt32(&calls), "subscribers are not carried over")
}
