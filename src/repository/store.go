package repository

import (
	"context"

	"optionsledger/src/model"
)

// TradeStore is the persistence boundary of the ledger. Every write carries
// the history event(s) that must be appended in the same transaction.
type TradeStore interface {
	List(ctx context.Context) ([]model.Trade, error)
	FindByID(ctx context.Context, id string) (*model.Trade, error)
	Add(ctx context.Context, trade *model.Trade, event model.HistoryEvent) error
	AddBatch(ctx context.Context, trades []model.Trade, events []model.HistoryEvent) error
	Update(ctx context.Context, trade *model.Trade, event model.HistoryEvent) error
	Remove(ctx context.Context, id string, event model.HistoryEvent) error
	// Subscribe registers fn to be called after every committed write and
	// returns a function that removes it.
	Subscribe(fn func()) (unsubscribe func())
}

// HistoryStore reads and appends the audit log.
type HistoryStore interface {
	Append(ctx context.Context, event *model.HistoryEvent) error
	List(ctx context.Context) ([]model.HistoryEvent, error)
}
