package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// HistoryEventType names the lifecycle action an event records.
type HistoryEventType string

const (
	HistoryEventCreation HistoryEventType = "creation"
	HistoryEventEdit     HistoryEventType = "edit"
	HistoryEventRoll     HistoryEventType = "roll"
	HistoryEventClose    HistoryEventType = "close"
	HistoryEventDeletion HistoryEventType = "deletion"
)

// HistoryEvent is an append-only audit entry written once per lifecycle
// operation. Values are a snapshot at the time of the event; deleting the
// trade does not remove its events, so TradeID carries no foreign key.
type HistoryEvent struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	TradeID      string           `gorm:"size:36;index" json:"trade_id"`
	EventType    HistoryEventType `gorm:"size:20;not null;index" json:"event_type"`
	TickerSymbol string           `gorm:"size:20;index" json:"ticker_symbol"`

	Premium     decimal.Decimal `gorm:"type:numeric" json:"premium"` // incremental on roll, cumulative on close
	Commission  decimal.Decimal `gorm:"type:numeric" json:"commission"`
	ClosingCost decimal.Decimal `gorm:"type:numeric" json:"closing_cost"`
	StrikePrice decimal.Decimal `gorm:"type:numeric" json:"strike_price"`
	Status      TradeStatus     `gorm:"size:20" json:"status"`
	Note        string          `gorm:"type:text" json:"note,omitempty"`

	// EventAt is assigned by the storage layer when the event is appended.
	EventAt time.Time `gorm:"not null;index" json:"event_at"`
}

// TableName allows you to control the exact table name for history events.
func (HistoryEvent) TableName() string {
	return "history_events"
}

// NewHistoryEvent snapshots t into an event of the given type.
func NewHistoryEvent(eventType HistoryEventType, t Trade, premium decimal.Decimal) HistoryEvent {
	return HistoryEvent{
		TradeID:      t.ID,
		EventType:    eventType,
		TickerSymbol: t.TickerSymbol,
		Premium:      premium,
		Commission:   t.Commission,
		ClosingCost:  t.ClosingCost,
		StrikePrice:  t.StrikePrice,
		Status:       t.Status,
		Note:         t.Note,
	}
}
