package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TradeStatus is the lifecycle state of a trade.
type TradeStatus string

const (
	TradeStatusOpen      TradeStatus = "open"
	TradeStatusClosed    TradeStatus = "closed"
	TradeStatusRolled    TradeStatus = "rolled"
	TradeStatusExpired   TradeStatus = "expired"
	TradeStatusCancelled TradeStatus = "cancelled"
)

// DateLayout is the ISO 8601 calendar date format used for every trade date.
const DateLayout = "2006-01-02"

// Valid reports whether s is one of the known statuses.
func (s TradeStatus) Valid() bool {
	switch s {
	case TradeStatusOpen, TradeStatusClosed, TradeStatusRolled, TradeStatusExpired, TradeStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no lifecycle operation may leave this status
// (edit and delete excepted).
func (s TradeStatus) Terminal() bool {
	return s == TradeStatusClosed || s == TradeStatusExpired || s == TradeStatusCancelled
}

// Trade is a single option position recorded in the ledger. A roll keeps the
// same trade and moves it to the new leg.
type Trade struct {
	ID             string `gorm:"primaryKey;size:36" json:"id,omitempty"`
	TickerSymbol   string `gorm:"size:20;not null;index" json:"ticker_symbol"`
	Strategy       string `gorm:"size:100" json:"strategy"`
	StartDate      string `gorm:"size:10" json:"start_date,omitempty"`
	ExpirationDate string `gorm:"size:10" json:"expiration_date,omitempty"`
	CloseDate      string `gorm:"size:10" json:"close_date,omitempty"`

	ShareCount      int             `gorm:"not null" json:"share_count"`
	StrikePrice     decimal.Decimal `gorm:"type:numeric" json:"strike_price"`
	PremiumReceived decimal.Decimal `gorm:"type:numeric" json:"premium_received"` // current leg only
	TotalPremium    decimal.Decimal `gorm:"type:numeric" json:"total_premium"`    // running sum across rolls
	Commission      decimal.Decimal `gorm:"type:numeric" json:"commission"`
	ClosingCost     decimal.Decimal `gorm:"type:numeric" json:"closing_cost"`

	// ClosePrice is the underlying price noted when the position was closed.
	ClosePrice *decimal.Decimal `gorm:"type:numeric" json:"close_price,omitempty"`

	Status TradeStatus `gorm:"size:20;not null;default:open" json:"status"`
	Note   string      `gorm:"type:text" json:"note,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName allows you to control the exact table name for trades.
func (Trade) TableName() string {
	return "trades"
}

// BeforeCreate assigns the opaque identifier of a new trade.
func (t *Trade) BeforeCreate(_ *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// CapitalAtRisk is shares x strike. It is always derived, never stored.
func (t Trade) CapitalAtRisk() decimal.Decimal {
	return decimal.NewFromInt(int64(t.ShareCount)).Mul(t.StrikePrice)
}

// Costs is commission plus closing cost.
func (t Trade) Costs() decimal.Decimal {
	return t.Commission.Add(t.ClosingCost)
}

// CumulativePremium prefers the running total and falls back to the current
// leg when the total was never recorded.
func (t Trade) CumulativePremium() decimal.Decimal {
	if t.TotalPremium.IsZero() {
		return t.PremiumReceived
	}
	return t.TotalPremium
}
