// Package lifecycle holds the pure state transitions of a trade. Every
// operation returns the new trade state together with the history event that
// must be appended with it; nothing here touches storage.
package lifecycle

import (
	"github.com/shopspring/decimal"

	"optionsledger/src/mapper"
	"optionsledger/src/model"
)

// RollInput describes the incoming leg of a roll.
type RollInput struct {
	StartDate      string          `json:"start_date"`
	ExpirationDate string          `json:"expiration_date"`
	StrikePrice    decimal.Decimal `json:"strike_price"`
	Premium        decimal.Decimal `json:"premium"`
	Commission     decimal.Decimal `json:"commission"`
	ClosingCost    decimal.Decimal `json:"closing_cost"`
	// EffectiveDate closes the previous leg; defaults to StartDate.
	EffectiveDate string `json:"effective_date,omitempty"`
	Note          string `json:"note,omitempty"`
}

// CloseInput finishes a trade. Status defaults to closed; expired and
// cancelled are the other terminal outcomes.
type CloseInput struct {
	CloseDate   string            `json:"close_date"`
	Commission  decimal.Decimal   `json:"commission"`
	ClosingCost decimal.Decimal   `json:"closing_cost"`
	ClosePrice  *decimal.Decimal  `json:"close_price,omitempty"`
	Status      model.TradeStatus `json:"status,omitempty"`
	Note        string            `json:"note,omitempty"`
}

// Create opens a new trade from user input.
func Create(in model.Trade) (model.Trade, model.HistoryEvent, error) {
	t := prepare(in)
	t.ID = ""
	t.Status = model.TradeStatusOpen
	t.TotalPremium = t.PremiumReceived
	t.CloseDate = ""

	if err := Validate(t); err != nil {
		return model.Trade{}, model.HistoryEvent{}, err
	}

	return t, model.NewHistoryEvent(model.HistoryEventCreation, t, t.PremiumReceived), nil
}

// Edit replaces the user-editable fields of prev. The total premium is
// corrected for the current leg only, so earlier rolls are not counted twice.
// Status is kept unless the input carries one: a direct correction is the one
// way out of a terminal status.
func Edit(prev model.Trade, in model.Trade) (model.Trade, model.HistoryEvent, error) {
	t := prepare(in)
	t.ID = prev.ID
	t.CreatedAt = prev.CreatedAt
	if in.Status == "" {
		t.Status = prev.Status
	}
	t.TotalPremium = prev.CumulativePremium().
		Sub(prev.PremiumReceived).
		Add(t.PremiumReceived)

	if err := Validate(t); err != nil {
		return model.Trade{}, model.HistoryEvent{}, err
	}

	return t, model.NewHistoryEvent(model.HistoryEventEdit, t, t.PremiumReceived), nil
}

// Roll closes the current leg and opens the incoming one on the same trade.
// Rolling a closed, expired or cancelled trade is rejected.
func Roll(prev model.Trade, in RollInput) (model.Trade, model.HistoryEvent, error) {
	if prev.Status.Terminal() {
		return model.Trade{}, model.HistoryEvent{}, &PreconditionError{Op: "roll", Status: prev.Status}
	}
	if err := validateRoll(in); err != nil {
		return model.Trade{}, model.HistoryEvent{}, err
	}

	t := prev
	t.TotalPremium = prev.CumulativePremium().Add(in.Premium)
	t.PremiumReceived = in.Premium
	t.StrikePrice = in.StrikePrice
	t.StartDate = in.StartDate
	t.ExpirationDate = in.ExpirationDate
	t.CloseDate = in.EffectiveDate
	if t.CloseDate == "" {
		t.CloseDate = in.StartDate
	}
	t.Commission = prev.Commission.Add(in.Commission)
	t.ClosingCost = prev.ClosingCost.Add(in.ClosingCost)
	t.Status = model.TradeStatusRolled
	if in.Note != "" {
		t.Note = in.Note
	}

	ev := model.NewHistoryEvent(model.HistoryEventRoll, t, in.Premium)
	ev.Commission = in.Commission
	ev.ClosingCost = in.ClosingCost

	return t, ev, nil
}

// Close moves a trade to a terminal status. The closing commission and cost
// are added to those of earlier legs; premium fields are left as they are.
func Close(prev model.Trade, in CloseInput) (model.Trade, model.HistoryEvent, error) {
	target := in.Status
	if target == "" {
		target = model.TradeStatusClosed
	}

	if err := checkCloseTransition(prev.Status, target); err != nil {
		return model.Trade{}, model.HistoryEvent{}, err
	}
	if err := validateClose(in); err != nil {
		return model.Trade{}, model.HistoryEvent{}, err
	}

	t := prev
	t.CloseDate = in.CloseDate
	t.Commission = prev.Commission.Add(in.Commission)
	t.ClosingCost = prev.ClosingCost.Add(in.ClosingCost)
	if in.ClosePrice != nil {
		price := *in.ClosePrice
		t.ClosePrice = &price
	}
	if in.Note != "" {
		t.Note = in.Note
	}
	t.Status = target

	return t, model.NewHistoryEvent(model.HistoryEventClose, t, t.CumulativePremium()), nil
}

// Delete returns the event that records the trade's final state before removal.
func Delete(prev model.Trade) model.HistoryEvent {
	return model.NewHistoryEvent(model.HistoryEventDeletion, prev, prev.CumulativePremium())
}

func checkCloseTransition(from, to model.TradeStatus) error {
	op := "close"
	switch to {
	case model.TradeStatusExpired:
		op = "expire"
	case model.TradeStatusCancelled:
		op = "cancel"
	case model.TradeStatusClosed:
	default:
		return &ValidationError{Messages: []string{"close status must be closed, expired or cancelled"}}
	}

	if from.Terminal() {
		return &PreconditionError{Op: op, Status: from}
	}
	// a rolled position has already collected premium on a previous leg
	if to == model.TradeStatusCancelled && from != model.TradeStatusOpen {
		return &PreconditionError{Op: op, Status: from}
	}
	return nil
}

func validateRoll(in RollInput) error {
	var msgs []string

	start, startOK := checkDate(&msgs, "start date", in.StartDate, true)
	expiration, expirationOK := checkDate(&msgs, "expiration date", in.ExpirationDate, true)
	if startOK && expirationOK && expiration.Before(start) {
		msgs = append(msgs, "expiration date cannot be before start date")
	}
	checkDate(&msgs, "effective date", in.EffectiveDate, false)

	if in.StrikePrice.IsNegative() {
		msgs = append(msgs, "strike cannot be negative")
	}
	if in.Premium.IsNegative() {
		msgs = append(msgs, "premium cannot be negative")
	}
	if in.Commission.IsNegative() {
		msgs = append(msgs, "commission cannot be negative")
	}
	if in.ClosingCost.IsNegative() {
		msgs = append(msgs, "closing cost cannot be negative")
	}

	if len(msgs) > 0 {
		return &ValidationError{Messages: msgs}
	}
	return nil
}

func validateClose(in CloseInput) error {
	var msgs []string

	checkDate(&msgs, "close date", in.CloseDate, true)
	if in.Commission.IsNegative() {
		msgs = append(msgs, "commission cannot be negative")
	}
	if in.ClosingCost.IsNegative() {
		msgs = append(msgs, "closing cost cannot be negative")
	}
	if in.ClosePrice != nil && in.ClosePrice.IsNegative() {
		msgs = append(msgs, "close price cannot be negative")
	}

	if len(msgs) > 0 {
		return &ValidationError{Messages: msgs}
	}
	return nil
}

// prepare copies the user-editable fields and normalizes the ticker.
func prepare(in model.Trade) model.Trade {
	return model.Trade{
		TickerSymbol:    mapper.NormalizeTicker(in.TickerSymbol),
		Strategy:        in.Strategy,
		StartDate:       in.StartDate,
		ExpirationDate:  in.ExpirationDate,
		CloseDate:       in.CloseDate,
		ShareCount:      in.ShareCount,
		StrikePrice:     in.StrikePrice,
		PremiumReceived: in.PremiumReceived,
		Commission:      in.Commission,
		ClosingCost:     in.ClosingCost,
		ClosePrice:      in.ClosePrice,
		Status:          in.Status,
		Note:            in.Note,
	}
}
