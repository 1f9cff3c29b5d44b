package lifecycle

import (
	"strings"
	"time"

	"optionsledger/src/model"
)

// Validate checks a user-submitted trade and returns a *ValidationError with
// one message per failed constraint, or nil.
func Validate(t model.Trade) error {
	var msgs []string

	if t.TickerSymbol == "" {
		msgs = append(msgs, "ticker is required")
	}
	if strings.TrimSpace(t.Strategy) == "" {
		msgs = append(msgs, "strategy is required")
	}

	start, startOK := checkDate(&msgs, "start date", t.StartDate, true)
	expiration, expirationOK := checkDate(&msgs, "expiration date", t.ExpirationDate, true)
	if startOK && expirationOK && expiration.Before(start) {
		msgs = append(msgs, "expiration date cannot be before start date")
	}
	checkDate(&msgs, "close date", t.CloseDate, false)

	if t.ShareCount <= 0 {
		msgs = append(msgs, "shares must be greater than 0")
	}
	if t.StrikePrice.IsNegative() {
		msgs = append(msgs, "strike cannot be negative")
	}
	if t.PremiumReceived.IsNegative() {
		msgs = append(msgs, "premium received cannot be negative")
	}
	if t.TotalPremium.LessThan(t.PremiumReceived) {
		msgs = append(msgs, "total premium cannot be less than the current premium")
	}
	if t.Commission.IsNegative() {
		msgs = append(msgs, "commission cannot be negative")
	}
	if t.ClosingCost.IsNegative() {
		msgs = append(msgs, "closing cost cannot be negative")
	}
	if t.ClosePrice != nil && t.ClosePrice.IsNegative() {
		msgs = append(msgs, "close price cannot be negative")
	}
	if !t.Status.Valid() {
		msgs = append(msgs, "status is not recognised")
	}

	if len(msgs) > 0 {
		return &ValidationError{Messages: msgs}
	}
	return nil
}

func checkDate(msgs *[]string, label, value string, required bool) (time.Time, bool) {
	if value == "" {
		if required {
			*msgs = append(*msgs, label+" is required")
		}
		return time.Time{}, false
	}
	parsed, err := time.Parse(model.DateLayout, value)
	if err != nil {
		*msgs = append(*msgs, label+" must be a YYYY-MM-DD date")
		return time.Time{}, false
	}
	return parsed, true
}
