package mapper

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"optionsledger/src/model"
)

// Canonical field names of a persisted trade row.
const (
	FieldID              = "id"
	FieldTicker          = "ticker_symbol"
	FieldStrategy        = "strategy"
	FieldStartDate       = "start_date"
	FieldExpirationDate  = "expiration_date"
	FieldCloseDate       = "close_date"
	FieldShares          = "share_count"
	FieldStrike          = "strike_price"
	FieldPremiumReceived = "premium_received"
	FieldTotalPremium    = "total_premium"
	FieldCommission      = "commission"
	FieldClosingCost     = "closing_cost"
	FieldStatus          = "status"
	FieldClosePrice      = "close_price"
	FieldNote            = "note"
)

// fieldAliases lists, per canonical field, the alternate names found in
// older rows and CSV files (camelCase, short names and the Spanish names of
// the first version of the ledger). Lookup is case-insensitive.
var fieldAliases = map[string][]string{
	FieldID:              {"id"},
	FieldTicker:          {"ticker_symbol", "tickerSymbol", "ticker", "symbol"},
	FieldStrategy:        {"strategy", "estrategia"},
	FieldStartDate:       {"start_date", "startDate", "fecha_inicio", "fechaInicio"},
	FieldExpirationDate:  {"expiration_date", "expirationDate", "fecha_vencimiento", "fechaVencimiento"},
	FieldCloseDate:       {"close_date", "closeDate", "fecha_cierre", "fechaCierre"},
	FieldShares:          {"share_count", "shareCount", "shares", "acciones"},
	FieldStrike:          {"strike_price", "strikePrice", "strike"},
	FieldPremiumReceived: {"premium_received", "premiumReceived", "premium", "prima_recibida", "primaRecibida", "prima"},
	FieldTotalPremium:    {"total_premium", "totalPremium", "prima_total", "primaTotal"},
	FieldCommission:      {"commission", "comision"},
	FieldClosingCost:     {"closing_cost", "closingCost", "costo_cierre", "costoCierre"},
	FieldStatus:          {"status", "estado"},
	FieldClosePrice:      {"close_price", "closePrice", "precio_cierre", "precioCierre"},
	FieldNote:            {"note", "notes", "notas", "nota"},
}

var statusAliases = map[string]model.TradeStatus{
	"open":      model.TradeStatusOpen,
	"abierta":   model.TradeStatusOpen,
	"closed":    model.TradeStatusClosed,
	"cerrada":   model.TradeStatusClosed,
	"rolled":    model.TradeStatusRolled,
	"rolada":    model.TradeStatusRolled,
	"expired":   model.TradeStatusExpired,
	"vencida":   model.TradeStatusExpired,
	"cancelled": model.TradeStatusCancelled,
	"canceled":  model.TradeStatusCancelled,
	"cancelada": model.TradeStatusCancelled,
}

// NormalizeRecord converts a raw persisted row into a canonical Trade.
// It never fails: numeric fields that are missing or not numeric become 0,
// optional text fields become empty. Strategy and note are free text and are
// kept verbatim. Required-field checks belong to validation of user input,
// not to reading stored data.
func NormalizeRecord(raw map[string]any) model.Trade {
	lookup := make(map[string]any, len(raw))
	for k, v := range raw {
		lookup[strings.ToLower(strings.TrimSpace(k))] = v
	}

	get := func(field string) (any, bool) {
		for _, alias := range fieldAliases[field] {
			if v, ok := lookup[strings.ToLower(alias)]; ok && v != nil {
				return v, true
			}
		}
		return nil, false
	}

	verbatim := func(field string) string {
		v, ok := get(field)
		if !ok {
			return ""
		}
		return toString(v)
	}

	text := func(field string) string {
		return strings.TrimSpace(verbatim(field))
	}

	number := func(field string) decimal.Decimal {
		v, ok := get(field)
		if !ok {
			return decimal.Zero
		}
		return ParseDecimalSafe(field, v)
	}

	t := model.Trade{
		ID:              text(FieldID),
		TickerSymbol:    NormalizeTicker(text(FieldTicker)),
		Strategy:        verbatim(FieldStrategy),
		StartDate:       text(FieldStartDate),
		ExpirationDate:  text(FieldExpirationDate),
		CloseDate:       text(FieldCloseDate),
		ShareCount:      int(number(FieldShares).IntPart()),
		StrikePrice:     number(FieldStrike),
		PremiumReceived: number(FieldPremiumReceived),
		TotalPremium:    number(FieldTotalPremium),
		Commission:      number(FieldCommission),
		ClosingCost:     number(FieldClosingCost),
		Status:          NormalizeStatus(text(FieldStatus)),
		Note:            verbatim(FieldNote),
	}

	if v, ok := get(FieldClosePrice); ok && strings.TrimSpace(toString(v)) != "" {
		price := ParseDecimalSafe(FieldClosePrice, v)
		t.ClosePrice = &price
	}

	if t.TotalPremium.LessThan(t.PremiumReceived) {
		t.TotalPremium = t.PremiumReceived
	}

	return t
}

// NormalizeInput is NormalizeRecord for user-submitted records (API bodies,
// imported files). An unrecognised status label is kept as given so that
// validation rejects it instead of reopening the trade.
func NormalizeInput(raw map[string]any) model.Trade {
	t := NormalizeRecord(raw)
	if label, ok := fieldText(raw, FieldStatus); ok {
		t.Status = ParseStatus(label)
	}
	return t
}

// HasField reports whether raw carries a non-nil value for the canonical
// field under any of its accepted names.
func HasField(raw map[string]any, field string) bool {
	_, ok := fieldText(raw, field)
	return ok
}

// NormalizeTicker trims and upper-cases a ticker symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// ParseStatus maps English or Spanish status labels to a TradeStatus. An
// empty label is open; an unknown one is returned trimmed and unchanged,
// which TradeStatus.Valid reports as invalid.
func ParseStatus(label string) model.TradeStatus {
	key := strings.ToLower(strings.TrimSpace(label))
	if key == "" {
		return model.TradeStatusOpen
	}
	if status, ok := statusAliases[key]; ok {
		return status
	}
	return model.TradeStatus(strings.TrimSpace(label))
}

// NormalizeStatus is the lenient variant used for stored rows: empty or
// unknown labels are treated as open.
func NormalizeStatus(label string) model.TradeStatus {
	key := strings.ToLower(strings.TrimSpace(label))
	if key == "" {
		return model.TradeStatusOpen
	}
	status, ok := statusAliases[key]
	if !ok {
		logger.WithField("status", label).Debug("Unknown status label, defaulting to open")
		return model.TradeStatusOpen
	}
	return status
}

// ParseDecimalSafe converts any scalar to a decimal, defaulting to 0.
func ParseDecimalSafe(field string, v any) decimal.Decimal {
	switch n := v.(type) {
	case decimal.Decimal:
		return n
	case *decimal.Decimal:
		if n == nil {
			return decimal.Zero
		}
		return *n
	case float64:
		return decimal.NewFromFloat(n)
	case float32:
		return decimal.NewFromFloat32(n)
	case int:
		return decimal.NewFromInt(int64(n))
	case int64:
		return decimal.NewFromInt(n)
	case int32:
		return decimal.NewFromInt32(n)
	case uint:
		return decimal.NewFromInt(int64(n))
	case json.Number:
		return parseDecimalString(field, n.String())
	case string:
		return parseDecimalString(field, n)
	case []byte:
		return parseDecimalString(field, string(n))
	}

	logger.WithFields(map[string]interface{}{
		"field": field,
		"type":  fmt.Sprintf("%T", v),
	}).Debug("Unsupported numeric type, defaulting to 0")
	return decimal.Zero
}

func parseDecimalString(field, s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		logger.WithField("field", field).Debug("Empty numeric field received, defaulting to 0")
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"field": field,
			"value": s,
		}).WithError(err).Debug("Failed to parse numeric field; defaulting to 0")
		return decimal.Zero
	}
	return d
}

// fieldText returns the value of field under any accepted name.
func fieldText(raw map[string]any, field string) (string, bool) {
	for k, v := range raw {
		if v == nil {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(k))
		for _, alias := range fieldAliases[field] {
			if key == strings.ToLower(alias) {
				return toString(v), true
			}
		}
	}
	return "", false
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case fmt.Stringer:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
