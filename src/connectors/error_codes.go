package connectors

import (
	"errors"
	"fmt"
)

// ErrUnavailable is matched by every oracle failure. Callers treat all of
// them the same way: the value is unknown.
var ErrUnavailable = errors.New("market data unavailable")

// Reason tells why a lookup produced no value. It is logged, never shown.
type Reason string

const (
	ReasonNoAPIKey      Reason = "no_api_key"
	ReasonDailyLimit    Reason = "daily_limit"    // local budget exhausted
	ReasonRateLimited   Reason = "rate_limited"   // provider "Note" / "Information" payload
	ReasonProviderError Reason = "provider_error" // provider "Error Message" payload
	ReasonNotFound      Reason = "not_found"      // no quote, or a non-positive price
	ReasonTransport     Reason = "transport"      // network error or non-2xx status
	ReasonDecode        Reason = "decode"
)

type UnavailableError struct {
	Symbol string
	Reason Reason
	Detail string
}

func (e *UnavailableError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s (%s)", ErrUnavailable, e.Symbol, e.Reason)
	}
	return fmt.Sprintf("%s: %s (%s): %s", ErrUnavailable, e.Symbol, e.Reason, e.Detail)
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

func unavailable(symbol string, reason Reason, detail string) error {
	return &UnavailableError{Symbol: symbol, Reason: reason, Detail: detail}
}
