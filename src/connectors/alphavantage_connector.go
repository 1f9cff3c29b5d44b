package connectors

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

const (
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 4 * time.Second
)

// AlphaVantageClient looks up last prices (GLOBAL_QUOTE) and company names
// (SYMBOL_SEARCH). Results are cached per symbol and outbound calls are
// counted against a daily budget.
type AlphaVantageClient struct {
	apiKey     string
	http       *resty.Client
	dailyLimit int
	priceTTL   time.Duration
	nameTTL    time.Duration
	now        func() time.Time

	mu    sync.Mutex
	day   string
	used  int
	cache map[string]cacheEntry
}

type cacheEntry struct {
	price     decimal.Decimal
	name      string
	expiresAt time.Time
}

type globalQuoteResponse struct {
	Note         string            `json:"Note"`
	Information  string            `json:"Information"`
	ErrorMessage string            `json:"Error Message"`
	GlobalQuote  map[string]string `json:"Global Quote"`
}

type symbolSearchResponse struct {
	Note         string              `json:"Note"`
	Information  string              `json:"Information"`
	ErrorMessage string              `json:"Error Message"`
	BestMatches  []map[string]string `json:"bestMatches"`
}

// isRetryableResp retries transport errors, 5xx and 408. A 429 is not
// retried: the provider is throttling and another call would only spend budget.
func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}

	if r == nil {
		return false
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == 408 {
		return true
	}
	return false
}

func NewAlphaVantageClient(cfg Config) *AlphaVantageClient {
	baseURL := cfg.AlphaVantageBaseURL
	if baseURL == "" {
		baseURL = "https://www.alphavantage.co"
	}
	if cfg.AlphaVantageAPIKey == "" {
		logger.Warn("ALPHAVANTAGE_API_KEY is not set, price and name lookups will be unavailable")
	}

	timeout := cfg.AlphaVantageTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &AlphaVantageClient{
		apiKey:     cfg.AlphaVantageAPIKey,
		dailyLimit: cfg.AlphaVantageDailyLimit,
		priceTTL:   cfg.AlphaVantageCacheTTL,
		nameTTL:    cfg.AlphaVantageNameCacheTTL,
		now:        time.Now,
		cache:      make(map[string]cacheEntry),
	}

	retries := cfg.AlphaVantageRetryCount

	// every retry is an outbound call and is taken from the daily budget
	c.http = resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if !isRetryableResp(r, err) {
				return false
			}
			// the condition also runs after the last attempt
			if r == nil || r.Request == nil || r.Request.Attempt > retries {
				return false
			}
			return c.reserve()
		})

	return c
}

// GetPrice returns the last traded price of symbol. Every failure, including
// provider throttling notes and a missing or non-positive price, is an
// *UnavailableError matching ErrUnavailable.
func (c *AlphaVantageClient) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	key := "price:" + symbol

	if entry, ok := c.cached(key); ok {
		return entry.price, nil
	}

	var out globalQuoteResponse
	if err := c.query(ctx, symbol, "GLOBAL_QUOTE", map[string]string{"symbol": symbol}, &out); err != nil {
		return decimal.Zero, err
	}
	if err := providerFailure(symbol, out.Note, out.Information, out.ErrorMessage); err != nil {
		return decimal.Zero, err
	}

	raw := strings.TrimSpace(out.GlobalQuote["05. price"])
	if raw == "" || raw == "None" {
		return decimal.Zero, unavailable(symbol, ReasonNotFound, "")
	}
	price, err := decimal.NewFromString(raw)
	if err != nil || !price.IsPositive() {
		return decimal.Zero, unavailable(symbol, ReasonNotFound, raw)
	}

	c.store(key, cacheEntry{price: price}, c.priceTTL)
	return price, nil
}

// GetName returns the company name of the search result whose symbol matches
// exactly. A stale cached name is returned when the provider fails.
func (c *AlphaVantageClient) GetName(ctx context.Context, symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	key := "name:" + symbol

	if entry, ok := c.cached(key); ok {
		return entry.name, nil
	}

	name, err := c.searchName(ctx, symbol)
	if err != nil {
		if stale, ok := c.staleName(key); ok {
			logger.WithFields(map[string]interface{}{
				"connector": "alphavantage",
				"symbol":    symbol,
			}).WithError(err).Debug("Using stale cached name")
			return stale, nil
		}
		return "", err
	}

	c.store(key, cacheEntry{name: name}, c.nameTTL)
	return name, nil
}

func (c *AlphaVantageClient) searchName(ctx context.Context, symbol string) (string, error) {
	var out symbolSearchResponse
	if err := c.query(ctx, symbol, "SYMBOL_SEARCH", map[string]string{"keywords": symbol}, &out); err != nil {
		return "", err
	}
	if err := providerFailure(symbol, out.Note, out.Information, out.ErrorMessage); err != nil {
		return "", err
	}

	for _, match := range out.BestMatches {
		if strings.EqualFold(strings.TrimSpace(match["1. symbol"]), symbol) {
			if name := strings.TrimSpace(match["2. name"]); name != "" {
				return name, nil
			}
		}
	}
	return "", unavailable(symbol, ReasonNotFound, "")
}

// RemainingRequests reports how many outbound calls are left today.
func (c *AlphaVantageClient) RemainingRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollDay()
	if c.dailyLimit <= 0 {
		return -1
	}
	return c.dailyLimit - c.used
}

func (c *AlphaVantageClient) query(ctx context.Context, symbol, function string, params map[string]string, out interface{}) error {
	if c.apiKey == "" {
		return unavailable(symbol, ReasonNoAPIKey, "")
	}
	if !c.reserve() {
		return unavailable(symbol, ReasonDailyLimit, "")
	}

	logger.WithFields(map[string]interface{}{
		"connector": "alphavantage",
		"function":  function,
		"symbol":    symbol,
	}).Debug("Querying Alpha Vantage")

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("function", function).
		SetQueryParams(params).
		SetQueryParam("apikey", c.apiKey).
		Get("/query")
	if err != nil {
		return unavailable(symbol, ReasonTransport, err.Error())
	}
	if resp.StatusCode() == http.StatusTooManyRequests {
		return unavailable(symbol, ReasonRateLimited, resp.Status())
	}
	if resp.IsError() {
		return unavailable(symbol, ReasonTransport, resp.Status())
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return unavailable(symbol, ReasonDecode, err.Error())
	}
	return nil
}

func providerFailure(symbol, note, information, errorMessage string) error {
	switch {
	case note != "":
		return unavailable(symbol, ReasonRateLimited, note)
	case information != "":
		return unavailable(symbol, ReasonRateLimited, information)
	case errorMessage != "":
		return unavailable(symbol, ReasonProviderError, errorMessage)
	}
	return nil
}

// ----- budget and cache -----

// reserve takes one request from today's budget.
func (c *AlphaVantageClient) reserve() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollDay()
	if c.dailyLimit > 0 && c.used >= c.dailyLimit {
		return false
	}
	c.used++
	return true
}

// rollDay resets the counter on a new UTC day. Callers hold mu.
func (c *AlphaVantageClient) rollDay() {
	today := c.now().UTC().Format("2006-01-02")
	if c.day != today {
		c.day = today
		c.used = 0
	}
}

func (c *AlphaVantageClient) cached(key string) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[key]
	if !ok || !c.now().Before(entry.expiresAt) {
		return cacheEntry{}, false
	}
	return entry, true
}

func (c *AlphaVantageClient) staleName(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[key]
	if !ok || entry.name == "" {
		return "", false
	}
	return entry.name, true
}

func (c *AlphaVantageClient) store(key string, entry cacheEntry, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry.expiresAt = c.now().Add(ttl)
	c.cache[key] = entry
}
