package connectors

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*AlphaVantageClient, *int32) {
	t.Helper()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client := NewAlphaVantageClient(Config{
		AlphaVantageAPIKey:       "demo",
		AlphaVantageBaseURL:      srv.URL,
		AlphaVantageDailyLimit:   25,
		AlphaVantageCacheTTL:     time.Minute,
		AlphaVantageNameCacheTTL: time.Hour,
		AlphaVantageTimeout:      2 * time.Second,
	})
	return client, &calls
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func TestGetPrice(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		assert.Equal(t, "demo", r.URL.Query().Get("apikey"))
		writeJSON(w, `{"Global Quote": {"01. symbol": "AAPL", "05. price": "189.8400"}}`)
	})

	price, err := client.GetPrice(context.Background(), " aapl ")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("189.84")))

	// served from cache
	_, err = client.GetPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
	assert.Equal(t, 24, client.RemainingRequests())
}

func TestGetPrice_Unavailable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		reason Reason
	}{
		{"throttle note", http.StatusOK, `{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 25 requests per day."}`, ReasonRateLimited},
		{"premium information", http.StatusOK, `{"Information": "This is a premium endpoint."}`, ReasonRateLimited},
		{"error message", http.StatusOK, `{"Error Message": "Invalid API call."}`, ReasonProviderError},
		{"empty quote", http.StatusOK, `{"Global Quote": {}}`, ReasonNotFound},
		{"none price", http.StatusOK, `{"Global Quote": {"05. price": "None"}}`, ReasonNotFound},
		{"zero price", http.StatusOK, `{"Global Quote": {"05. price": "0.0000"}}`, ReasonNotFound},
		{"garbage price", http.StatusOK, `{"Global Quote": {"05. price": "n/a"}}`, ReasonNotFound},
		{"server error", http.StatusBadGateway, `bad gateway`, ReasonTransport},
		{"not json", http.StatusOK, `<html></html>`, ReasonDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			price, err := client.GetPrice(context.Background(), "XYZ")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnavailable))
			assert.True(t, price.IsZero())

			var uerr *UnavailableError
			require.True(t, errors.As(err, &uerr))
			assert.Equal(t, tt.reason, uerr.Reason)
			assert.Equal(t, "XYZ", uerr.Symbol)
		})
	}
}

func TestGetPrice_NoAPIKey(t *testing.T) {
	client := NewAlphaVantageClient(Config{AlphaVantageDailyLimit: 25})

	_, err := client.GetPrice(context.Background(), "AAPL")

	var uerr *UnavailableError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, ReasonNoAPIKey, uerr.Reason)
}

func TestDailyLimit(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"Global Quote": {"05. price": "10"}}`)
	})
	client.dailyLimit = 2

	day := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return day }

	for _, symbol := range []string{"A", "B"} {
		_, err := client.GetPrice(context.Background(), symbol)
		require.NoError(t, err)
	}

	_, err := client.GetPrice(context.Background(), "C")
	var uerr *UnavailableError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, ReasonDailyLimit, uerr.Reason)
	assert.EqualValues(t, 2, atomic.LoadInt32(calls), "no request is sent once the budget is spent")

	day = day.Add(24 * time.Hour)
	_, err = client.GetPrice(context.Background(), "C")
	require.NoError(t, err)
	assert.Equal(t, 1, client.RemainingRequests())
}

func TestCacheExpiration(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"Global Quote": {"05. price": "10"}}`)
	})
	now := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return now }

	_, err := client.GetPrice(context.Background(), "AAPL")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = client.GetPrice(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.EqualValues(t, 2, atomic.LoadInt32(calls))
}

func TestGetName(t *testing.T) {
	var fail int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.LoadInt32(&fail) == 1 {
			writeJSON(w, `{"Note": "throttled"}`)
			return
		}
		assert.Equal(t, "SYMBOL_SEARCH", r.URL.Query().Get("function"))
		assert.Equal(t, "MSFT", r.URL.Query().Get("keywords"))
		writeJSON(w, `{"bestMatches": [
			{"1. symbol": "MSFT.LON", "2. name": "Microsoft Corp (London)"},
			{"1. symbol": "MSFT", "2. name": "Microsoft Corporation"}
		]}`)
	})
	now := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return now }

	name, err := client.GetName(context.Background(), "msft")
	require.NoError(t, err)
	assert.Equal(t, "Microsoft Corporation", name)

	// expired entry is still served when the provider fails
	now = now.Add(2 * time.Hour)
	atomic.StoreInt32(&fail, 1)
	name, err = client.GetName(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Equal(t, "Microsoft Corporation", name)

	_, err = client.GetName(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGetName_NoExactMatch(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"bestMatches": [{"1. symbol": "TSLA34.SAO", "2. name": "Tesla BDR"}]}`)
	})

	_, err := client.GetName(context.Background(), "TSLA")

	var uerr *UnavailableError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, ReasonNotFound, uerr.Reason)
}

func newRetryingClient(t *testing.T, status int, dailyLimit int) (*AlphaVantageClient, *int32) {
	t.Helper()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	client := NewAlphaVantageClient(Config{
		AlphaVantageAPIKey:     "demo",
		AlphaVantageBaseURL:    srv.URL,
		AlphaVantageDailyLimit: dailyLimit,
		AlphaVantageTimeout:    2 * time.Second,
		AlphaVantageRetryCount: 2,
	})
	client.http.SetRetryWaitTime(time.Millisecond).SetRetryMaxWaitTime(2 * time.Millisecond)
	return client, &calls
}

func TestRetriesCountAgainstDailyLimit(t *testing.T) {
	client, calls := newRetryingClient(t, http.StatusServiceUnavailable, 10)

	_, err := client.GetPrice(context.Background(), "AAPL")

	var uerr *UnavailableError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, ReasonTransport, uerr.Reason)
	assert.EqualValues(t, 3, atomic.LoadInt32(calls))
	assert.Equal(t, 7, client.RemainingRequests())
}

func TestRetriesStopWhenBudgetIsSpent(t *testing.T) {
	client, calls := newRetryingClient(t, http.StatusServiceUnavailable, 2)

	_, err := client.GetPrice(context.Background(), "AAPL")
	require.Error(t, err)

	assert.EqualValues(t, 2, atomic.LoadInt32(calls))
	assert.Equal(t, 0, client.RemainingRequests())
}

func TestTooManyRequestsIsNotRetried(t *testing.T) {
	client, calls := newRetryingClient(t, http.StatusTooManyRequests, 10)

	_, err := client.GetPrice(context.Background(), "AAPL")

	var uerr *UnavailableError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, ReasonRateLimited, uerr.Reason)
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
	assert.Equal(t, 9, client.RemainingRequests())
}
