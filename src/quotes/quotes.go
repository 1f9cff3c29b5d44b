// Package quotes enriches tickers with market data. Lookups are best effort:
// any failure leaves the value unknown and is never returned as an error.
package quotes

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Oracle is the read-only market data source.
type Oracle interface {
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	GetName(ctx context.Context, symbol string) (string, error)
}

// Quote holds what is known about a ticker. Price is nil when unknown.
type Quote struct {
	Ticker string           `json:"ticker"`
	Price  *decimal.Decimal `json:"price"`
	Name   string           `json:"name,omitempty"`
}

// Known reports whether a price was found.
func (q Quote) Known() bool {
	return q.Price != nil
}

type Service struct {
	oracle         Oracle
	timeout        time.Duration
	maxConcurrency int
}

func NewService(oracle Oracle, cfg Config) *Service {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	return &Service{
		oracle:         oracle,
		timeout:        cfg.LookupTimeout,
		maxConcurrency: cfg.MaxConcurrency,
	}
}

// Lookup returns one quote per distinct ticker, in first-seen order. The price
// and the name lookup of each ticker get their own timeout.
func (s *Service) Lookup(ctx context.Context, tickers []string) []Quote {
	symbols := dedupe(tickers)
	out := make([]Quote, len(symbols))

	var g errgroup.Group
	g.SetLimit(s.maxConcurrency)

	for i, symbol := range symbols {
		i, symbol := i, symbol
		out[i] = Quote{Ticker: symbol}

		g.Go(func() error {
			out[i] = s.lookupOne(ctx, symbol)
			return nil
		})
	}

	_ = g.Wait()
	return out
}

func (s *Service) lookupOne(ctx context.Context, symbol string) Quote {
	q := Quote{Ticker: symbol}
	if s.oracle == nil {
		return q
	}

	priceCtx, cancelPrice := s.callContext(ctx)
	price, err := s.oracle.GetPrice(priceCtx, symbol)
	cancelPrice()
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"service": "quotes",
			"symbol":  symbol,
		}).WithError(err).Debug("Price unavailable")
	} else {
		q.Price = &price
	}

	nameCtx, cancelName := s.callContext(ctx)
	name, err := s.oracle.GetName(nameCtx, symbol)
	cancelName()
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"service": "quotes",
			"symbol":  symbol,
		}).WithError(err).Debug("Name unavailable")
	} else {
		q.Name = name
	}

	return q
}

// callContext bounds a single oracle call by the lookup timeout.
func (s *Service) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func dedupe(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		symbol := strings.ToUpper(strings.TrimSpace(t))
		if symbol == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true
		out = append(out, symbol)
	}
	return out
}
