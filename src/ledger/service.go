// Package ledger runs trade lifecycle operations against a store: load the
// trade, apply the transition, persist the trade and its history event
// together, and return the stored state.
package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"optionsledger/src/csvio"
	"optionsledger/src/kpi"
	"optionsledger/src/lifecycle"
	"optionsledger/src/model"
	"optionsledger/src/repository"
)

var (
	ErrTradeNotFound = errors.New("trade not found")
	// ErrPersistence is the generic notice for a failed read or write. The
	// underlying cause is logged, not returned.
	ErrPersistence = errors.New("the ledger could not be saved or loaded, please try again")
)

// ImportError rejects a whole import when any row is invalid.
type ImportError struct {
	Rows []RowError
}

type RowError struct {
	Line     int      `json:"line"`
	Messages []string `json:"messages"`
}

func (e *ImportError) Error() string {
	parts := make([]string, 0, len(e.Rows))
	for _, r := range e.Rows {
		parts = append(parts, fmt.Sprintf("line %d: %s", r.Line, strings.Join(r.Messages, ", ")))
	}
	return "import rejected: " + strings.Join(parts, "; ")
}

type Service struct {
	trades  repository.TradeStore
	history repository.HistoryStore
}

func NewService(trades repository.TradeStore, history repository.HistoryStore) *Service {
	return &Service{trades: trades, history: history}
}

// Subscribe forwards to the store: fn runs after every committed write.
func (s *Service) Subscribe(fn func()) func() {
	return s.trades.Subscribe(fn)
}

// ----- lifecycle -----

func (s *Service) Create(ctx context.Context, in model.Trade) (*model.Trade, error) {
	trade, ev, err := lifecycle.Create(in)
	if err != nil {
		return nil, err
	}

	if err := s.trades.Add(ctx, &trade, ev); err != nil {
		return nil, persistence("create", err)
	}

	return s.load(ctx, trade.ID)
}

func (s *Service) Edit(ctx context.Context, id string, in model.Trade) (*model.Trade, error) {
	return s.apply(ctx, "edit", id, func(prev model.Trade) (model.Trade, model.HistoryEvent, error) {
		return lifecycle.Edit(prev, in)
	})
}

func (s *Service) Roll(ctx context.Context, id string, in lifecycle.RollInput) (*model.Trade, error) {
	return s.apply(ctx, "roll", id, func(prev model.Trade) (model.Trade, model.HistoryEvent, error) {
		return lifecycle.Roll(prev, in)
	})
}

func (s *Service) Close(ctx context.Context, id string, in lifecycle.CloseInput) (*model.Trade, error) {
	return s.apply(ctx, "close", id, func(prev model.Trade) (model.Trade, model.HistoryEvent, error) {
		return lifecycle.Close(prev, in)
	})
}

func (s *Service) Delete(ctx context.Context, id string) error {
	prev, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	if err := s.trades.Remove(ctx, id, lifecycle.Delete(*prev)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTradeNotFound
		}
		return persistence("delete", err)
	}
	return nil
}

type transition func(prev model.Trade) (model.Trade, model.HistoryEvent, error)

func (s *Service) apply(ctx context.Context, op, id string, fn transition) (*model.Trade, error) {
	prev, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	next, ev, err := fn(*prev)
	if err != nil {
		return nil, err
	}

	if err := s.trades.Update(ctx, &next, ev); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTradeNotFound
		}
		return nil, persistence(op, err)
	}

	return s.load(ctx, id)
}

func (s *Service) load(ctx context.Context, id string) (*model.Trade, error) {
	trade, err := s.trades.FindByID(ctx, id)
	if err != nil {
		return nil, persistence("load", err)
	}
	if trade == nil {
		return nil, ErrTradeNotFound
	}
	return trade, nil
}

// ----- reads -----

func (s *Service) Trades(ctx context.Context) ([]model.Trade, error) {
	trades, err := s.trades.List(ctx)
	if err != nil {
		return nil, persistence("list", err)
	}
	return trades, nil
}

func (s *Service) History(ctx context.Context) ([]model.HistoryEvent, error) {
	events, err := s.history.List(ctx)
	if err != nil {
		return nil, persistence("history", err)
	}
	return events, nil
}

func (s *Service) KPIs(ctx context.Context) (kpi.Totals, error) {
	trades, err := s.Trades(ctx)
	if err != nil {
		return kpi.Totals{}, err
	}
	return kpi.Compute(trades), nil
}

// Tickers returns per-ticker summaries ordered by ticker, or by descending
// ROI when byROI is set. limit <= 0 means no limit.
func (s *Service) Tickers(ctx context.Context, byROI bool, limit int) ([]kpi.TickerSummary, error) {
	trades, err := s.Trades(ctx)
	if err != nil {
		return nil, err
	}

	summaries := kpi.ByTicker(trades)
	if byROI {
		return kpi.Top(summaries, limit), nil
	}
	if limit > 0 && limit < len(summaries) {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// ----- csv -----

// Import reads a CSV file and stores every row as a new trade. All rows are
// validated first; one invalid row rejects the file and nothing is written.
// Status, close date and close price are kept as given.
func (s *Service) Import(ctx context.Context, r io.Reader) (int, error) {
	records, err := csvio.Import(r)
	if err != nil {
		line := 1
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			line = perr.Line
		}
		return 0, &ImportError{Rows: []RowError{{Line: line, Messages: []string{err.Error()}}}}
	}

	trades := make([]model.Trade, 0, len(records))
	events := make([]model.HistoryEvent, 0, len(records))
	var rejected []RowError

	for _, rec := range records {
		t := rec.Trade
		t.ID = ""

		if err := lifecycle.Validate(t); err != nil {
			var verr *lifecycle.ValidationError
			if errors.As(err, &verr) {
				rejected = append(rejected, RowError{Line: rec.Line, Messages: verr.Messages})
				continue
			}
			return 0, err
		}

		trades = append(trades, t)
		events = append(events, model.NewHistoryEvent(model.HistoryEventCreation, t, t.CumulativePremium()))
	}

	if len(rejected) > 0 {
		return 0, &ImportError{Rows: rejected}
	}
	if len(trades) == 0 {
		return 0, nil
	}

	if err := s.trades.AddBatch(ctx, trades, events); err != nil {
		return 0, persistence("import", err)
	}

	logger.WithFields(map[string]interface{}{
		"service": "ledger",
		"op":      "Import",
		"count":   len(trades),
	}).Info("Trades imported")

	return len(trades), nil
}

func (s *Service) Export(ctx context.Context, w io.Writer) error {
	trades, err := s.Trades(ctx)
	if err != nil {
		return err
	}
	return csvio.Export(w, trades)
}

func persistence(op string, err error) error {
	logger.WithFields(map[string]interface{}{
		"service": "ledger",
		"op":      op,
	}).WithError(err).Error("Persistence failure")

	return fmt.Errorf("%s: %w", op, ErrPersistence)
}
