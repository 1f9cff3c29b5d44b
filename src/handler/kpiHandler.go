package handler

import (
	"context"
	"net/http"
	"strconv"

	"optionsledger/src/kpi"
	"optionsledger/src/model"
)

type kpiReader interface {
	KPIs(ctx context.Context) (kpi.Totals, error)
}

type tickerReader interface {
	Tickers(ctx context.Context, byROI bool, limit int) ([]kpi.TickerSummary, error)
}

type historyReader interface {
	History(ctx context.Context) ([]model.HistoryEvent, error)
}

func KPIsHandler(svc kpiReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		totals, err := svc.KPIs(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, totals)
	}
}

// TickersHandler returns per-ticker summaries.
// Supports sort=ticker (default) or sort=roi, and limit.
func TickersHandler(svc tickerReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		byROI := false
		switch r.URL.Query().Get("sort") {
		case "", "ticker":
		case "roi":
			byROI = true
		default:
			http.Error(w, "invalid sort", http.StatusBadRequest)
			return
		}

		limit := 0
		if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
			parsed, err := strconv.Atoi(limitParam)
			if err != nil || parsed <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		summaries, err := svc.Tickers(r.Context(), byROI, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		if summaries == nil {
			summaries = []kpi.TickerSummary{}
		}
		writeJSON(w, http.StatusOK, summaries)
	}
}

// HistoryHandler returns the audit log, most recent first.
func HistoryHandler(svc historyReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, err := svc.History(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if events == nil {
			events = []model.HistoryEvent{}
		}
		writeJSON(w, http.StatusOK, events)
	}
}
