package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"optionsledger/src/lifecycle"
	"optionsledger/src/mapper"
	"optionsledger/src/model"
)

type tradeLister interface {
	Trades(ctx context.Context) ([]model.Trade, error)
}

type tradeCreator interface {
	Create(ctx context.Context, in model.Trade) (*model.Trade, error)
}

type tradeEditor interface {
	Edit(ctx context.Context, id string, in model.Trade) (*model.Trade, error)
}

type tradeRoller interface {
	Roll(ctx context.Context, id string, in lifecycle.RollInput) (*model.Trade, error)
}

type tradeCloser interface {
	Close(ctx context.Context, id string, in lifecycle.CloseInput) (*model.Trade, error)
}

type tradeDeleter interface {
	Delete(ctx context.Context, id string) error
}

// ListTradesHandler returns every trade, newest first.
func ListTradesHandler(svc tradeLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		trades, err := svc.Trades(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if trades == nil {
			trades = []model.Trade{}
		}
		writeJSON(w, http.StatusOK, trades)
	}
}

// CreateTradeHandler opens a trade. The body may use canonical, camelCase or
// legacy field names.
func CreateTradeHandler(svc tradeCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		if err := decodeJSON(w, r, &raw); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}

		trade, err := svc.Create(r.Context(), mapper.NormalizeInput(raw))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, trade)
	}
}

// EditTradeHandler replaces the editable fields of a trade. Status changes
// only when the body carries one.
func EditTradeHandler(svc tradeEditor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		if err := decodeJSON(w, r, &raw); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}

		in := mapper.NormalizeInput(raw)
		if !mapper.HasField(raw, mapper.FieldStatus) {
			in.Status = ""
		}

		trade, err := svc.Edit(r.Context(), chi.URLParam(r, "id"), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, trade)
	}
}

func RollTradeHandler(svc tradeRoller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in lifecycle.RollInput
		if err := decodeJSON(w, r, &in); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}

		trade, err := svc.Roll(r.Context(), chi.URLParam(r, "id"), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, trade)
	}
}

// CloseTradeHandler closes, expires or cancels a trade.
func CloseTradeHandler(svc tradeCloser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in lifecycle.CloseInput
		if err := decodeJSON(w, r, &in); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if in.Status != "" {
			in.Status = mapper.ParseStatus(string(in.Status))
		}

		trade, err := svc.Close(r.Context(), chi.URLParam(r, "id"), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, trade)
	}
}

func DeleteTradeHandler(svc tradeDeleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
