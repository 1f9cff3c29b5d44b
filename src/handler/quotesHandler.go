package handler

import (
	"context"
	"net/http"
	"strings"

	"optionsledger/src/quotes"
)

type quoteLooker interface {
	Lookup(ctx context.Context, tickers []string) []quotes.Quote
}

// QuotesHandler looks up ?tickers=AAPL,MSFT. Unknown prices come back as
// null; the request itself never fails because of the provider.
func QuotesHandler(svc quoteLooker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		param := strings.TrimSpace(r.URL.Query().Get("tickers"))
		if param == "" {
			http.Error(w, "tickers is required", http.StatusBadRequest)
			return
		}

		writeJSON(w, http.StatusOK, svc.Lookup(r.Context(), strings.Split(param, ",")))
	}
}
