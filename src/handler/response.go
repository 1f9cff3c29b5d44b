package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	logger "github.com/sirupsen/logrus"

	"optionsledger/src/ledger"
	"optionsledger/src/lifecycle"
)

type errorResponse struct {
	Error  string      `json:"error"`
	Errors interface{} `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}

// writeError maps ledger errors to HTTP statuses. Validation problems are
// listed; persistence failures get the generic notice only.
func writeError(w http.ResponseWriter, err error) {
	var verr *lifecycle.ValidationError
	var perr *lifecycle.PreconditionError
	var ierr *ledger.ImportError

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid trade", Errors: verr.Messages})
	case errors.As(err, &ierr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "import rejected", Errors: ierr.Rows})
	case errors.As(err, &perr):
		writeJSON(w, http.StatusConflict, errorResponse{Error: perr.Error()})
	case errors.Is(err, ledger.ErrTradeNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: ledger.ErrTradeNotFound.Error()})
	case errors.Is(err, ledger.ErrPersistence):
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: ledger.ErrPersistence.Error()})
	default:
		logger.WithError(err).Error("unexpected handler error")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal Server Error"})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	return dec.Decode(v)
}

const maxBodyBytes = 10 << 20
