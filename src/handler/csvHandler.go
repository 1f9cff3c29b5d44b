package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	logger "github.com/sirupsen/logrus"
)

type exporter interface {
	Export(ctx context.Context, w io.Writer) error
}

type importer interface {
	Import(ctx context.Context, r io.Reader) (int, error)
}

// ExportHandler downloads every trade as CSV.
func ExportHandler(svc exporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if err := svc.Export(r.Context(), &buf); err != nil {
			writeError(w, err)
			return
		}

		filename := fmt.Sprintf("trades-%s.csv", time.Now().UTC().Format("2006-01-02"))
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		if _, err := buf.WriteTo(w); err != nil {
			logger.WithError(err).Error("failed to write csv export")
		}
	}
}

// ImportHandler stores every row of a CSV body as a new trade, or none of
// them when a row is invalid.
func ImportHandler(svc importer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := svc.Import(r.Context(), http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"imported": n})
	}
}
