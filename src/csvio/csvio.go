// Package csvio reads and writes the ledger's CSV interchange format: one
// header row, then one row per trade.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"optionsledger/src/mapper"
	"optionsledger/src/model"
)

// Header is the fixed column order of exported files.
var Header = []string{
	"start_date",
	"expiration_date",
	"close_date",
	"ticker",
	"strategy",
	"shares",
	"strike",
	"premium_received",
	"commission",
	"closing_cost",
	"status",
	"close_price",
	"note",
}

// ErrNoHeader is returned when the input has no header row.
var ErrNoHeader = errors.New("csv: missing header row")

// Record is an imported trade together with the file line it came from.
type Record struct {
	Line  int
	Trade model.Trade
}

// Export writes trades in Header order. Cells holding commas, quotes or
// newlines are quoted with inner quotes doubled.
func Export(w io.Writer, trades []model.Trade) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return err
	}

	for _, t := range trades {
		closePrice := ""
		if t.ClosePrice != nil {
			closePrice = t.ClosePrice.String()
		}

		row := []string{
			t.StartDate,
			t.ExpirationDate,
			t.CloseDate,
			t.TickerSymbol,
			t.Strategy,
			strconv.Itoa(t.ShareCount),
			t.StrikePrice.String(),
			t.PremiumReceived.String(),
			t.Commission.String(),
			t.ClosingCost.String(),
			string(t.Status),
			closePrice,
			t.Note,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// Import reads a file whose first row names the columns. Cells are matched by
// header name, so files using the legacy Spanish or camelCase headers import
// as well; unknown columns are ignored. Blank rows are skipped. Records are
// normalized but not validated.
func Import(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	for i, name := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
	}

	var records []Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: %w", err)
		}
		if blank(row) {
			continue
		}

		line, _ := cr.FieldPos(0)

		raw := make(map[string]any, len(header))
		for i, name := range header {
			if i < len(row) && name != "" {
				raw[name] = row[i]
			}
		}

		records = append(records, Record{Line: line, Trade: mapper.NormalizeInput(raw)})
	}

	return records, nil
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
