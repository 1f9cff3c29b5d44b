package csvio

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionsledger/src/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleTrades() []model.Trade {
	price := d("148.2")
	return []model.Trade{
		{
			ID:              "storage-assigned",
			TickerSymbol:    "AAPL",
			Strategy:        "CSP",
			StartDate:       "2025-01-01",
			ExpirationDate:  "2025-02-01",
			ShareCount:      100,
			StrikePrice:     d("200"),
			PremiumReceived: d("500"),
			TotalPremium:    d("500"),
			Commission:      d("2"),
			ClosingCost:     d("0"),
			Status:          model.TradeStatusOpen,
			Note:            `sold "weekly", rolled later`,
		},
		{
			TickerSymbol:    "MSFT",
			Strategy:        "Covered Call, tight",
			StartDate:       "2025-01-05",
			ExpirationDate:  "2025-02-05",
			CloseDate:       "2025-01-20",
			ShareCount:      200,
			StrikePrice:     d("150.5"),
			PremiumReceived: d("300.25"),
			TotalPremium:    d("300.25"),
			Commission:      d("1.3"),
			ClosingCost:     d("50"),
			ClosePrice:      &price,
			Status:          model.TradeStatusClosed,
			Note:            "line one\nline two",
		},
		{
			TickerSymbol:    "AMD",
			Strategy:        "CSP ",
			StartDate:       "2025-03-01",
			ExpirationDate:  "2025-03-28",
			ShareCount:      100,
			StrikePrice:     d("150"),
			PremiumReceived: d("120"),
			TotalPremium:    d("120"),
			Commission:      d("0"),
			ClosingCost:     d("0"),
			Status:          model.TradeStatusOpen,
			Note:            "  indented note\n",
		},
	}
}

func TestExport_HeaderAndQuoting(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, sampleTrades()))

	lines := strings.SplitN(buf.String(), "\n", 2)
	assert.Equal(t, "start_date,expiration_date,close_date,ticker,strategy,shares,strike,premium_received,commission,closing_cost,status,close_price,note", lines[0])
	assert.Contains(t, buf.String(), `2025-01-01,2025-02-01,,AAPL,CSP,100,200,500,2,0,open,,"sold ""weekly"", rolled later"`)
	assert.Contains(t, buf.String(), `"Covered Call, tight"`)
	assert.Contains(t, buf.String(), "\"line one\nline two\"")
}

func TestExportImport_RoundTrip(t *testing.T) {
	trades := sampleTrades()

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, trades))

	records, err := Import(&buf)
	require.NoError(t, err)
	require.Len(t, records, len(trades))

	for i, rec := range records {
		want, got := trades[i], rec.Trade

		assert.Equal(t, "", got.ID, "identifiers are not part of the file")
		assert.Equal(t, want.StartDate, got.StartDate)
		assert.Equal(t, want.ExpirationDate, got.ExpirationDate)
		assert.Equal(t, want.CloseDate, got.CloseDate)
		assert.Equal(t, want.TickerSymbol, got.TickerSymbol)
		assert.Equal(t, want.Strategy, got.Strategy)
		assert.Equal(t, want.ShareCount, got.ShareCount)
		assert.True(t, want.StrikePrice.Equal(got.StrikePrice))
		assert.True(t, want.PremiumReceived.Equal(got.PremiumReceived))
		assert.True(t, want.Commission.Equal(got.Commission))
		assert.True(t, want.ClosingCost.Equal(got.ClosingCost))
		assert.Equal(t, want.Status, got.Status)
		assert.Equal(t, want.Note, got.Note)
		if want.ClosePrice == nil {
			assert.Nil(t, got.ClosePrice)
		} else {
			require.NotNil(t, got.ClosePrice)
			assert.True(t, want.ClosePrice.Equal(*got.ClosePrice))
		}
	}

	assert.Equal(t, 2, records[0].Line)
	assert.Equal(t, 3, records[1].Line)
	assert.Equal(t, 5, records[2].Line)
}

func TestImport_UnknownStatusKeptForValidation(t *testing.T) {
	records, err := Import(strings.NewReader("ticker,status\nAAPL,clsoed\nMSFT,\nINTC,Cerrada\n"))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, model.TradeStatus("clsoed"), records[0].Trade.Status)
	assert.False(t, records[0].Trade.Status.Valid())
	assert.Equal(t, model.TradeStatusOpen, records[1].Trade.Status)
	assert.Equal(t, model.TradeStatusClosed, records[2].Trade.Status)
}

func TestImport_LegacyHeadersAndBlankRows(t *testing.T) {
	input := "\ufefffecha_inicio,fecha_vencimiento,Ticker,Estrategia,Acciones,Strike,Prima_Recibida,Comision,Estado,Notas,extra\n" +
		"2024-03-01,2024-03-28,clsk,CSP,100,10,25,1.3,Abierta,\"uno, dos\",ignored\n" +
		",,,,,,,,,,\n" +
		"\n" +
		"2024-04-01,2024-04-26,intc,CC,200,22.5,35,0,cerrada,,\n"

	records, err := Import(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0].Trade
	assert.Equal(t, "CLSK", first.TickerSymbol)
	assert.Equal(t, "2024-03-01", first.StartDate)
	assert.Equal(t, 100, first.ShareCount)
	assert.True(t, first.PremiumReceived.Equal(d("25")))
	assert.True(t, first.TotalPremium.Equal(d("25")))
	assert.Equal(t, model.TradeStatusOpen, first.Status)
	assert.Equal(t, "uno, dos", first.Note)

	second := records[1]
	assert.Equal(t, "INTC", second.Trade.TickerSymbol)
	assert.Equal(t, model.TradeStatusClosed, second.Trade.Status)
	assert.Equal(t, 5, second.Line)
}

func TestImport_ShortRowsAndBadNumbers(t *testing.T) {
	input := "ticker,shares,strike,note\nAMD,abc\n"

	records, err := Import(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)

	trade := records[0].Trade
	assert.Equal(t, "AMD", trade.TickerSymbol)
	assert.Equal(t, 0, trade.ShareCount)
	assert.True(t, trade.StrikePrice.IsZero())
	assert.Equal(t, "", trade.Note)
}

func TestImport_Errors(t *testing.T) {
	_, err := Import(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoHeader)

	_, err = Import(strings.NewReader("ticker,note\nAAPL,\"unterminated\n"))
	assert.Error(t, err)
}
