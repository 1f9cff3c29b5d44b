// Package kpi aggregates trades into portfolio and per-ticker figures.
// Break-even and ROI are linear approximations: no time value, no greeks.
package kpi

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"optionsledger/src/model"
)

var hundred = decimal.NewFromInt(100)

// ----- portfolio totals -----

type Totals struct {
	TotalTrades     int             `json:"total_trades"`
	TotalPremium    decimal.Decimal `json:"total_premium"`
	TotalCosts      decimal.Decimal `json:"total_costs"`
	NetGain         decimal.Decimal `json:"net_gain"`
	CapitalInvested decimal.Decimal `json:"capital_invested"`
	OverallROI      decimal.Decimal `json:"overall_roi"`
}

// Compute sums every trade regardless of status. An empty slice yields zeros.
func Compute(trades []model.Trade) Totals {
	totals := Totals{
		TotalTrades:     len(trades),
		TotalPremium:    decimal.Zero,
		TotalCosts:      decimal.Zero,
		CapitalInvested: decimal.Zero,
	}

	for _, t := range trades {
		totals.TotalPremium = totals.TotalPremium.Add(t.CumulativePremium())
		totals.TotalCosts = totals.TotalCosts.Add(t.Costs())
		totals.CapitalInvested = totals.CapitalInvested.Add(t.CapitalAtRisk())
	}

	totals.NetGain = totals.TotalPremium.Sub(totals.TotalCosts)
	totals.OverallROI = roi(totals.NetGain, totals.CapitalInvested)
	return totals
}

// TradeROI is net gain over capital at risk for one trade, in percent.
func TradeROI(t model.Trade) decimal.Decimal {
	return roi(t.CumulativePremium().Sub(t.Costs()), t.CapitalAtRisk())
}

func roi(net, capital decimal.Decimal) decimal.Decimal {
	if !capital.IsPositive() {
		return decimal.Zero
	}
	return net.Div(capital).Mul(hundred)
}

// ----- per ticker -----

type TickerSummary struct {
	Ticker          string          `json:"ticker"`
	TradeCount      int             `json:"trade_count"`
	TotalShares     int             `json:"total_shares"`
	TotalPremium    decimal.Decimal `json:"total_premium"`
	TotalCosts      decimal.Decimal `json:"total_costs"`
	NetGain         decimal.Decimal `json:"net_gain"`
	CapitalInvested decimal.Decimal `json:"capital_invested"`
	ROI             decimal.Decimal `json:"roi"`
	BreakEvenPrice  decimal.Decimal `json:"break_even_price"`
}

// ByTicker groups trades by upper-cased ticker. Output is ordered by ticker.
func ByTicker(trades []model.Trade) []TickerSummary {
	groups := make(map[string]*TickerSummary)

	for _, t := range trades {
		key := strings.ToUpper(strings.TrimSpace(t.TickerSymbol))
		s, ok := groups[key]
		if !ok {
			s = &TickerSummary{
				Ticker:          key,
				TotalPremium:    decimal.Zero,
				TotalCosts:      decimal.Zero,
				CapitalInvested: decimal.Zero,
			}
			groups[key] = s
		}

		s.TradeCount++
		s.TotalShares += t.ShareCount
		s.TotalPremium = s.TotalPremium.Add(t.CumulativePremium())
		s.TotalCosts = s.TotalCosts.Add(t.Costs())
		s.CapitalInvested = s.CapitalInvested.Add(t.CapitalAtRisk())
	}

	out := make([]TickerSummary, 0, len(groups))
	for _, s := range groups {
		s.NetGain = s.TotalPremium.Sub(s.TotalCosts)
		s.ROI = roi(s.NetGain, s.CapitalInvested)
		s.BreakEvenPrice = breakEven(*s)
		out = append(out, *s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// breakEven is the share-weighted average strike minus premium per share.
func breakEven(s TickerSummary) decimal.Decimal {
	if s.TotalShares <= 0 {
		return decimal.Zero
	}
	shares := decimal.NewFromInt(int64(s.TotalShares))
	averageStrike := s.CapitalInvested.Div(shares)
	premiumPerShare := s.TotalPremium.Div(shares)
	return averageStrike.Sub(premiumPerShare)
}

// SortByROI orders summaries by descending ROI in place. Ties keep their
// current relative order.
func SortByROI(summaries []TickerSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].ROI.GreaterThan(summaries[j].ROI)
	})
}

// Top returns the n best tickers by ROI. n <= 0 returns them all.
func Top(summaries []TickerSummary, n int) []TickerSummary {
	ranked := make([]TickerSummary, len(summaries))
	copy(ranked, summaries)
	SortByROI(ranked)
	if n > 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}
