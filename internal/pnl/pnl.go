// Package pnl computes realized profit from the transaction journal.
package pnl

import (
	"sort"

	"signal-relay-go/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// InstrumentPnL is the realized result of one instrument.
type InstrumentPnL struct {
	Profit     decimal.Decimal `json:"profit"`
	Percentage decimal.Decimal `json:"percentage"`
	// FirstBuy is the percentage denominator: the earliest buy, or 1 when there is none.
	FirstBuy  decimal.Decimal `json:"firstBuy"`
	TotalBuy  decimal.Decimal `json:"totalBuy"`
	TotalSell decimal.Decimal `json:"totalSell"`
}

// Report is the outcome of Compute.
type Report struct {
	Instruments     map[string]InstrumentPnL `json:"instruments"`
	TotalProfit     decimal.Decimal          `json:"totalProfit"`
	TotalPercentage decimal.Decimal          `json:"totalPercentage"`
	Scope           string                   `json:"scope,omitempty"`
}

// Names returns the instrument names of the report in lexical order.
func (r Report) Names() []string {
	names := make([]string, 0, len(r.Instruments))
	for name := range r.Instruments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Compute groups the journal by instrument and sums realized profit. A
// trailing buy is an open position and does not count against profit. When
// scope is non-empty only that instrument is reported.
func Compute(transactions []models.TransactionRecord, scope string) Report {
	sorted := make([]models.TransactionRecord, len(transactions))
	copy(sorted, transactions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Datetime.Before(sorted[j].Datetime)
	})

	groups := make(map[string][]models.TransactionRecord)
	for _, tx := range sorted {
		if scope != "" && tx.Name != scope {
			continue
		}
		groups[tx.Name] = append(groups[tx.Name], tx)
	}

	report := Report{
		Instruments:     make(map[string]InstrumentPnL, len(groups)),
		TotalProfit:     decimal.Zero,
		TotalPercentage: decimal.Zero,
		Scope:           scope,
	}
	denominators := decimal.Zero

	for name, txs := range groups {
		result := instrument(txs)
		report.Instruments[name] = result
		report.TotalProfit = report.TotalProfit.Add(result.Profit)
		denominators = denominators.Add(result.FirstBuy)
	}

	if !denominators.IsZero() {
		report.TotalPercentage = percentage(report.TotalProfit, denominators)
	}
	return report
}

// instrument expects txs in ascending time order.
func instrument(txs []models.TransactionRecord) InstrumentPnL {
	totalBuy := decimal.Zero
	totalSell := decimal.Zero
	var firstBuy *decimal.Decimal
	var last models.Action

	for i := range txs {
		switch txs[i].Action {
		case models.ActionBuy:
			totalBuy = totalBuy.Add(txs[i].UsdtPrice.Decimal)
			if firstBuy == nil {
				firstBuy = &txs[i].UsdtPrice.Decimal
			}
			last = models.ActionBuy
		case models.ActionSell:
			totalSell = totalSell.Add(txs[i].UsdtPrice.Decimal)
			last = models.ActionSell
		}
	}

	if last == models.ActionBuy {
		totalBuy = totalBuy.Sub(txs[len(txs)-1].UsdtPrice.Decimal)
	}

	denominator := decimal.NewFromInt(1)
	if firstBuy != nil && !firstBuy.IsZero() {
		denominator = *firstBuy
	}

	profit := totalSell.Sub(totalBuy)
	return InstrumentPnL{
		Profit:     profit,
		Percentage: percentage(profit, denominator),
		FirstBuy:   denominator,
		TotalBuy:   totalBuy,
		TotalSell:  totalSell,
	}
}

func percentage(profit, denominator decimal.Decimal) decimal.Decimal {
	return profit.Div(denominator).Mul(hundred).Round(2)
}
