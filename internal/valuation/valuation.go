// Package valuation turns aggregated holdings and current prices into
// per-ticker figures and portfolio totals. It holds no formatting: amounts
// are returned as decimals for the caller to render.
package valuation

import (
	"fmt"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/domain/models"
	"github.com/shopspring/decimal"
)

// MissingPriceError is returned when a holding has no current price.
type MissingPriceError struct {
	Symbol string
}

func (e *MissingPriceError) Error() string {
	return fmt.Sprintf("no current price for %s", e.Symbol)
}

// Row is the valuation of one holding.
type Row struct {
	Symbol       string          `json:"symbol"`
	Quantity     int64           `json:"quantity"`
	AveragePrice decimal.Decimal `json:"average_price"`
	CostBasis    decimal.Decimal `json:"cost_basis"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	CurrentValue decimal.Decimal `json:"current_value"`
	ProfitLoss   decimal.Decimal `json:"profit_loss"`
}

type Totals struct {
	CostBasis  decimal.Decimal `json:"cost_basis"`
	Value      decimal.Decimal `json:"value"`
	ProfitLoss decimal.Decimal `json:"profit_loss"`
}

type Report struct {
	Rows   []Row  `json:"rows"`
	Totals Totals `json:"totals"`
}

// Valuate values every holding at prices[symbol]. For each row
// CurrentValue - ProfitLoss == CostBasis, and the totals are the plain sums
// of the rows.
func Valuate(holdings []models.Holding, prices map[string]decimal.Decimal) (Report, error) {
	report := Report{
		Rows: make([]Row, 0, len(holdings)),
		Totals: Totals{
			CostBasis:  decimal.Zero,
			Value:      decimal.Zero,
			ProfitLoss: decimal.Zero,
		},
	}

	for _, h := range holdings {
		price, ok := prices[h.Symbol]
		if !ok {
			return Report{}, &MissingPriceError{Symbol: h.Symbol}
		}

		row := Value(h, price)
		report.Rows = append(report.Rows, row)

		report.Totals.CostBasis = report.Totals.CostBasis.Add(row.CostBasis)
		report.Totals.Value = report.Totals.Value.Add(row.CurrentValue)
		report.Totals.ProfitLoss = report.Totals.ProfitLoss.Add(row.ProfitLoss)
	}

	return report, nil
}

// Value computes one row. A zero quantity has no meaningful average price;
// it values to zero and its whole cost basis counts as loss.
func Value(h models.Holding, price decimal.Decimal) Row {
	qty := decimal.NewFromInt(h.Quantity)

	row := Row{
		Symbol:       h.Symbol,
		Quantity:     h.Quantity,
		AveragePrice: decimal.Zero,
		CostBasis:    h.CostBasis,
		CurrentPrice: price,
		CurrentValue: qty.Mul(price),
	}
	if h.Quantity != 0 {
		row.AveragePrice = h.CostBasis.Div(qty)
	}
	row.ProfitLoss = row.CurrentValue.Sub(h.CostBasis)

	return row
}
