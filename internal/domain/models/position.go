package models

import (
	"github.com/shopspring/decimal"
	"time"
)

// Position is a single lot: one row per (portfolio, ticker, purchase price).
type Position struct {
	PortfolioID   int64           `json:"portfolio_id"`
	Symbol        string          `json:"symbol"`
	Quantity      int64           `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	PurchaseDate  time.Time       `json:"purchase_date"`
}

// CostBasis is quantity × purchase price.
func (p Position) CostBasis() decimal.Decimal {
	return p.PurchasePrice.Mul(decimal.NewFromInt(p.Quantity))
}

// Holding aggregates every lot of one ticker within a portfolio.
type Holding struct {
	Symbol    string          `json:"symbol"`
	Quantity  int64           `json:"quantity"`
	CostBasis decimal.Decimal `json:"cost_basis"`
}
