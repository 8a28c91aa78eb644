package models

import (
	"github.com/shopspring/decimal"
	"time"
)

// Ticker is a security known to the store. Price is invalid until the first
// successful fetch.
type Ticker struct {
	ID          int64               `json:"id"`
	Symbol      string              `json:"symbol"`
	CompanyName string              `json:"company_name"`
	Price       decimal.NullDecimal `json:"price"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

type TickerPrice struct {
	Symbol string              `json:"symbol"`
	Price  decimal.NullDecimal `json:"price"`
}

// ReferenceTicker is one entry of the list the ticker table is seeded from.
type ReferenceTicker struct {
	Symbol string `yaml:"symbol" json:"symbol"`
	Name   string `yaml:"name" json:"name"`
}

// Quote is what a price source returns for a symbol.
type Quote struct {
	Symbol string
	Close  decimal.Decimal
}
