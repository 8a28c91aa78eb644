// Package pricing talks to the market-data provider and reads the reference
// ticker list the store is seeded from.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/domain/models"
)

// ErrUnknownSymbol is returned when the provider does not know a symbol.
var ErrUnknownSymbol = errors.New("unknown symbol")

// Source supplies prices and display names for ticker symbols.
type Source interface {
	// Quote returns the most recent close for symbol. Name may be empty.
	Quote(ctx context.Context, symbol string) (models.Quote, error)
	// Describe returns the display name of symbol.
	Describe(ctx context.Context, symbol string) (string, error)
}

// FetchError ties a provider failure to the symbol being fetched.
type FetchError struct {
	Symbol string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Symbol, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
