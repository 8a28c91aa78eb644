package tracker

import (
	"context"
	"errors"
	"fmt"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/domain/models"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/storage"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/valuation"
	"github.com/shopspring/decimal"
	"log/slog"
)

// Buy purchases quantity shares of symbol at its stored price, debiting the
// portfolio owner.
func (t *Tracker) Buy(ctx context.Context, portfolioID int64, symbol string, quantity int64) (*models.Position, error) {
	const op = "tracker.Buy"

	if quantity <= 0 {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrInvalidAmount)
	}

	lot, err := t.store.BuyPosition(ctx, portfolioID, symbol, quantity)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	t.logger.Info("Bought",
		slog.Int64("portfolio_id", portfolioID),
		slog.String("symbol", lot.Symbol),
		slog.Int64("quantity", quantity),
		slog.String("price", lot.PurchasePrice.String()),
	)
	return lot, nil
}

// Sell sells quantity shares of symbol at its stored price, oldest lots
// first, and credits the proceeds to the portfolio owner.
func (t *Tracker) Sell(ctx context.Context, portfolioID int64, symbol string, quantity int64) (decimal.Decimal, error) {
	const op = "tracker.Sell"

	if quantity <= 0 {
		return decimal.Zero, fmt.Errorf("%s: %w", op, storage.ErrInvalidAmount)
	}

	proceeds, err := t.store.SellPosition(ctx, portfolioID, symbol, quantity)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}

	t.logger.Info("Sold",
		slog.Int64("portfolio_id", portfolioID),
		slog.String("symbol", symbol),
		slog.Int64("quantity", quantity),
		slog.String("proceeds", proceeds.String()),
	)
	return proceeds, nil
}

// Valuate values a portfolio at the prices currently in the store. A held
// ticker without a price yields *valuation.MissingPriceError.
func (t *Tracker) Valuate(ctx context.Context, portfolioID int64) (valuation.Report, error) {
	const op = "tracker.Valuate"

	if _, err := t.store.GetPortfolio(ctx, portfolioID); err != nil {
		return valuation.Report{}, fmt.Errorf("%s: %w", op, err)
	}

	holdings, err := t.store.Holdings(ctx, portfolioID)
	if err != nil {
		return valuation.Report{}, fmt.Errorf("%s: %w", op, err)
	}

	prices := make(map[string]decimal.Decimal, len(holdings))
	for _, h := range holdings {
		price, err := t.store.TickerPrice(ctx, h.Symbol)
		if err != nil {
			if errors.Is(err, storage.ErrTickerNotPriced) {
				return valuation.Report{}, fmt.Errorf("%s: %w", op, &valuation.MissingPriceError{Symbol: h.Symbol})
			}
			return valuation.Report{}, fmt.Errorf("%s: %w", op, err)
		}
		prices[h.Symbol] = price
	}

	report, err := valuation.Valuate(holdings, prices)
	if err != nil {
		return valuation.Report{}, fmt.Errorf("%s: %w", op, err)
	}
	return report, nil
}

// Lots lists the individual lots of a portfolio in purchase order.
func (t *Tracker) Lots(ctx context.Context, portfolioID int64) ([]models.Position, error) {
	return t.store.Lots(ctx, portfolioID)
}
