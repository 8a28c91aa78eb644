package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/domain/models"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/storage"
	"github.com/shopspring/decimal"
)

// Holdings aggregates the lots of a portfolio per ticker, ordered by symbol.
func (s *Storage) Holdings(ctx context.Context, portfolioID int64) ([]models.Holding, error) {
	const op = "storage.sqlstore.Holdings"

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.ticker_symbol, SUM(p.quantity), SUM(p.quantity * p.purchase_price)
		FROM positions p
		JOIN tickers t ON p.ticker_id = t.id
		WHERE p.portfolio_id = $1
		GROUP BY t.ticker_symbol
		ORDER BY t.ticker_symbol`,
		portfolioID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer s.closeRows(rows, "holdings")

	var out []models.Holding
	for rows.Next() {
		var h models.Holding
		if err := rows.Scan(&h.Symbol, &h.Quantity, &h.CostBasis); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		h.CostBasis = s.fromMoney(h.CostBasis)
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// Lots lists the individual position rows of a portfolio in purchase order.
func (s *Storage) Lots(ctx context.Context, portfolioID int64) ([]models.Position, error) {
	const op = "storage.sqlstore.Lots"

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.portfolio_id, t.ticker_symbol, p.quantity, p.purchase_price, p.purchase_date
		FROM positions p
		JOIN tickers t ON p.ticker_id = t.id
		WHERE p.portfolio_id = $1
		ORDER BY p.id`,
		portfolioID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer s.closeRows(rows, "lots")

	var out []models.Position
	for rows.Next() {
		var p models.Position
		if err := rows.Scan(&p.PortfolioID, &p.Symbol, &p.Quantity, &p.PurchasePrice, &p.PurchaseDate); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		p.PurchasePrice = s.fromMoney(p.PurchasePrice)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// BuyPosition buys quantity shares of symbol at the ticker's cached price for
// the owner of the portfolio. The balance debit and the lot upsert commit
// together or not at all. Buying again at a price already held grows that
// lot instead of adding a row.
func (s *Storage) BuyPosition(ctx context.Context, portfolioID int64, symbol string, quantity int64) (*models.Position, error) {
	const op = "storage.sqlstore.BuyPosition"

	if quantity <= 0 {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrInvalidAmount)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	ownerID, err := portfolioOwner(ctx, tx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tickerID, price, err := s.pricedTicker(ctx, tx, symbol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cost := price.Mul(decimal.NewFromInt(quantity))
	if err := s.debit(ctx, tx, ownerID, cost); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO positions (portfolio_id, ticker_id, quantity, purchase_price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (portfolio_id, ticker_id, purchase_price)
		DO UPDATE SET quantity = positions.quantity + excluded.quantity`,
		portfolioID, tickerID, quantity, s.money(price),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lot := models.Position{
		PortfolioID:   portfolioID,
		Symbol:        normalizeSymbol(symbol),
		PurchasePrice: price,
	}
	err = tx.QueryRowContext(ctx, `
		SELECT quantity, purchase_date FROM positions
		WHERE portfolio_id = $1 AND ticker_id = $2 AND purchase_price = $3`,
		portfolioID, tickerID, s.money(price),
	).Scan(&lot.Quantity, &lot.PurchaseDate)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &lot, nil
}

// SellPosition sells quantity shares of symbol at the cached price, consuming
// lots oldest first, and credits the owner. It returns the proceeds.
func (s *Storage) SellPosition(ctx context.Context, portfolioID int64, symbol string, quantity int64) (decimal.Decimal, error) {
	const op = "storage.sqlstore.SellPosition"

	if quantity <= 0 {
		return decimal.Zero, fmt.Errorf("%s: %w", op, storage.ErrInvalidAmount)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	ownerID, err := portfolioOwner(ctx, tx, portfolioID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}

	tickerID, price, err := s.pricedTicker(ctx, tx, symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}

	held, err := lotsOf(ctx, tx, portfolioID, tickerID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}

	var total int64
	for _, l := range held {
		total += l.quantity
	}
	if total < quantity {
		return decimal.Zero, fmt.Errorf("%s: %w", op, storage.ErrInsufficientQuantity)
	}

	remaining := quantity
	for _, l := range held {
		if remaining == 0 {
			break
		}

		if l.quantity <= remaining {
			_, err = tx.ExecContext(ctx, "DELETE FROM positions WHERE id = $1", l.id)
			remaining -= l.quantity
		} else {
			_, err = tx.ExecContext(ctx, "UPDATE positions SET quantity = quantity - $1 WHERE id = $2", remaining, l.id)
			remaining = 0
		}
		if err != nil {
			return decimal.Zero, fmt.Errorf("%s: %w", op, err)
		}
	}

	proceeds := price.Mul(decimal.NewFromInt(quantity))
	if _, err := tx.ExecContext(ctx, "UPDATE users SET balance = balance + $1 WHERE id = $2", s.money(proceeds), ownerID); err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}

	return proceeds, nil
}

type heldLot struct {
	id       int64
	quantity int64
}

func portfolioOwner(ctx context.Context, tx *sql.Tx, portfolioID int64) (int64, error) {
	var userID int64
	err := tx.QueryRowContext(ctx, "SELECT user_id FROM portfolios WHERE id = $1", portfolioID).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, storage.ErrPortfolioNotFound
	}
	return userID, err
}

func (s *Storage) pricedTicker(ctx context.Context, tx *sql.Tx, symbol string) (int64, decimal.Decimal, error) {
	var (
		id    int64
		price decimal.NullDecimal
	)
	err := tx.QueryRowContext(ctx,
		"SELECT id, current_price FROM tickers WHERE ticker_symbol = $1", normalizeSymbol(symbol),
	).Scan(&id, &price)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, decimal.Zero, storage.ErrTickerNotFound
	}
	if err != nil {
		return 0, decimal.Zero, err
	}
	if !price.Valid {
		return 0, decimal.Zero, storage.ErrTickerNotPriced
	}
	return id, s.fromMoney(price.Decimal), nil
}

func (s *Storage) debit(ctx context.Context, tx *sql.Tx, userID int64, amount decimal.Decimal) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE users SET balance = balance - $1 WHERE id = $2 AND balance >= $1",
		s.money(amount), userID,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrInsufficientFunds
	}
	return nil
}

// lotsOf reads every lot of one ticker in FIFO order. The row id follows
// purchase order even when two lots share a timestamp. Rows are fully
// drained before returning so the transaction's connection is free for
// writes.
func lotsOf(ctx context.Context, tx *sql.Tx, portfolioID, tickerID int64) ([]heldLot, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, quantity FROM positions
		WHERE portfolio_id = $1 AND ticker_id = $2
		ORDER BY id`,
		portfolioID, tickerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []heldLot
	for rows.Next() {
		var l heldLot
		if err := rows.Scan(&l.id, &l.quantity); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
