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

// CreateTicker inserts a ticker. An invalid price stores the ticker as not
// yet priced.
func (s *Storage) CreateTicker(ctx context.Context, symbol, name string, price decimal.NullDecimal) error {
	const op = "storage.sqlstore.CreateTicker"

	if err := s.insertTicker(ctx, s.db, symbol, name, price); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// CreateTickers inserts every ticker in one transaction: either all of them
// are stored or none is.
func (s *Storage) CreateTickers(ctx context.Context, tickers []models.Ticker) error {
	const op = "storage.sqlstore.CreateTickers"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, t := range tickers {
		if err := s.insertTicker(ctx, tx, t.Symbol, t.CompanyName, t.Price); err != nil {
			return fmt.Errorf("%s: %s: %w", op, t.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Storage) insertTicker(ctx context.Context, db execer, symbol, name string, price decimal.NullDecimal) error {
	if price.Valid {
		price.Decimal = roundPrice(price.Decimal)
	}

	_, err := db.ExecContext(ctx,
		"INSERT INTO tickers (ticker_symbol, company_name, current_price) VALUES ($1, $2, $3)",
		normalizeSymbol(symbol), name, s.nullMoney(price),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrTickerExists
		}
		return err
	}

	return nil
}

func (s *Storage) GetTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	const op = "storage.sqlstore.GetTicker"

	var t models.Ticker
	err := s.db.QueryRowContext(ctx,
		"SELECT id, ticker_symbol, company_name, current_price, updated_at FROM tickers WHERE ticker_symbol = $1",
		normalizeSymbol(symbol),
	).Scan(&t.ID, &t.Symbol, &t.CompanyName, &t.Price, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrTickerNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	t.Price = s.fromNullMoney(t.Price)

	return &t, nil
}

// SaveQuote overwrites the cached price of a ticker.
func (s *Storage) SaveQuote(ctx context.Context, quote models.Quote) error {
	const op = "storage.sqlstore.SaveQuote"

	res, err := s.db.ExecContext(ctx, `
		UPDATE tickers SET current_price = $1, updated_at = CURRENT_TIMESTAMP
		WHERE ticker_symbol = $2`,
		s.money(roundPrice(quote.Close)), normalizeSymbol(quote.Symbol),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrTickerNotFound)
	}

	return nil
}

// DeleteTicker removes the ticker and every position referencing it.
func (s *Storage) DeleteTicker(ctx context.Context, symbol string) error {
	const op = "storage.sqlstore.DeleteTicker"

	res, err := s.db.ExecContext(ctx, "DELETE FROM tickers WHERE ticker_symbol = $1", normalizeSymbol(symbol))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrTickerNotFound)
	}

	return nil
}

// Tickers lists every ticker with its cached price, ordered by symbol.
func (s *Storage) Tickers(ctx context.Context) ([]models.TickerPrice, error) {
	const op = "storage.sqlstore.Tickers"

	rows, err := s.db.QueryContext(ctx, "SELECT ticker_symbol, current_price FROM tickers ORDER BY ticker_symbol")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer s.closeRows(rows, "tickers")

	var out []models.TickerPrice
	for rows.Next() {
		var t models.TickerPrice
		if err := rows.Scan(&t.Symbol, &t.Price); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		t.Price = s.fromNullMoney(t.Price)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func (s *Storage) TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	const op = "storage.sqlstore.TickerPrice"

	var price decimal.NullDecimal
	err := s.db.QueryRowContext(ctx,
		"SELECT current_price FROM tickers WHERE ticker_symbol = $1", normalizeSymbol(symbol),
	).Scan(&price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("%s: %w", op, storage.ErrTickerNotFound)
		}
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}
	if !price.Valid {
		return decimal.Zero, fmt.Errorf("%s: %w", op, storage.ErrTickerNotPriced)
	}

	return s.fromMoney(price.Decimal), nil
}
