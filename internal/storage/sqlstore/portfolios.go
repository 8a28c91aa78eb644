package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/domain/models"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/storage"
)

func (s *Storage) CreatePortfolio(ctx context.Context, userID int64, name string) (*models.Portfolio, error) {
	const op = "storage.sqlstore.CreatePortfolio"

	var id int64
	err := s.db.QueryRowContext(ctx,
		"INSERT INTO portfolios (user_id, name) VALUES ($1, $2) RETURNING id",
		userID, name,
	).Scan(&id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.GetPortfolio(ctx, id)
}

func (s *Storage) GetPortfolio(ctx context.Context, id int64) (*models.Portfolio, error) {
	const op = "storage.sqlstore.GetPortfolio"

	var p models.Portfolio
	err := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, name, created_at FROM portfolios WHERE id = $1", id,
	).Scan(&p.ID, &p.UserID, &p.Name, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrPortfolioNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &p, nil
}

func (s *Storage) Portfolios(ctx context.Context, userID int64) ([]models.Portfolio, error) {
	const op = "storage.sqlstore.Portfolios"

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, name, created_at FROM portfolios WHERE user_id = $1 ORDER BY id", userID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer s.closeRows(rows, "portfolios")

	var out []models.Portfolio
	for rows.Next() {
		var p models.Portfolio
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// DeletePortfolio removes the portfolio and, by cascade, its positions.
func (s *Storage) DeletePortfolio(ctx context.Context, id int64) error {
	const op = "storage.sqlstore.DeletePortfolio"

	res, err := s.db.ExecContext(ctx, "DELETE FROM portfolios WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrPortfolioNotFound)
	}

	return nil
}
