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

// SaveUser inserts a user with a zero balance and returns its id.
func (s *Storage) SaveUser(ctx context.Context, username string, passHash []byte, email *string) (int64, error) {
	const op = "storage.sqlstore.SaveUser"

	var id int64
	err := s.db.QueryRowContext(ctx,
		"INSERT INTO users (username, password_hash, email) VALUES ($1, $2, $3) RETURNING id",
		username, string(passHash), email,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (s *Storage) GetUser(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.sqlstore.GetUser"

	var (
		user  models.User
		email sql.NullString
	)

	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, password_hash, email, balance, created_at FROM users WHERE username = $1",
		username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &email, &user.Balance, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user.Balance = s.fromMoney(user.Balance)

	if email.Valid {
		user.Email = &email.String
	}

	return &user, nil
}

func (s *Storage) ContainsUser(ctx context.Context, username string) (bool, error) {
	const op = "storage.sqlstore.ContainsUser"

	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM users WHERE username = $1", username).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return true, nil
}

// DeleteUser removes the user; its portfolios and their positions go with it.
func (s *Storage) DeleteUser(ctx context.Context, username string) error {
	const op = "storage.sqlstore.DeleteUser"

	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE username = $1", username)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	return nil
}

func (s *Storage) Balance(ctx context.Context, username string) (decimal.Decimal, error) {
	const op = "storage.sqlstore.Balance"

	var balance decimal.Decimal
	err := s.db.QueryRowContext(ctx, "SELECT balance FROM users WHERE username = $1", username).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}

	return s.fromMoney(balance), nil
}

func (s *Storage) Deposit(ctx context.Context, username string, amount decimal.Decimal) error {
	const op = "storage.sqlstore.Deposit"

	if !validAmount(amount) {
		return fmt.Errorf("%s: %w", op, storage.ErrInvalidAmount)
	}

	res, err := s.db.ExecContext(ctx, "UPDATE users SET balance = balance + $1 WHERE username = $2", s.money(amount), username)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	return nil
}

// Withdraw debits the balance only when it covers the amount; otherwise the
// balance is left untouched and ErrInsufficientFunds is returned.
func (s *Storage) Withdraw(ctx context.Context, username string, amount decimal.Decimal) error {
	const op = "storage.sqlstore.Withdraw"

	if !validAmount(amount) {
		return fmt.Errorf("%s: %w", op, storage.ErrInvalidAmount)
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET balance = balance - $1 WHERE username = $2 AND balance >= $1",
		s.money(amount), username,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n > 0 {
		return nil
	}

	exists, err := s.ContainsUser(ctx, username)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	return fmt.Errorf("%s: %w", op, storage.ErrInsufficientFunds)
}
