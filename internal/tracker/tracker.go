// Package tracker is the application layer over the store and the price
// source: store initialization and seeding, ticker refresh, account
// operations, trades and portfolio valuation.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/config"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/domain/models"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/lib/password"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/pricing"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/storage"
	"github.com/shopspring/decimal"
	"log/slog"
)

// ErrInvalidCredentials covers both an unknown username and a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

type Store interface {
	Migrate(ctx context.Context) error
	IsInitialized(ctx context.Context) (bool, error)

	SaveUser(ctx context.Context, username string, passHash []byte, email *string) (int64, error)
	GetUser(ctx context.Context, username string) (*models.User, error)
	DeleteUser(ctx context.Context, username string) error
	Balance(ctx context.Context, username string) (decimal.Decimal, error)
	Deposit(ctx context.Context, username string, amount decimal.Decimal) error
	Withdraw(ctx context.Context, username string, amount decimal.Decimal) error

	CreatePortfolio(ctx context.Context, userID int64, name string) (*models.Portfolio, error)
	GetPortfolio(ctx context.Context, id int64) (*models.Portfolio, error)
	Portfolios(ctx context.Context, userID int64) ([]models.Portfolio, error)
	DeletePortfolio(ctx context.Context, id int64) error

	CreateTicker(ctx context.Context, symbol, name string, price decimal.NullDecimal) error
	CreateTickers(ctx context.Context, tickers []models.Ticker) error
	DeleteTicker(ctx context.Context, symbol string) error
	GetTicker(ctx context.Context, symbol string) (*models.Ticker, error)
	SaveQuote(ctx context.Context, quote models.Quote) error
	Tickers(ctx context.Context) ([]models.TickerPrice, error)
	TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error)

	Holdings(ctx context.Context, portfolioID int64) ([]models.Holding, error)
	Lots(ctx context.Context, portfolioID int64) ([]models.Position, error)
	BuyPosition(ctx context.Context, portfolioID int64, symbol string, quantity int64) (*models.Position, error)
	SellPosition(ctx context.Context, portfolioID int64, symbol string, quantity int64) (decimal.Decimal, error)
}

type Tracker struct {
	store  Store
	source pricing.Source
	seed   config.Seed
	logger *slog.Logger
}

func New(store Store, source pricing.Source, seed config.Seed, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		source: source,
		seed:   seed,
		logger: logger,
	}
}

// CreateUser registers a user with a zero balance. A taken username fails
// with storage.ErrUserExists and leaves the existing user untouched.
func (t *Tracker) CreateUser(ctx context.Context, username, pass string, email *string) (int64, error) {
	const op = "tracker.CreateUser"

	hash, err := password.Hash(pass)
	if err != nil {
		t.logger.Error("Failed to hash password", "error", err)
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id, err := t.store.SaveUser(ctx, username, hash, email)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	t.logger.Info("Register new user", slog.String("username", username))
	return id, nil
}

// Authenticate returns the user when the password matches, and
// ErrInvalidCredentials otherwise.
func (t *Tracker) Authenticate(ctx context.Context, username, pass string) (*models.User, error) {
	const op = "tracker.Authenticate"

	user, err := t.store.GetUser(ctx, username)
	if err != nil && !errors.Is(err, storage.ErrUserNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var hash []byte
	if user != nil {
		hash = []byte(user.PasswordHash)
	}
	if !password.Verify(hash, pass) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// VerifyUser reports whether username exists and pass is its password.
func (t *Tracker) VerifyUser(ctx context.Context, username, pass string) (bool, error) {
	_, err := t.Authenticate(ctx, username, pass)
	if errors.Is(err, ErrInvalidCredentials) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *Tracker) DeleteUser(ctx context.Context, username string) error {
	if err := t.store.DeleteUser(ctx, username); err != nil {
		return err
	}
	t.logger.Info("Deleted user", slog.String("username", username))
	return nil
}

func (t *Tracker) Balance(ctx context.Context, username string) (decimal.Decimal, error) {
	return t.store.Balance(ctx, username)
}

func (t *Tracker) Deposit(ctx context.Context, username string, amount decimal.Decimal) error {
	if err := t.store.Deposit(ctx, username, amount); err != nil {
		return err
	}
	t.logger.Info("Deposit", slog.String("username", username), slog.String("amount", amount.String()))
	return nil
}

func (t *Tracker) Withdraw(ctx context.Context, username string, amount decimal.Decimal) error {
	if err := t.store.Withdraw(ctx, username, amount); err != nil {
		if errors.Is(err, storage.ErrInsufficientFunds) {
			t.logger.Info("Withdrawal refused", slog.String("username", username), slog.String("amount", amount.String()))
		}
		return err
	}
	t.logger.Info("Withdrawal", slog.String("username", username), slog.String("amount", amount.String()))
	return nil
}

func (t *Tracker) CreatePortfolio(ctx context.Context, userID int64, name string) (*models.Portfolio, error) {
	return t.store.CreatePortfolio(ctx, userID, name)
}

func (t *Tracker) GetPortfolio(ctx context.Context, id int64) (*models.Portfolio, error) {
	return t.store.GetPortfolio(ctx, id)
}

func (t *Tracker) Portfolios(ctx context.Context, userID int64) ([]models.Portfolio, error) {
	return t.store.Portfolios(ctx, userID)
}

func (t *Tracker) DeletePortfolio(ctx context.Context, id int64) error {
	return t.store.DeletePortfolio(ctx, id)
}
