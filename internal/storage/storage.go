// Package storage holds the errors shared by every store implementation.
//
// Expected business conditions (duplicates, missing rows, insufficient funds)
// are reported with these sentinels so callers can branch with errors.Is.
// Anything else is an unexpected store failure.
package storage

import "errors"

var (
	ErrUserExists           = errors.New("user already exists")
	ErrUserNotFound         = errors.New("user not found")
	ErrPortfolioNotFound    = errors.New("portfolio not found")
	ErrTickerExists         = errors.New("ticker already exists")
	ErrTickerNotFound       = errors.New("ticker not found")
	ErrTickerNotPriced      = errors.New("ticker has no price yet")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	ErrInvalidAmount        = errors.New("amount must be positive with at most 6 decimal places")
)
