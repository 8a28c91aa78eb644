package models

import (
	"github.com/shopspring/decimal"
	"time"
)

type User struct {
	ID           int64           `json:"id"`
	Username     string          `json:"username"`
	PasswordHash string          `json:"-"`
	Email        *string         `json:"email,omitempty"`
	Balance      decimal.Decimal `json:"balance"`
	CreatedAt    time.Time       `json:"created_at"`
}

type Portfolio struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
