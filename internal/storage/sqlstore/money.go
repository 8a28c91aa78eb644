package sqlstore

import (
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/config"
	"github.com/shopspring/decimal"
)

// moneyScale is the number of fractional digits kept for balances and prices.
const moneyScale = 6

// money converts an amount to its column value. SQLite has no exact decimal
// type and would do arithmetic on REAL values, so there money columns hold
// integer micro-units. PostgreSQL stores NUMERIC(20, 6) and gets the decimal
// as is.
func (s *Storage) money(d decimal.Decimal) any {
	if s.driver == config.DriverSQLite {
		return d.Shift(moneyScale).IntPart()
	}
	return d
}

func (s *Storage) nullMoney(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return s.money(d.Decimal)
}

func (s *Storage) fromMoney(d decimal.Decimal) decimal.Decimal {
	if s.driver == config.DriverSQLite {
		return d.Shift(-moneyScale)
	}
	return d
}

func (s *Storage) fromNullMoney(d decimal.NullDecimal) decimal.NullDecimal {
	if d.Valid {
		d.Decimal = s.fromMoney(d.Decimal)
	}
	return d
}

// validAmount accepts positive amounts that fit the stored scale exactly, so
// nothing is rounded away silently.
func validAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(d.Truncate(moneyScale))
}

// roundPrice brings a provider price to the stored scale.
func roundPrice(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyScale)
}
