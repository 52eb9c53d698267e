// Package core provides money parsing and handling utilities.
//
// This file contains the Money type used for every amount in the ledger.
// Money is an exact decimal quantized to two fractional digits; floats are
// only produced at display boundaries.
package core

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const moneyPlaces = 2

// MaxAmount is the largest amount a NUMERIC(12,2) column holds.
var MaxAmount = MoneyFromCents(999_999_999_999)

// Money is an exact amount with two fractional digits.
// The zero value is 0.00.
type Money struct {
	d decimal.Decimal
}

// NewMoney quantizes d to two fractional digits.
func NewMoney(d decimal.Decimal) Money {
	return Money{d: d.Round(moneyPlaces)}
}

// MoneyFromCents builds a Money value from an integer number of cents.
func MoneyFromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -moneyPlaces)}
}

// ParseMoney converts a decimal string to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Values
// with more than two significant fractional digits are rejected rather than
// rounded. Unlike ParsePositiveMoney it accepts zero and negative values,
// which can appear in stored running totals.
//
// Examples:
//
//	ParseMoney("12.34")  -> 12.34
//	ParseMoney("12,3")   -> 12.30
//	ParseMoney("12.345") -> ErrAmountPrecision
//	ParseMoney("-3")     -> -3.00
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if !d.Equal(d.Round(moneyPlaces)) {
		return Money{}, ErrAmountPrecision
	}
	return NewMoney(d), nil
}

// ParsePositiveMoney parses a user supplied amount; the result must be > 0.
func ParsePositiveMoney(s string) (Money, error) {
	m, err := ParseMoney(s)
	if err != nil {
		return Money{}, err
	}
	if !m.IsPositive() {
		return Money{}, ErrInvalidAmount
	}
	return m, nil
}

// MustParseMoney is ParseMoney for literals in tests and seeds.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(fmt.Sprintf("core: invalid money literal %q", s))
	}
	return m
}

func (m Money) Add(o Money) Money { return NewMoney(m.d.Add(o.d)) }

func (m Money) Sub(o Money) Money { return NewMoney(m.d.Sub(o.d)) }

func (m Money) IsPositive() bool { return m.d.IsPositive() }

func (m Money) IsNegative() bool { return m.d.IsNegative() }

func (m Money) IsZero() bool { return m.d.IsZero() }

// ExceedsMax reports whether the magnitude of m is above MaxAmount.
func (m Money) ExceedsMax() bool { return m.d.Abs().GreaterThan(MaxAmount.d) }

// Cmp returns -1, 0 or +1 like decimal.Decimal.Cmp.
func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

// Decimal exposes the underlying value for arithmetic outside the package.
func (m Money) Decimal() decimal.Decimal { return m.d }

// Float64 returns the amount as a float64 for chart scaling only.
// Use Money arithmetic for anything that is stored.
func (m Money) Float64() float64 {
	f, _ := m.d.Float64()
	return f
}

// String returns the canonical transport form, always with two fractional
// digits (e.g. "30.00").
func (m Money) String() string {
	return m.d.StringFixed(moneyPlaces)
}

// Format renders the amount for display in US dollars ("$1,234.56").
func (m Money) Format() string {
	s := m.d.Abs().StringFixed(moneyPlaces)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	out := "$" + b.String() + "." + frac
	if m.d.IsNegative() {
		return "-" + out
	}
	return out
}

// MarshalJSON encodes Money as a decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts both "12.34" and 12.34.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*m = Money{}
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = s
	}
	parsed, err := ParseMoney(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Scan implements sql.Scanner for TEXT, NUMERIC and DECIMAL columns.
func (m *Money) Scan(src any) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return fmt.Errorf("scan money: %w", err)
	}
	*m = NewMoney(d)
	return nil
}

// Value implements driver.Valuer; amounts are written as decimal strings.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}
