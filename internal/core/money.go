// Package core holds the subscription model and the derived-state engine
// behind the dashboard.
//
// This file contains money parsing and conversion helpers. Amounts are kept
// in cents; decimal.Decimal is used only at the edges.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseMoney converts a decimal string to Money with half-up rounding to
// cents. Both dot (9.99) and comma (9,99) separators are accepted. Zero is a
// valid amount; negative values are rejected.
//
// Examples:
//
//	ParseMoney("120")    -> {12000}, nil
//	ParseMoney("9,99")   -> {999}, nil
//	ParseMoney("1.005")  -> {101}, nil
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
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal rounds d to cents.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return Money{}, ErrNegativeAmount
	}
	return Money{Cents: d.Shift(2).Round(0).IntPart()}, nil
}

// Dollars returns a whole-unit Money.
func Dollars(units int64) Money {
	return Money{Cents: units * 100}
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Float returns the amount in currency units for charting and spreadsheets.
// Use cents for arithmetic.
func (m Money) Float() float64 {
	return m.Decimal().InexactFloat64()
}
