// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// and converting between cents and decimal representations.
package core

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Money is an amount in cents. Aggregation always happens in cents.
type Money struct {
	Cents int64
}

// maxCents keeps float conversions inside the exactly representable range.
const maxCents = 1 << 53

// MaxMoney is the largest amount a budget line holds; larger input is
// clamped to it.
var MaxMoney = Money{Cents: maxCents}

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrAmountTooLarge = errors.New("amount too large")
)

// ParseDecimalToCents converts a non-negative decimal string to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,34") -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil (rounds up)
//	ParseDecimalToCents("0") -> 0, nil
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" && fracPart == "" {
		return 0, ErrInvalidAmount
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil || iv > maxCents/100 {
		return 0, ErrAmountTooLarge
	}
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	return iv*100 + fracCents, nil
}

// CoerceAmount turns edit-buffer text into a non-negative amount. Anything
// that does not read as a non-negative number becomes zero; numbers above
// MaxMoney become MaxMoney.
func CoerceAmount(s string) Money {
	cents, err := ParseDecimalToCents(s)
	switch {
	case err == nil:
		return Money{Cents: cents}
	case errors.Is(err, ErrAmountTooLarge):
		return MaxMoney
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	switch {
	case errors.Is(err, strconv.ErrRange) && v > 0:
		return MaxMoney
	case err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0:
		return Money{}
	case v*100 > maxCents:
		return MaxMoney
	}
	return MoneyFromFloat(v)
}

// MoneyFromFloat rounds a decimal amount half away from zero to cents.
func MoneyFromFloat(v float64) Money {
	return Money{Cents: int64(math.Round(v * 100))}
}

// Float returns the amount as a decimal number, the persisted representation.
func (m Money) Float() float64 {
	return float64(m.Cents) / 100.0
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

func (m Money) IsNegative() bool {
	return m.Cents < 0
}

// FormatAmount renders a stored amount as edit-buffer text using the shortest
// decimal representation, so 1234.5 becomes "1234.5" and 0 becomes "0".
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
