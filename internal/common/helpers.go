// Package common holds helpers used across the project: money and
// multiplier formatting and the parsing of operator-entered values.
package common

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// MultiplierScale is the fixed-point factor of stored multipliers.
// 900000 means 90.0000x.
const MultiplierScale = 10000

// MinorUnits is the number of minor units (paisa) in one major unit.
const MinorUnits = 100

// FormatAmount renders minor units as a major-unit string with two decimals.
//
//	FormatAmount(90000) → "900.00"
//	FormatAmount(-5)    → "-0.05"
func FormatAmount(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

// FormatMultiplier renders a scaled multiplier as "90x" or "9.5x".
func FormatMultiplier(scaled int64) string {
	return decimal.New(scaled, -4).String() + "x"
}

// ParseMultiplier turns an operator value like "90" or "1.95" into the
// scaled integer form. It rejects negatives and more than four decimals.
func ParseMultiplier(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("bad multiplier %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("bad multiplier %q: negative", s)
	}
	scaled := d.Shift(4)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("bad multiplier %q: more than 4 decimals", s)
	}
	return scaled.IntPart(), nil
}

// ParseInt64CSV parses "1, 2,3" into []int64{1,2,3}.
func ParseInt64CSV(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
