// Package core provides the bank fee domain model and its numeric policy.
//
// This file contains the Amount type, the zero-coalescing guard every fee
// read goes through, and the parsing of loosely formatted amounts as they
// appear in spreadsheets and hand-maintained JSON.
package core

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Amount is a monetary value in whole taka. Fees may carry fractional parts
// (a checkbook fee of 250.50) and intermediate results are fractional once
// annual fees are spread across months.
type Amount float64

// Value returns the amount as a float64, reading NaN and ±Inf as zero so no
// non-finite value ever reaches a sum.
func (a Amount) Value() float64 {
	f := float64(a)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// IsZero reports whether the amount contributes nothing to a sum.
func (a Amount) IsZero() bool {
	return a.Value() == 0
}

// Round rounds half up to the nearest whole unit: 2.5 -> 3, -2.5 -> -2.
// Non-finite input rounds to 0.
func Round(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int64(math.Floor(f + 0.5))
}

// ParseAmount converts a loosely formatted amount to an Amount.
//
// It accepts an optional currency sign (৳, Tk, BDT), thousands separators and
// surrounding whitespace. Empty input, "-" and "n/a" read as zero since a blank
// fee cell means the bank does not charge it. Anything else that is not a
// number returns ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("1,200")   -> 1200, nil
//	ParseAmount("৳ 250.50") -> 250.5, nil
//	ParseAmount("")        -> 0, nil
//	ParseAmount("free")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "-", "n/a", "na", "nil", "null", "none":
		return 0, nil
	}
	for _, prefix := range []string{"৳", "BDT", "Tk.", "Tk", "TK"} {
		s = strings.TrimPrefix(s, prefix)
	}
	s = strings.TrimSpace(s)

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "_", "")
	if s == "" {
		return 0, ErrInvalidAmount
	}
	dots := 0
	for _, r := range s {
		if r == '.' {
			dots++
			continue
		}
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return 0, ErrInvalidAmount
		}
	}
	if dots > 1 {
		return 0, ErrInvalidAmount
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) {
		return 0, ErrInvalidAmount
	}
	if neg {
		f = -f
	}
	return Amount(f), nil
}
