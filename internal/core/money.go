// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// and converting between pesewas and cedi representations.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseDecimalToPesewas converts a decimal string to pesewas with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. The result is always positive
// pesewas. Returns an error for invalid formats, negative values, or zero
// amounts.
//
// Examples:
//
//	ParseDecimalToPesewas("12.34") -> 1234, nil
//	ParseDecimalToPesewas("12,34") -> 1234, nil
//	ParseDecimalToPesewas("12.345") -> 1234, nil (rounds down)
//	ParseDecimalToPesewas("12.346") -> 1235, nil (rounds up)
func ParseDecimalToPesewas(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		// Only positive values allowed
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
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	// Prevent overflow when multiplying by 100
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
	// Take first two fractional digits; then half-up rounding on third
	var frac int64 = 0
	if len(fracPart) > 0 {
		d1 := int64(fracPart[0] - '0')
		frac = d1 * 10
		if len(fracPart) > 1 {
			d2 := int64(fracPart[1] - '0')
			frac += d2
			if len(fracPart) > 2 {
				if fracPart[2] >= '5' {
					frac++
				}
			}
		}
	}
	pesewas := iv*100 + frac
	if pesewas <= 0 {
		return 0, ErrInvalidAmount
	}
	return pesewas, nil
}

// Cedis returns the cedi value as a float64 for display purposes.
// Use pesewas for calculations to avoid floating-point precision issues.
func (m Money) Cedis() float64 {
	return float64(m.Pesewas) / 100.0
}
