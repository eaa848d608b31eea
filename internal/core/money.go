// Package core provides money parsing and formatting utilities.
//
// Form input is coerced leniently: anything that does not parse as a
// non-negative decimal becomes zero instead of an error.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts user input to a non-negative decimal.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted, as are
// Swiss thousands separators (1’234.50, 1'234.50). Empty, invalid and
// negative input yields zero.
//
// Examples:
//
//	ParseAmount("12.34")    -> 12.34
//	ParseAmount("1’234.50") -> 1234.5
//	ParseAmount("abc")      -> 0
func ParseAmount(s string) decimal.Decimal {
	d, ok := parseDecimal(s)
	if !ok || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ParseOptionalAmount is ParseAmount for optional fields: empty input stays
// unset instead of becoming zero.
func ParseOptionalAmount(s string) *decimal.Decimal {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	d := ParseAmount(s)
	return &d
}

// DecimalFromFloat converts a float, mapping NaN and infinities to zero.
func DecimalFromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

func parseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	s = strings.NewReplacer("’", "", "'", "", " ", "").Replace(s)
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// OptionalString returns nil for blank input so optional columns are stored
// as null rather than empty strings.
func OptionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// OptionalID is OptionalString for foreign keys.
func OptionalID(s string) *ID {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	id := ID(s)
	return &id
}

// OptionalDate parses a day, returning the zero Date (stored as null) for
// blank or malformed input.
func OptionalDate(s string) Date {
	if strings.TrimSpace(s) == "" {
		return Date{}
	}
	d, err := ParseDate(s)
	if err != nil {
		return Date{}
	}
	return d
}
