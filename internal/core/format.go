package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// thousandsSep is the de-CH grouping character (right single quotation mark).
const thousandsSep = "’"

// FormatCHF renders an amount with two fraction digits and de-CH grouping,
// e.g. 1234.5 -> "1’234.50" and -9876543.215 -> "-9’876’543.22".
func FormatCHF(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if neg && strings.Trim(intPart+frac, "0") != "" {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(thousandsSep)
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

// FormatCHFPtr formats an optional amount; nil renders as "0.00".
func FormatCHFPtr(d *decimal.Decimal) string {
	if d == nil {
		return FormatCHF(decimal.Zero)
	}
	return FormatCHF(*d)
}

// FormatCHFFloat formats a float; NaN and infinities render as "0.00".
func FormatCHFFloat(f float64) string {
	return FormatCHF(DecimalFromFloat(f))
}

// FormatDate returns the YYYY-MM-DD day of the UTC instant, or "" for the
// zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.DateOnly)
}

// MonthKey returns the YYYY-MM key of the UTC instant.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
