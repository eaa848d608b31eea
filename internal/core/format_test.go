package core

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestFormatCHF(t *testing.T) {
	cases := []struct {
		in  string
		out string
	}{
		{"0", "0.00"},
		{"1234.5", "1’234.50"},
		{"999.999", "1’000.00"},
		{"12", "12.00"},
		{"123", "123.00"},
		{"1000000", "1’000’000.00"},
		{"-9876543.215", "-9’876’543.22"},
		{"-0.001", "0.00"},
		{"0.125", "0.13"},
	}
	for _, tc := range cases {
		if got := FormatCHF(decimal.RequireFromString(tc.in)); got != tc.out {
			t.Fatalf("FormatCHF(%s) = %q, want %q", tc.in, got, tc.out)
		}
	}
}

func TestFormatCHFMissingValues(t *testing.T) {
	if got := FormatCHFPtr(nil); got != "0.00" {
		t.Fatalf("nil: got %q", got)
	}
	if got := FormatCHFFloat(math.NaN()); got != "0.00" {
		t.Fatalf("NaN: got %q", got)
	}
	if got := FormatCHFFloat(math.Inf(1)); got != "0.00" {
		t.Fatalf("Inf: got %q", got)
	}
	if got := FormatCHFFloat(1234.5); got != "1’234.50" {
		t.Fatalf("float: got %q", got)
	}
}

func TestFormatDate(t *testing.T) {
	if got := FormatDate(time.Time{}); got != "" {
		t.Fatalf("zero time: got %q", got)
	}
	zurich := time.FixedZone("CET", 3600)
	ts := time.Date(2025, 1, 1, 0, 30, 0, 0, zurich)
	if got := FormatDate(ts); got != "2024-12-31" {
		t.Fatalf("expected UTC day 2024-12-31, got %q", got)
	}
}

func TestMonthKeyStableWithinMonth(t *testing.T) {
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	for ts := start; ts.Month() == time.February; ts = ts.Add(7 * time.Hour) {
		got := MonthKey(ts)
		if got != "2025-02" {
			t.Fatalf("MonthKey(%s) = %q", ts, got)
		}
		if len(got) != 7 {
			t.Fatalf("key must be 7 chars, got %q", got)
		}
	}
}
