package google

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	ports "buchhaltung/internal/sheets"
)

// parseJournal converts a values matrix as returned by the Sheets API into
// journal entries. The first row must be the journal header; columns are
// located by name so reordered sheets still parse.
func parseJournal(values [][]any) ([]ports.JournalEntry, error) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := toStrings(values[0])
	col := make(map[string]int, len(ports.JournalHeader))
	var missing []string
	for _, name := range ports.JournalHeader {
		i := indexOf(headers, name)
		if i == -1 {
			missing = append(missing, name)
		}
		col[name] = i
	}
	if col["Event"] == -1 || col["Entity"] == -1 || col["Action"] == -1 {
		return nil, fmt.Errorf("unexpected journal header: missing %s; got headers=%v", strings.Join(missing, ","), headers)
	}

	out := make([]ports.JournalEntry, 0, len(values)-1)
	for _, raw := range values[1:] {
		row := toStrings(raw)
		e := ports.JournalEntry{
			EventID:     safeGet(row, col["Event"]),
			Entity:      safeGet(row, col["Entity"]),
			Action:      safeGet(row, col["Action"]),
			RecordID:    safeGet(row, col["Record"]),
			Date:        safeGet(row, col["Date"]),
			Party:       safeGet(row, col["Party"]),
			Category:    safeGet(row, col["Category"]),
			Project:     safeGet(row, col["Project"]),
			Description: safeGet(row, col["Description"]),
		}
		if e.EventID == "" {
			continue
		}
		if ts, err := time.Parse(time.RFC3339, safeGet(row, col["Recorded"])); err == nil {
			e.RecordedAt = ts
		}
		if amt, ok := parseAmount(safeGet(row, col["Amount CHF"])); ok {
			e.Amount = &amt
		}
		out = append(out, e)
	}
	return out, nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// parseAmount accepts plain numbers and Swiss grouped values like 1’234.50.
func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.NewReplacer("’", "", "'", "", " ", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
