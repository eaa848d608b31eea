package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LineInput is one editable row of a document.
type LineInput struct {
	Description string
	Qty         decimal.Decimal
	UnitPrice   decimal.Decimal
}

// Totals is the result of a full recomputation over all rows.
type Totals struct {
	Lines    []decimal.Decimal
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals recomputes every figure from scratch:
//
//	line     = qty * unit price
//	subtotal = sum(lines)
//	tax      = subtotal * rate / 100
//	total    = subtotal + tax
//
// Negative quantities, prices and rates count as zero.
func ComputeTotals(lines []LineInput, taxRate decimal.Decimal) Totals {
	out := Totals{
		Lines:    make([]decimal.Decimal, len(lines)),
		Subtotal: decimal.Zero,
	}
	for i, l := range lines {
		lt := nonNegative(l.Qty).Mul(nonNegative(l.UnitPrice))
		out.Lines[i] = lt
		out.Subtotal = out.Subtotal.Add(lt)
	}
	out.Tax = out.Subtotal.Mul(nonNegative(taxRate)).Div(hundred)
	out.Total = out.Subtotal.Add(out.Tax)
	return out
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ParseLines builds rows from parallel form arrays. Missing cells are
// treated as empty, so arrays of different lengths never fail.
func ParseLines(descriptions, qtys, prices []string) []LineInput {
	n := max(len(descriptions), len(qtys), len(prices))
	lines := make([]LineInput, 0, n)
	for i := 0; i < n; i++ {
		lines = append(lines, LineInput{
			Description: strings.TrimSpace(at(descriptions, i)),
			Qty:         ParseAmount(at(qtys, i)),
			UnitPrice:   ParseAmount(at(prices, i)),
		})
	}
	return lines
}

// Items tags rows with the owning document and a 1-based position in row
// order.
func Items(documentID ID, lines []LineInput) []DocumentItem {
	items := make([]DocumentItem, len(lines))
	for i, l := range lines {
		items[i] = DocumentItem{
			DocumentID:  documentID,
			Position:    i + 1,
			Description: l.Description,
			Qty:         l.Qty,
			UnitPrice:   l.UnitPrice,
		}
	}
	return items
}

func at(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}
