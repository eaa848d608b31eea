package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"buchhaltung/internal/core"
	"buchhaltung/internal/store"
)

const (
	seriesIncome  = "Einnahmen"
	seriesExpense = "Ausgaben"
)

// Dashboard holds the five headline figures and the chart series derived
// from the monthly overview view.
type Dashboard struct {
	MonthKey     string
	YearIncome   decimal.Decimal
	YearExpense  decimal.Decimal
	YearProfit   decimal.Decimal
	MonthIncome  decimal.Decimal
	MonthExpense decimal.Decimal
	MonthProfit  decimal.Decimal
	Chart        ChartData
}

// ChartData is shaped for a Chart.js bar chart.
type ChartData struct {
	Labels   []string       `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
}

type ChartDataset struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}

// Dashboard reads the monthly overview and derives year-to-date and
// current-month figures. A month without a row counts as zero.
func (l *Ledger) Dashboard(ctx context.Context) (Dashboard, error) {
	return l.DashboardAt(ctx, l.now())
}

func (l *Ledger) DashboardAt(ctx context.Context, now time.Time) (Dashboard, error) {
	months, err := store.List[core.MonthOverview](ctx, l.store, store.MonthlyOverview, store.Query{})
	if err != nil {
		return Dashboard{}, fmt.Errorf("load monthly overview: %w", err)
	}
	return Summarize(months, now), nil
}

// Summarize computes the dashboard from overview rows in their given order.
func Summarize(months []core.MonthOverview, now time.Time) Dashboard {
	d := Dashboard{
		MonthKey:     core.MonthKey(now),
		YearIncome:   decimal.Zero,
		YearExpense:  decimal.Zero,
		MonthIncome:  decimal.Zero,
		MonthExpense: decimal.Zero,
	}
	labels := make([]string, 0, len(months))
	income := make([]float64, 0, len(months))
	expense := make([]float64, 0, len(months))

	for _, m := range months {
		d.YearIncome = d.YearIncome.Add(m.IncomeCHF)
		d.YearExpense = d.YearExpense.Add(m.ExpenseCHF)
		if m.MonthKey == d.MonthKey {
			d.MonthIncome = m.IncomeCHF
			d.MonthExpense = m.ExpenseCHF
		}
		labels = append(labels, m.MonthKey)
		income = append(income, m.IncomeCHF.InexactFloat64())
		expense = append(expense, m.ExpenseCHF.InexactFloat64())
	}
	d.YearProfit = d.YearIncome.Sub(d.YearExpense)
	d.MonthProfit = d.MonthIncome.Sub(d.MonthExpense)
	d.Chart = ChartData{
		Labels: labels,
		Datasets: []ChartDataset{
			{Label: seriesIncome, Data: income},
			{Label: seriesExpense, Data: expense},
		},
	}
	return d
}
