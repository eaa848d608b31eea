package http

import (
	"context"
	"net/http"
	"time"

	"buchhaltung/internal/core"
	"buchhaltung/internal/log"
	"buchhaltung/internal/services"
)

const dashboardTimeout = 7 * time.Second

// kpi is one headline figure. Negative marks a loss for styling.
type kpi struct {
	ID       string
	Label    string
	Value    string
	Negative bool
}

type dashboardData struct {
	MonthKey string
	KPIs     []kpi
	Chart    services.ChartData
}

func newDashboardData(d services.Dashboard) dashboardData {
	return dashboardData{
		MonthKey: d.MonthKey,
		KPIs: []kpi{
			{ID: "kpi-year-income", Label: "Einnahmen (Jahr)", Value: core.FormatCHF(d.YearIncome)},
			{ID: "kpi-year-profit", Label: "Gewinn (Jahr)", Value: core.FormatCHF(d.YearProfit), Negative: d.YearProfit.IsNegative()},
			{ID: "kpi-month-income", Label: "Einnahmen (Monat)", Value: core.FormatCHF(d.MonthIncome)},
			{ID: "kpi-month-expenses", Label: "Ausgaben (Monat)", Value: core.FormatCHF(d.MonthExpense)},
			{ID: "kpi-month-profit", Label: "Gewinn (Monat)", Value: core.FormatCHF(d.MonthProfit), Negative: d.MonthProfit.IsNegative()},
		},
		Chart: d.Chart,
	}
}

// handleDashboard renders the KPI cards and the chart data. On failure
// nothing is swapped and the previous figures stay.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), dashboardTimeout)
	defer cancel()
	logger := s.requestLogger(r)

	d, err := s.ledger.Dashboard(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Dashboard load failed",
			log.FieldError, err,
			log.FieldOperation, log.OpRead)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	html, err := s.renderBuffer("dashboard", newDashboardData(d))
	if err != nil {
		logger.ErrorContext(ctx, "Dashboard render failed",
			log.FieldError, err,
			log.FieldOperation, log.OpRender)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	NewHTMXResponse().BodyHTML(html).Write(w)
}
