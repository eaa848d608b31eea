package http

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"buchhaltung/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	health := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(health)
}

// handleReady checks templates, the record store and, when configured, the
// message broker.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)
	fail := func(name string, err error) {
		checks[name] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	if s.templates == nil {
		fail("templates", errTemplatesNotLoaded)
	} else {
		checks["templates"] = "ok"
	}

	if s.store == nil {
		checks["store"] = "not_configured"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else if err := s.store.Ping(ctx); err != nil {
		fail("store", err)
	} else {
		checks["store"] = "ok"
	}

	if s.brokerCheck != nil {
		if err := s.brokerCheck(); err != nil {
			fail("broker", err)
		} else {
			checks["broker"] = "ok"
		}
	}

	snap := s.ledger.Catalog().Snapshot()
	checks["catalog"] = map[string]any{
		"clients":   len(snap.Clients),
		"projects":  len(snap.Projects),
		"loaded_at": snap.LoadedAt.Format(time.RFC3339),
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	response := map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(response)
}

// handleMetrics writes application and security metrics in Prometheus
// text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()

	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_server_errors_total Responses with a 5xx status\n")
	fmt.Fprintf(w, "# TYPE http_server_errors_total counter\n")
	fmt.Fprintf(w, "http_server_errors_total %d\n\n", traceMetrics.ServerErrors)

	fmt.Fprintf(w, "# HELP http_requests_in_flight Requests currently being served\n")
	fmt.Fprintf(w, "# TYPE http_requests_in_flight gauge\n")
	fmt.Fprintf(w, "http_requests_in_flight %d\n\n", traceMetrics.InFlight)

	fmt.Fprintf(w, "# HELP http_response_time_microseconds Moving average response time\n")
	fmt.Fprintf(w, "# TYPE http_response_time_microseconds gauge\n")
	fmt.Fprintf(w, "http_response_time_microseconds %d\n\n", traceMetrics.AverageResponseTime)

	fmt.Fprintf(w, "# HELP ledger_mutations_total Successful creates and deletes\n")
	fmt.Fprintf(w, "# TYPE ledger_mutations_total counter\n")
	fmt.Fprintf(w, "ledger_mutations_total %d\n\n", s.appMetrics.mutations.Load())

	fmt.Fprintf(w, "# HELP ledger_failures_total Rejected or failed writes\n")
	fmt.Fprintf(w, "# TYPE ledger_failures_total counter\n")
	fmt.Fprintf(w, "ledger_failures_total %d\n\n", s.appMetrics.failures.Load())

	fmt.Fprintf(w, "# HELP catalog_reloads_total Catalog reloads since start\n")
	fmt.Fprintf(w, "# TYPE catalog_reloads_total counter\n")
	fmt.Fprintf(w, "catalog_reloads_total %d\n\n", s.ledger.Catalog().Reloads())

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitMetrics.TotalHits)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", rateLimitMetrics.ClientCount)

	fmt.Fprintf(w, "# HELP blocked_probes_total Scanner probes answered with 404\n")
	fmt.Fprintf(w, "# TYPE blocked_probes_total counter\n")
	fmt.Fprintf(w, "blocked_probes_total %d\n\n", securityMetrics.BlockedProbes)

	fmt.Fprintf(w, "# HELP invalid_forwarding_total Unparseable forwarding headers\n")
	fmt.Fprintf(w, "# TYPE invalid_forwarding_total counter\n")
	fmt.Fprintf(w, "invalid_forwarding_total %d\n\n", securityMetrics.InvalidForwarding)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.appMetrics.uptime).Seconds())
}

// handleIndex renders the full shell with the dashboard active.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		s.requestLogger(r).ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path,
			log.FieldErrorType, log.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	active, _ := findView(defaultView)
	s.renderPage(w, r, active, "layout", false)
}

// handleView swaps the main area to the named view. The response carries
// the view content, the navigation as an out-of-band swap and the title.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	active, ok := findView(r.PathValue("name"))
	if !ok {
		NotFoundError("Unbekannte Ansicht").Write(w)
		return
	}
	s.renderPage(w, r, active, "view_partial", true)
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, active view, frame string, oob bool) {
	logger := s.requestLogger(r)
	content, err := s.renderBuffer(active.Template, s.newFormData())
	if err != nil {
		logger.ErrorContext(r.Context(), "View render failed",
			log.FieldView, active.Name,
			log.FieldError, err,
			log.FieldOperation, log.OpRender)
		InternalServerError(msgTemplateFailed).Write(w)
		return
	}

	page, err := s.renderBuffer(frame, newPageData(active, template.HTML(content), oob))
	if err != nil {
		logger.ErrorContext(r.Context(), "Page render failed",
			log.FieldView, active.Name,
			log.FieldError, err,
			log.FieldOperation, log.OpRender)
		InternalServerError(msgTemplateFailed).Write(w)
		return
	}
	logger.DebugContext(r.Context(), "View rendered", log.FieldView, active.Name)
	NewHTMXResponse().BodyHTML(page).Write(w)
}

// handleRefresh reloads the catalog and asks the page to reload the
// dashboard, the calendar and the active view.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.ledger.Catalog().Reload(r.Context())
	if _, err := s.board.Load(r.Context()); err != nil {
		s.requestLogger(r).WarnContext(r.Context(), "Event reload failed", log.FieldError, err)
	}
	NewHTMXResponse().
		Status(http.StatusNoContent).
		TriggerDashboardRefresh().
		TriggerCalendarRefresh().
		TriggerViewRefresh().
		TriggerSuccessNotification(msgRefreshed).
		Write(w)
}
