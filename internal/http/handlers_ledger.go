package http

import (
	"context"
	"errors"
	"net/http"

	"buchhaltung/internal/core"
	"buchhaltung/internal/log"
	"buchhaltung/internal/services"
)

// ledgerKinds are the collections edited through forms and tables.
var ledgerKinds = map[services.Kind]bool{
	services.KindIncome:   true,
	services.KindExpense:  true,
	services.KindProject:  true,
	services.KindClient:   true,
	services.KindDocument: true,
}

func parseLedgerKind(s string) (services.Kind, bool) {
	k, err := services.ParseKind(s)
	if err != nil || !ledgerKinds[k] {
		return "", false
	}
	return k, true
}

// handleTable renders the table rows of one collection. On failure the
// error is logged and nothing is swapped, so the previous rows stay.
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseLedgerKind(r.PathValue("entity"))
	if !ok {
		NotFoundError("Unbekannte Liste").Write(w)
		return
	}
	logger := s.requestLogger(r)

	rows, err := s.loadRows(r.Context(), kind)
	if err != nil {
		logger.ErrorContext(r.Context(), "List load failed",
			log.FieldEntity, string(kind),
			log.FieldError, err,
			log.FieldOperation, log.OpList)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	html, err := s.renderBuffer("rows_"+string(kind), rows)
	if err != nil {
		logger.ErrorContext(r.Context(), "List render failed",
			log.FieldEntity, string(kind),
			log.FieldError, err,
			log.FieldOperation, log.OpRender)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	NewHTMXResponse().BodyHTML(html).Write(w)
}

func (s *Server) loadRows(ctx context.Context, kind services.Kind) (any, error) {
	switch kind {
	case services.KindIncome:
		return s.ledger.Incomes(ctx)
	case services.KindExpense:
		return s.ledger.Expenses(ctx)
	case services.KindProject:
		return s.ledger.Projects(ctx)
	case services.KindClient:
		return s.ledger.Clients(ctx)
	case services.KindDocument:
		return s.ledger.Documents(ctx)
	}
	return nil, services.ErrUnknownKind
}

// handleCreate dispatches a submitted entry form. Success answers with a
// fresh form; failure answers with an error status so htmx leaves the
// submitted form untouched.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseLedgerKind(r.PathValue("entity"))
	if !ok {
		NotFoundError("Unbekannter Eintrag").Write(w)
		return
	}
	p, errResp := parseBody(r)
	if errResp != nil {
		errResp.TriggerErrorNotification(msgSaveFailed).Write(w)
		return
	}

	if kind == services.KindDocument {
		s.createDocument(w, r, p)
		return
	}

	ctx := r.Context()
	var (
		id  core.ID
		err error
	)
	switch kind {
	case services.KindIncome:
		var in core.Income
		in, err = s.ledger.CreateIncome(ctx, incomeForm(p))
		id = in.ID
	case services.KindExpense:
		var ex core.Expense
		ex, err = s.ledger.CreateExpense(ctx, expenseForm(p))
		id = ex.ID
	case services.KindProject:
		var pr core.Project
		pr, err = s.ledger.CreateProject(ctx, projectForm(p))
		id = pr.ID
	case services.KindClient:
		var c core.Client
		c, err = s.ledger.CreateClient(ctx, clientForm(p))
		id = c.ID
	}
	if err != nil {
		s.writeSaveError(w, r, kind, err, msgSaveFailed)
		return
	}

	s.requestLogger(r).DebugContext(ctx, "Entry saved",
		log.FieldEntity, string(kind),
		log.FieldRecordID, id.String())
	s.writeSaved(w, r, kind, savedMessages[kind])
}

// writeSaved answers a successful submission with a fresh form and the
// refresh triggers for the affected list and the dashboard.
func (s *Server) writeSaved(w http.ResponseWriter, r *http.Request, kind services.Kind, message string) {
	s.appMetrics.mutations.Add(1)
	resp := NewHTMXResponse().
		TriggerSuccessNotification(message).
		TriggerChanged(string(kind)).
		TriggerDashboardRefresh().
		TriggerFormReset()

	html, err := s.renderBuffer("form_"+string(kind), s.newFormData())
	if err != nil {
		s.requestLogger(r).ErrorContext(r.Context(), "Form render failed",
			log.FieldEntity, string(kind),
			log.FieldError, err,
			log.FieldOperation, log.OpRender)
		resp.Status(http.StatusNoContent).Write(w)
		return
	}
	resp.BodyHTML(html).Write(w)
}

// writeSaveError maps rejected input to 422 and store failures to 502.
func (s *Server) writeSaveError(w http.ResponseWriter, r *http.Request, kind services.Kind, err error, message string) {
	s.appMetrics.failures.Add(1)
	logger := s.requestLogger(r)
	if services.IsValidation(err) {
		logger.WarnContext(r.Context(), "Entry rejected",
			log.FieldEntity, string(kind),
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeValidation)
		UnprocessableEntityError(message).TriggerErrorNotification(message).Write(w)
		return
	}
	logger.ErrorContext(r.Context(), "Entry not saved",
		log.FieldEntity, string(kind),
		log.FieldError, err,
		log.FieldErrorType, log.ErrorTypeDatabase,
		log.FieldOperation, log.OpCreate)
	BadGatewayError(message).TriggerErrorNotification(message).Write(w)
}

// handleDelete removes one record. The row is swapped out only on success.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseLedgerKind(r.PathValue("entity"))
	if !ok {
		NotFoundError("Unbekannter Eintrag").Write(w)
		return
	}
	id := core.ID(sanitizeInput(r.PathValue("id")))

	if err := s.ledger.Delete(r.Context(), kind, id); err != nil {
		s.appMetrics.failures.Add(1)
		s.requestLogger(r).ErrorContext(r.Context(), "Delete failed",
			log.FieldEntity, string(kind),
			log.FieldRecordID, id.String(),
			log.FieldError, err,
			log.FieldOperation, log.OpDelete)
		BadGatewayError(msgDeleteFailed).TriggerErrorNotification(msgDeleteFailed).Write(w)
		return
	}

	s.appMetrics.mutations.Add(1)
	NewHTMXResponse().
		TriggerSuccessNotification(msgDeleted).
		TriggerChanged(string(kind)).
		TriggerDashboardRefresh().
		BodyHTML("").
		Write(w)
}

func incomeForm(p *RequestBodyParser) services.IncomeForm {
	return services.IncomeForm{
		TxDate:      p.Get("tx_date"),
		ProjectID:   p.Get("project_id"),
		ClientID:    p.Get("client_id"),
		CategoryID:  p.Get("category_id"),
		Amount:      p.Get("amount_chf"),
		Status:      p.Get("status"),
		Description: p.Get("description"),
	}
}

func expenseForm(p *RequestBodyParser) services.ExpenseForm {
	return services.ExpenseForm{
		TxDate:      p.Get("tx_date"),
		ProjectID:   p.Get("project_id"),
		Vendor:      p.Get("vendor"),
		CategoryID:  p.Get("category_id"),
		Amount:      p.Get("amount_chf"),
		Description: p.Get("description"),
	}
}

func projectForm(p *RequestBodyParser) services.ProjectForm {
	return services.ProjectForm{
		Name:      p.Get("name"),
		ClientID:  p.Get("client_id"),
		StartDate: p.Get("start_date"),
		EndDate:   p.Get("end_date"),
		Status:    p.Get("status"),
		Budget:    p.Get("budget_chf"),
		Notes:     p.Get("notes"),
	}
}

func clientForm(p *RequestBodyParser) services.ClientForm {
	return services.ClientForm{
		Name:           p.Get("name"),
		Email:          p.Get("email"),
		Phone:          p.Get("phone"),
		BillingAddress: p.Get("billing_address"),
		VATNumber:      p.Get("vat_number"),
	}
}

// isItemsError reports whether err is a document stored without items.
func isItemsError(err error) (*services.ItemsError, bool) {
	var ie *services.ItemsError
	ok := errors.As(err, &ie)
	return ie, ok
}
