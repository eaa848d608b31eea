package http

import (
	"net/http"
	"slices"
	"strconv"

	"buchhaltung/internal/core"
	"buchhaltung/internal/log"
	"buchhaltung/internal/services"
)

// Line item editor operations.
const (
	itemsAdd    = "add"
	itemsRemove = "remove"
	itemsRecalc = "recalc"
)

type itemRow struct {
	Index       int
	Description string
	Qty         string
	Price       string
	LineTotal   string
}

// itemsEditor is the server-side state of the line item table. Inputs keep
// the raw strings the user typed; only the computed cells are formatted.
type itemsEditor struct {
	Rows     []itemRow
	TaxRate  string
	Subtotal string
	Tax      string
	Total    string
}

func newItemsEditor(descs, qtys, prices []string, taxRate string) itemsEditor {
	n := max(len(descs), len(qtys), len(prices))
	lines := core.ParseLines(descs, qtys, prices)
	totals := core.ComputeTotals(lines, core.ParseAmount(taxRate))

	ed := itemsEditor{
		Rows:     make([]itemRow, n),
		TaxRate:  taxRate,
		Subtotal: core.FormatCHF(totals.Subtotal),
		Tax:      core.FormatCHF(totals.Tax),
		Total:    core.FormatCHF(totals.Total),
	}
	for i := range n {
		ed.Rows[i] = itemRow{
			Index:       i,
			Description: cell(descs, i),
			Qty:         cell(qtys, i),
			Price:       cell(prices, i),
			LineTotal:   core.FormatCHF(totals.Lines[i]),
		}
	}
	return ed
}

// blankItemsEditor holds the single empty row of a fresh document form.
func blankItemsEditor() itemsEditor {
	return newItemsEditor([]string{""}, []string{"1"}, []string{"0"}, "")
}

func cell(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}

// handleDocumentItems edits the line item table. add and remove answer
// with the whole table; recalc answers with the totals plus out-of-band
// line totals so that the inputs being typed in are not replaced.
func (s *Server) handleDocumentItems(w http.ResponseWriter, r *http.Request) {
	p, errResp := parseBody(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	descs := p.GetAll("item_description")
	qtys := p.GetAll("item_qty")
	prices := p.GetAll("item_price")
	taxRate := p.Get("tax_rate")

	name := "doc_items"
	switch op := p.Get("op"); op {
	case itemsAdd:
		n := max(len(descs), len(qtys), len(prices))
		descs = append(pad(descs, n), "")
		qtys = append(pad(qtys, n), "1")
		prices = append(pad(prices, n), "0")
	case itemsRemove:
		i, err := strconv.Atoi(p.Get("index"))
		n := max(len(descs), len(qtys), len(prices))
		if err == nil && i >= 0 && i < n {
			descs = slices.Delete(pad(descs, n), i, i+1)
			qtys = slices.Delete(pad(qtys, n), i, i+1)
			prices = slices.Delete(pad(prices, n), i, i+1)
		}
	case itemsRecalc, "":
		name = "doc_recalc"
	default:
		BadRequestError(msgBadRequest).Write(w)
		return
	}

	html, err := s.renderBuffer(name, newItemsEditor(descs, qtys, prices, taxRate))
	if err != nil {
		s.requestLogger(r).ErrorContext(r.Context(), "Items render failed",
			log.FieldError, err,
			log.FieldOperation, log.OpRender)
		InternalServerError(msgTemplateFailed).Write(w)
		return
	}
	NewHTMXResponse().BodyHTML(html).Write(w)
}

// pad extends s with empty cells up to n so that parallel arrays stay
// aligned when a row is added or removed.
func pad(s []string, n int) []string {
	for len(s) < n {
		s = append(s, "")
	}
	return s
}

func documentForm(p *RequestBodyParser) services.DocumentForm {
	return services.DocumentForm{
		DocType:      p.Get("doc_type"),
		ClientID:     p.Get("client_id"),
		ProjectID:    p.Get("project_id"),
		IssueDate:    p.Get("issue_date"),
		DueDate:      p.Get("due_date"),
		TaxRate:      p.Get("tax_rate"),
		Notes:        p.Get("notes"),
		Descriptions: p.GetAll("item_description"),
		Quantities:   p.GetAll("item_qty"),
		Prices:       p.GetAll("item_price"),
	}
}

// createDocument stores the header and its items. When only the items
// fail the header is kept, so the list still changes.
func (s *Server) createDocument(w http.ResponseWriter, r *http.Request, p *RequestBodyParser) {
	res, err := s.ledger.CreateDocument(r.Context(), documentForm(p))
	if ie, ok := isItemsError(err); ok {
		s.appMetrics.failures.Add(1)
		s.requestLogger(r).ErrorContext(r.Context(), "Document items not saved",
			log.FieldDocumentID, ie.DocumentID.String(),
			log.FieldError, ie.Err,
			log.FieldErrorType, log.ErrorTypeDatabase)
		BadGatewayError(msgItemsFailed).
			TriggerErrorNotification(msgItemsFailed).
			TriggerChanged(string(services.KindDocument)).
			Write(w)
		return
	}
	if err != nil {
		s.writeSaveError(w, r, services.KindDocument, err, msgDocumentFailed)
		return
	}

	total := core.FormatCHF(res.Totals.Total)
	s.requestLogger(r).DebugContext(r.Context(), "Document saved",
		log.FieldDocumentID, res.Document.ID.String(),
		log.FieldItems, len(res.Items),
		log.FieldAmountCHF, total)
	s.writeSaved(w, r, services.KindDocument, savedMessages[services.KindDocument]+" (CHF "+total+")")
}
