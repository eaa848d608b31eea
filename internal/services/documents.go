package services

import (
	"context"
	"fmt"
	"strings"

	"buchhaltung/internal/amqp"
	"buchhaltung/internal/core"
	"buchhaltung/internal/log"
	"buchhaltung/internal/store"
)

// DocumentForm is a document header plus its editable rows as parallel
// arrays, in display order.
type DocumentForm struct {
	DocType      string   `json:"doc_type"`
	ClientID     string   `json:"client_id"`
	ProjectID    string   `json:"project_id"`
	IssueDate    string   `json:"issue_date"`
	DueDate      string   `json:"due_date"`
	TaxRate      string   `json:"tax_rate"`
	Notes        string   `json:"notes"`
	Descriptions []string `json:"item_description"`
	Quantities   []string `json:"item_qty"`
	Prices       []string `json:"item_price"`
}

// Lines returns the rows of the form.
func (f DocumentForm) Lines() []core.LineInput {
	return core.ParseLines(f.Descriptions, f.Quantities, f.Prices)
}

// Totals recomputes every figure of the form from scratch.
func (f DocumentForm) Totals() core.Totals {
	return core.ComputeTotals(f.Lines(), core.ParseAmount(f.TaxRate))
}

// DocumentResult is a stored document with the totals computed for it.
type DocumentResult struct {
	Document core.Document
	Items    []core.DocumentItem
	Totals   core.Totals
}

// CreateDocument inserts the header, then all line items in one request,
// each tagged with the new document id and its 1-based row position.
//
// When the items insert fails the header stays in the store and an
// *ItemsError carrying its id is returned.
func (l *Ledger) CreateDocument(ctx context.Context, f DocumentForm) (DocumentResult, error) {
	doc := core.Document{
		DocType:   core.DocumentType(strings.TrimSpace(f.DocType)),
		ClientID:  core.ID(strings.TrimSpace(f.ClientID)),
		ProjectID: core.OptionalID(f.ProjectID),
		IssueDate: l.dateOrToday(f.IssueDate),
		DueDate:   core.OptionalDate(f.DueDate),
		TaxRate:   core.ParseAmount(f.TaxRate),
		Notes:     core.OptionalString(f.Notes),
	}
	if err := doc.Validate(); err != nil {
		return DocumentResult{}, err
	}
	lines := f.Lines()

	return once(ctx, l, KindDocument, f, func(ctx context.Context) (DocumentResult, error) {
		created, err := store.InsertOne[core.Document](ctx, l.store, store.Documents, doc)
		if err != nil {
			return DocumentResult{}, fmt.Errorf("create document: %w", err)
		}
		res := DocumentResult{
			Document: created,
			Totals:   core.ComputeTotals(lines, doc.TaxRate),
		}

		if len(lines) > 0 {
			items := core.Items(created.ID, lines)
			var stored []core.DocumentItem
			if err := l.store.Insert(ctx, store.DocumentItems, items, &stored); err != nil {
				l.logger.ErrorContext(ctx, "Document stored without items",
					log.FieldDocumentID, created.ID.String(),
					log.FieldItems, len(items),
					log.FieldError, err)
				l.publish(ctx, KindDocument, amqp.ActionCreated, created.ID, created)
				return res, &ItemsError{DocumentID: created.ID, Err: err}
			}
			res.Items = stored
		}

		l.created(ctx, KindDocument, created.ID, created, core.FormatCHF(res.Totals.Total))
		return res, nil
	})
}
