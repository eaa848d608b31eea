package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"buchhaltung/internal/core"
	"buchhaltung/internal/store"
)

func invoiceForm() DocumentForm {
	return DocumentForm{
		DocType:      "invoice",
		ClientID:     "1",
		IssueDate:    "2025-03-10",
		TaxRate:      "8",
		Descriptions: []string{"Beratung", "Spesen"},
		Quantities:   []string{"2", "1"},
		Prices:       []string{"10.00", "5.00"},
	}
}

func TestCreateDocumentWithItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.ledger.CreateDocument(ctx, invoiceForm())
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}

	if !res.Totals.Subtotal.Equal(decimal.NewFromInt(25)) ||
		!res.Totals.Tax.Equal(decimal.NewFromInt(2)) ||
		!res.Totals.Total.Equal(decimal.NewFromInt(27)) {
		t.Fatalf("totals = %s / %s / %s", res.Totals.Subtotal, res.Totals.Tax, res.Totals.Total)
	}

	items, err := store.List[core.DocumentItem](ctx, f.store, store.DocumentItems, store.Query{
		Order: []store.Order{store.Asc("position")},
	})
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	for i, it := range items {
		if it.Position != i+1 {
			t.Errorf("item %d has position %d", i, it.Position)
		}
		if it.DocumentID != res.Document.ID {
			t.Errorf("item %d belongs to %s, want %s", i, it.DocumentID, res.Document.ID)
		}
	}
	if items[0].Description != "Beratung" || !items[0].Qty.Equal(decimal.NewFromInt(2)) {
		t.Errorf("first item = %+v", items[0])
	}

	docs, err := f.ledger.Documents(ctx)
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	if len(docs) != 1 || docs[0].Total != "27.00" || docs[0].Number != "RE-2025-0001" {
		t.Errorf("document rows = %+v", docs)
	}
	if got := f.store.Calls(store.OpInsert, store.DocumentItems); got != 1 {
		t.Errorf("items should be inserted in one request, got %d", got)
	}
	if keys := f.publisher.keys(); len(keys) != 1 || keys[0] != "documents.created" {
		t.Errorf("published %v", keys)
	}
}

func TestCreateDocumentItemsFailureKeepsHeader(t *testing.T) {
	f := newFixture(t)
	f.store.FailOn(store.OpInsert, store.DocumentItems, errors.New("check constraint"))

	_, err := f.ledger.CreateDocument(context.Background(), invoiceForm())

	var itemsErr *ItemsError
	if !errors.As(err, &itemsErr) {
		t.Fatalf("expected *ItemsError, got %v", err)
	}
	if itemsErr.DocumentID.IsZero() {
		t.Fatalf("ItemsError must carry the document id")
	}
	if f.store.Len(store.Documents) != 1 {
		t.Errorf("header must stay in the store")
	}
	if f.store.Len(store.DocumentItems) != 0 {
		t.Errorf("no items expected")
	}
}

func TestCreateDocumentWithoutItems(t *testing.T) {
	f := newFixture(t)
	form := invoiceForm()
	form.Descriptions, form.Quantities, form.Prices = nil, nil, nil

	res, err := f.ledger.CreateDocument(context.Background(), form)
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if !res.Totals.Total.IsZero() {
		t.Errorf("empty document total = %s", res.Totals.Total)
	}
	if got := f.store.Calls(store.OpInsert, store.DocumentItems); got != 0 {
		t.Errorf("no items request expected, got %d", got)
	}
}

func TestCreateDocumentValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*DocumentForm)
		wantErr error
	}{
		{"missing client", func(f *DocumentForm) { f.ClientID = "" }, core.ErrMissingClient},
		{"bad type", func(f *DocumentForm) { f.DocType = "receipt" }, core.ErrInvalidDocType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			form := invoiceForm()
			tt.mutate(&form)
			if _, err := fx.ledger.CreateDocument(context.Background(), form); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if fx.store.Len(store.Documents) != 0 {
				t.Errorf("invalid document stored")
			}
		})
	}
}

func TestDocumentFormTotals(t *testing.T) {
	form := DocumentForm{
		TaxRate:    "7.7",
		Quantities: []string{"3", "", "-1"},
		Prices:     []string{"100", "50", "20"},
	}
	got := form.Totals()
	if !got.Subtotal.Equal(decimal.NewFromInt(300)) {
		t.Errorf("subtotal = %s", got.Subtotal)
	}
	if !got.Tax.Equal(decimal.RequireFromString("23.1")) {
		t.Errorf("tax = %s", got.Tax)
	}
	if len(got.Lines) != 3 {
		t.Errorf("lines = %d", len(got.Lines))
	}
}
