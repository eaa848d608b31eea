package services

import (
	"context"
	"errors"
	"testing"

	"buchhaltung/internal/core"
	"buchhaltung/internal/store"
)

func TestLoadersResolveNames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, form := range []IncomeForm{
		{TxDate: "2025-01-05", ClientID: "1", ProjectID: "1", CategoryID: "1", Amount: "1234.5", Description: "Januar"},
		{TxDate: "2025-02-05", CategoryID: "2", Amount: "10"},
	} {
		if _, err := f.ledger.CreateIncome(ctx, form); err != nil {
			t.Fatalf("CreateIncome: %v", err)
		}
	}

	incomes, err := f.ledger.Incomes(ctx)
	if err != nil {
		t.Fatalf("Incomes: %v", err)
	}
	if len(incomes) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(incomes))
	}
	// newest first
	if incomes[0].Date != "2025-02-05" || incomes[0].Project != "" || incomes[0].Category != "Produktverkauf" {
		t.Errorf("first row = %+v", incomes[0])
	}
	want := IncomeRow{
		ID: incomes[1].ID, Date: "2025-01-05", Project: "Website", Client: "Acme GmbH",
		Category: "Dienstleistung", Amount: "1’234.50", Status: "open", Description: "Januar",
	}
	if incomes[1] != want {
		t.Errorf("second row = %+v, want %+v", incomes[1], want)
	}

	projects, err := f.ledger.Projects(ctx)
	if err != nil {
		t.Fatalf("Projects: %v", err)
	}
	if len(projects) != 1 || projects[0].Client != "Acme GmbH" || projects[0].Income != "1’234.50" || projects[0].Profit != "1’234.50" {
		t.Errorf("projects = %+v", projects)
	}
}

func TestExpensesAndClients(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.ledger.CreateExpense(ctx, ExpenseForm{TxDate: "2025-03-01", Vendor: "SBB", CategoryID: "3", Amount: "89.90"}); err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	expenses, err := f.ledger.Expenses(ctx)
	if err != nil {
		t.Fatalf("Expenses: %v", err)
	}
	if len(expenses) != 1 || expenses[0].Vendor != "SBB" || expenses[0].Category != "Reisekosten" || expenses[0].Amount != "89.90" {
		t.Errorf("expenses = %+v", expenses)
	}

	clients, err := f.ledger.Clients(ctx)
	if err != nil {
		t.Fatalf("Clients: %v", err)
	}
	if len(clients) != 1 || clients[0].Name != "Acme GmbH" || clients[0].Email != "" {
		t.Errorf("clients = %+v", clients)
	}
}

func TestDocumentsShowPlaceholderNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	number := "RE-2025-0001"
	if err := f.store.Seed(store.Documents,
		core.Document{DocType: core.Invoice, ClientID: "1", DocNumber: &number},
		core.Document{DocType: core.Quote, ClientID: "1"},
	); err != nil {
		t.Fatalf("seed: %v", err)
	}

	docs, err := f.ledger.Documents(ctx)
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	numbers := map[string]bool{docs[0].Number: true, docs[1].Number: true}
	if !numbers["RE-2025-0001"] || !numbers["—"] {
		t.Errorf("numbers = %v", numbers)
	}
	for _, d := range docs {
		if d.Client != "Acme GmbH" || d.Total != "0.00" || d.Status != "draft" {
			t.Errorf("document row = %+v", d)
		}
	}
}

func TestLoaderFailure(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("timeout")
	f.store.FailOn(store.OpSelect, store.Documents, boom)

	rows, err := f.ledger.Documents(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
	if rows != nil {
		t.Errorf("failed load must not return rows")
	}
}
