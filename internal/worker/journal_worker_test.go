package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"buchhaltung/internal/amqp"
	"buchhaltung/internal/catalog"
	"buchhaltung/internal/core"
	"buchhaltung/internal/log"
	"buchhaltung/internal/sheets"
	sheetsmem "buchhaltung/internal/sheets/memory"
	"buchhaltung/internal/store"
	"buchhaltung/internal/store/memory"
)

func newTestWorker(t *testing.T, seed ...sheets.JournalEntry) (*JournalWorker, *sheetsmem.Journal, *memory.Store) {
	t.Helper()
	s := memory.NewWithDefaults()
	if err := s.Seed(store.Clients, core.Client{Name: "Acme GmbH"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Seed(store.Projects, core.Project{Name: "Website"}); err != nil {
		t.Fatal(err)
	}
	j := sheetsmem.New(seed...)
	w := NewJournalWorker(j, catalog.New(s, log.Discard()), log.Discard())
	if err := w.StartupCheck(context.Background()); err != nil {
		t.Fatalf("StartupCheck: %v", err)
	}
	return w, j, s
}

func mustEvent(t *testing.T, entity string, action amqp.Action, id string, record any) *amqp.ChangeEvent {
	t.Helper()
	ev, err := amqp.NewChangeEvent(entity, action, id, "test", record)
	if err != nil {
		t.Fatalf("NewChangeEvent: %v", err)
	}
	return ev
}

func TestHandleIncomeCreated(t *testing.T) {
	w, j, _ := newTestWorker(t)
	client, project := core.ID("1"), core.ID("1")
	desc := "März"
	in := core.Income{
		ID:          "7",
		TxDate:      core.NewDate(mustDate(t, "2025-03-14")),
		ClientID:    &client,
		ProjectID:   &project,
		CategoryID:  "1",
		AmountCHF:   decimal.RequireFromString("1500"),
		Status:      "open",
		Description: &desc,
	}

	if err := w.HandleChange(context.Background(), mustEvent(t, "incomes", amqp.ActionCreated, "7", in)); err != nil {
		t.Fatalf("HandleChange: %v", err)
	}

	entries, _ := j.Entries(context.Background())
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	e := entries[0]
	if e.Date != "2025-03-14" || e.Party != "Acme GmbH" || e.Project != "Website" || e.Category != "Dienstleistung" {
		t.Errorf("entry = %+v", e)
	}
	if e.Amount == nil || e.Amount.StringFixed(2) != "1500.00" || e.Description != "März" {
		t.Errorf("amount/description = %v %q", e.Amount, e.Description)
	}
}

func TestHandleExpenseCreatedIsNegative(t *testing.T) {
	w, j, _ := newTestWorker(t)
	vendor := "SBB"
	ex := core.Expense{ID: "3", TxDate: core.NewDate(mustDate(t, "2025-03-01")), Vendor: &vendor, CategoryID: "3", AmountCHF: decimal.RequireFromString("89.90")}

	if err := w.HandleChange(context.Background(), mustEvent(t, "expenses", amqp.ActionCreated, "3", ex)); err != nil {
		t.Fatalf("HandleChange: %v", err)
	}
	entries, _ := j.Entries(context.Background())
	if len(entries) != 1 || entries[0].Party != "SBB" || entries[0].Category != "Reisekosten" {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].Amount.StringFixed(2) != "-89.90" {
		t.Errorf("amount = %s", entries[0].Amount)
	}
}

func TestHandleDeletedWritesMarker(t *testing.T) {
	w, j, _ := newTestWorker(t)
	if err := w.HandleChange(context.Background(), mustEvent(t, "incomes", amqp.ActionDeleted, "7", nil)); err != nil {
		t.Fatalf("HandleChange: %v", err)
	}
	entries, _ := j.Entries(context.Background())
	if len(entries) != 1 || entries[0].Action != "deleted" || entries[0].RecordID != "7" || entries[0].Amount != nil {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestHandleChangeSkips(t *testing.T) {
	ev := mustEvent(t, "incomes", amqp.ActionDeleted, "7", nil)
	w, j, _ := newTestWorker(t, sheets.JournalEntry{EventID: ev.ID})

	tests := []struct {
		name string
		ev   *amqp.ChangeEvent
	}{
		{"already journaled", ev},
		{"documents ignored", mustEvent(t, "documents", amqp.ActionCreated, "1", nil)},
		{"events ignored", mustEvent(t, "events", amqp.ActionDeleted, "1", nil)},
		{"updates ignored", mustEvent(t, "expenses", amqp.ActionUpdated, "1", nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := w.HandleChange(context.Background(), tt.ev); err != nil {
				t.Fatalf("HandleChange: %v", err)
			}
		})
	}
	entries, _ := j.Entries(context.Background())
	if len(entries) != 1 {
		t.Errorf("entries = %d, want only the seed", len(entries))
	}
}

func TestHandleClientChangeReloadsCatalog(t *testing.T) {
	w, _, s := newTestWorker(t)
	if err := s.Seed(store.Clients, core.Client{Name: "Beta AG"}); err != nil {
		t.Fatal(err)
	}
	before := w.catalog.Reloads()
	if err := w.HandleChange(context.Background(), mustEvent(t, "clients", amqp.ActionCreated, "2", nil)); err != nil {
		t.Fatal(err)
	}
	if w.catalog.Reloads() != before+1 {
		t.Errorf("catalog not reloaded")
	}
	id := core.ID("2")
	if got := w.catalog.ClientName(&id); got != "Beta AG" {
		t.Errorf("ClientName = %q", got)
	}
}

func TestHandleAppendFailureIsRetried(t *testing.T) {
	w, j, _ := newTestWorker(t)
	j.FailWith(errors.New("quota exceeded"))
	ev := mustEvent(t, "incomes", amqp.ActionDeleted, "7", nil)

	if err := w.HandleChange(context.Background(), ev); err == nil {
		t.Fatal("expected error so the message is redelivered")
	}

	j.FailWith(nil)
	if err := w.HandleChange(context.Background(), ev); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	entries, _ := j.Entries(context.Background())
	if len(entries) != 1 {
		t.Errorf("entries = %d", len(entries))
	}
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := core.ParseDate(s)
	if err != nil {
		t.Fatal(err)
	}
	return d.Time
}
