package catalog

import (
	"context"
	"errors"
	"testing"

	"buchhaltung/internal/core"
	"buchhaltung/internal/log"
	"buchhaltung/internal/store"
	"buchhaltung/internal/store/memory"
)

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.NewWithDefaults()
	if err := s.Seed(store.Clients, core.Client{Name: "Zeta AG"}, core.Client{Name: "Acme GmbH"}); err != nil {
		t.Fatalf("seed clients: %v", err)
	}
	if err := s.Seed(store.Projects, core.Project{Name: "Website"}); err != nil {
		t.Fatalf("seed projects: %v", err)
	}
	return s
}

func TestReloadPopulatesSnapshot(t *testing.T) {
	c := New(seededStore(t), log.Discard())
	if got := len(c.Snapshot().Clients); got != 0 {
		t.Fatalf("new cache should be empty, has %d clients", got)
	}

	snap := c.Reload(context.Background())

	if len(snap.Clients) != 2 || snap.Clients[0].Name != "Acme GmbH" {
		t.Fatalf("clients not ordered by name: %+v", snap.Clients)
	}
	if len(snap.Projects) != 1 || len(snap.IncomeCategories) != 3 || len(snap.ExpenseCategories) != 4 {
		t.Fatalf("unexpected sizes: %d projects, %d income, %d expense",
			len(snap.Projects), len(snap.IncomeCategories), len(snap.ExpenseCategories))
	}
	if c.Snapshot() != snap {
		t.Fatalf("reload must publish the new snapshot")
	}
	if c.Reloads() != 1 {
		t.Fatalf("reloads = %d", c.Reloads())
	}
}

func TestLookups(t *testing.T) {
	c := New(seededStore(t), log.Discard())
	c.Reload(context.Background())

	zeta := core.ID("1")
	project := core.ID("1")
	unknown := core.ID("99")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"client", c.ClientName(&zeta), "Zeta AG"},
		{"nil client", c.ClientName(nil), ""},
		{"unknown client", c.ClientName(&unknown), ""},
		{"project", c.ProjectName(&project), "Website"},
		{"income category", c.Snapshot().IncomeCategoryName("1"), "Dienstleistung"},
		{"expense category", c.Snapshot().ExpenseCategoryName("2"), "Software"},
		{"unknown category", c.Snapshot().ExpenseCategoryName("42"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}

	if !c.Snapshot().HasIncomeCategory("3") || c.Snapshot().HasIncomeCategory("4") {
		t.Errorf("HasIncomeCategory mismatch")
	}
}

func TestReloadPartialFailure(t *testing.T) {
	s := seededStore(t)
	s.FailOn(store.OpSelect, store.Projects, errors.New("timeout"))
	c := New(s, log.Discard())

	snap := c.Reload(context.Background())

	if snap.Projects == nil || len(snap.Projects) != 0 {
		t.Fatalf("failed slice should be empty, got %+v", snap.Projects)
	}
	if len(snap.Clients) != 2 || len(snap.IncomeCategories) != 3 || len(snap.ExpenseCategories) != 4 {
		t.Fatalf("other slices should still populate")
	}
}

func TestReloadReplacesWholesale(t *testing.T) {
	s := seededStore(t)
	c := New(s, log.Discard())
	first := c.Reload(context.Background())

	if err := s.Delete(context.Background(), store.Clients, "1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	second := c.Reload(context.Background())

	if len(first.Clients) != 2 {
		t.Fatalf("old snapshot must not change, has %d clients", len(first.Clients))
	}
	if len(second.Clients) != 1 || second.Clients[0].Name != "Acme GmbH" {
		t.Fatalf("unexpected clients after reload: %+v", second.Clients)
	}
	gone := core.ID("1")
	if c.ClientName(&gone) != "" {
		t.Fatalf("deleted client still resolves")
	}
}
