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

const (
	defaultIncomeStatus  = "open"
	defaultProjectStatus = "active"
)

// Forms carry the raw submitted strings; coercion happens in the Create
// methods so that every entry point applies the same lenient rules.
type (
	IncomeForm struct {
		TxDate      string `json:"tx_date"`
		ProjectID   string `json:"project_id"`
		ClientID    string `json:"client_id"`
		CategoryID  string `json:"category_id"`
		Amount      string `json:"amount_chf"`
		Status      string `json:"status"`
		Description string `json:"description"`
	}

	ExpenseForm struct {
		TxDate      string `json:"tx_date"`
		ProjectID   string `json:"project_id"`
		Vendor      string `json:"vendor"`
		CategoryID  string `json:"category_id"`
		Amount      string `json:"amount_chf"`
		Description string `json:"description"`
	}

	ProjectForm struct {
		Name      string `json:"name"`
		ClientID  string `json:"client_id"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
		Status    string `json:"status"`
		Budget    string `json:"budget_chf"`
		Notes     string `json:"notes"`
	}

	ClientForm struct {
		Name           string `json:"name"`
		Email          string `json:"email"`
		Phone          string `json:"phone"`
		BillingAddress string `json:"billing_address"`
		VATNumber      string `json:"vat_number"`
	}
)

func (l *Ledger) CreateIncome(ctx context.Context, f IncomeForm) (core.Income, error) {
	in := core.Income{
		TxDate:      l.dateOrToday(f.TxDate),
		ProjectID:   core.OptionalID(f.ProjectID),
		ClientID:    core.OptionalID(f.ClientID),
		CategoryID:  core.ID(strings.TrimSpace(f.CategoryID)),
		AmountCHF:   core.ParseAmount(f.Amount),
		Status:      orDefault(f.Status, defaultIncomeStatus),
		Description: core.OptionalString(f.Description),
	}
	if err := in.Validate(); err != nil {
		return core.Income{}, err
	}
	snap := l.catalog.Snapshot()
	if len(snap.IncomeCategories) > 0 && !snap.HasIncomeCategory(in.CategoryID) {
		return core.Income{}, fmt.Errorf("%w: %s", ErrUnknownCategory, in.CategoryID)
	}

	return once(ctx, l, KindIncome, f, func(ctx context.Context) (core.Income, error) {
		created, err := store.InsertOne[core.Income](ctx, l.store, store.Incomes, in)
		if err != nil {
			return core.Income{}, fmt.Errorf("create income: %w", err)
		}
		l.created(ctx, KindIncome, created.ID, created, core.FormatCHF(created.AmountCHF))
		return created, nil
	})
}

func (l *Ledger) CreateExpense(ctx context.Context, f ExpenseForm) (core.Expense, error) {
	ex := core.Expense{
		TxDate:      l.dateOrToday(f.TxDate),
		ProjectID:   core.OptionalID(f.ProjectID),
		Vendor:      core.OptionalString(f.Vendor),
		CategoryID:  core.ID(strings.TrimSpace(f.CategoryID)),
		AmountCHF:   core.ParseAmount(f.Amount),
		Description: core.OptionalString(f.Description),
	}
	if err := ex.Validate(); err != nil {
		return core.Expense{}, err
	}
	snap := l.catalog.Snapshot()
	if len(snap.ExpenseCategories) > 0 && !snap.HasExpenseCategory(ex.CategoryID) {
		return core.Expense{}, fmt.Errorf("%w: %s", ErrUnknownCategory, ex.CategoryID)
	}

	return once(ctx, l, KindExpense, f, func(ctx context.Context) (core.Expense, error) {
		created, err := store.InsertOne[core.Expense](ctx, l.store, store.Expenses, ex)
		if err != nil {
			return core.Expense{}, fmt.Errorf("create expense: %w", err)
		}
		l.created(ctx, KindExpense, created.ID, created, core.FormatCHF(created.AmountCHF))
		return created, nil
	})
}

// CreateProject inserts a project and reloads the catalog so that the new
// project is selectable right away.
func (l *Ledger) CreateProject(ctx context.Context, f ProjectForm) (core.Project, error) {
	p := core.Project{
		Name:      strings.TrimSpace(f.Name),
		ClientID:  core.OptionalID(f.ClientID),
		StartDate: core.OptionalDate(f.StartDate),
		EndDate:   core.OptionalDate(f.EndDate),
		Status:    orDefault(f.Status, defaultProjectStatus),
		BudgetCHF: core.ParseOptionalAmount(f.Budget),
		Notes:     core.OptionalString(f.Notes),
	}
	if err := p.Validate(); err != nil {
		return core.Project{}, err
	}

	return once(ctx, l, KindProject, f, func(ctx context.Context) (core.Project, error) {
		created, err := store.InsertOne[core.Project](ctx, l.store, store.Projects, p)
		if err != nil {
			return core.Project{}, fmt.Errorf("create project: %w", err)
		}
		l.created(ctx, KindProject, created.ID, created, "")
		return created, nil
	})
}

func (l *Ledger) CreateClient(ctx context.Context, f ClientForm) (core.Client, error) {
	c := core.Client{
		Name:           strings.TrimSpace(f.Name),
		Email:          core.OptionalString(f.Email),
		Phone:          core.OptionalString(f.Phone),
		BillingAddress: core.OptionalString(f.BillingAddress),
		VATNumber:      core.OptionalString(f.VATNumber),
	}
	if err := c.Validate(); err != nil {
		return core.Client{}, err
	}

	return once(ctx, l, KindClient, f, func(ctx context.Context) (core.Client, error) {
		created, err := store.InsertOne[core.Client](ctx, l.store, store.Clients, c)
		if err != nil {
			return core.Client{}, fmt.Errorf("create client: %w", err)
		}
		l.created(ctx, KindClient, created.ID, created, "")
		return created, nil
	})
}

func (l *Ledger) created(ctx context.Context, kind Kind, id core.ID, record any, amount string) {
	log.NewStructuredLogger(l.logger).LogRecordCreated(ctx, string(kind), id.String(), amount)
	l.afterMutation(ctx, kind, amqp.ActionCreated, id, record)
}

// dateOrToday parses a form date, falling back to today when it is empty
// or malformed.
func (l *Ledger) dateOrToday(s string) core.Date {
	if d := core.OptionalDate(s); !d.IsZero() {
		return d
	}
	return core.NewDate(l.now())
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}
