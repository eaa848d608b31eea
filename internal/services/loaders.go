package services

import (
	"context"
	"fmt"

	"buchhaltung/internal/core"
	"buchhaltung/internal/store"
)

const (
	transactionsLimit = 300
	projectsLimit     = 500
	clientsLimit      = 500
	documentsLimit    = 200
)

func (l *Ledger) Incomes(ctx context.Context) ([]IncomeRow, error) {
	recs, err := store.List[core.Income](ctx, l.store, store.Incomes, store.Query{
		Order: []store.Order{store.Desc("tx_date")},
		Limit: transactionsLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("load incomes: %w", err)
	}

	snap := l.catalog.Snapshot()
	rows := make([]IncomeRow, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, IncomeRow{
			ID:          r.ID,
			Date:        r.TxDate.String(),
			Project:     snap.ProjectName(r.ProjectID),
			Client:      snap.ClientName(r.ClientID),
			Category:    snap.IncomeCategoryName(r.CategoryID),
			Amount:      core.FormatCHF(r.AmountCHF),
			Status:      r.Status,
			Description: deref(r.Description),
		})
	}
	return rows, nil
}

func (l *Ledger) Expenses(ctx context.Context) ([]ExpenseRow, error) {
	recs, err := store.List[core.Expense](ctx, l.store, store.Expenses, store.Query{
		Order: []store.Order{store.Desc("tx_date")},
		Limit: transactionsLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}

	snap := l.catalog.Snapshot()
	rows := make([]ExpenseRow, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, ExpenseRow{
			ID:          r.ID,
			Date:        r.TxDate.String(),
			Project:     snap.ProjectName(r.ProjectID),
			Vendor:      deref(r.Vendor),
			Category:    snap.ExpenseCategoryName(r.CategoryID),
			Amount:      core.FormatCHF(r.AmountCHF),
			Description: deref(r.Description),
		})
	}
	return rows, nil
}

// Projects reads the per-project financials view, which carries its own
// totals. The view has no recency column, so no ordering is requested.
func (l *Ledger) Projects(ctx context.Context) ([]ProjectRow, error) {
	recs, err := store.List[core.ProjectFinancials](ctx, l.store, store.ProjectFinancials, store.Query{
		Limit: projectsLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("load projects: %w", err)
	}

	snap := l.catalog.Snapshot()
	rows := make([]ProjectRow, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, ProjectRow{
			ID:      r.ID,
			Name:    r.Name,
			Client:  snap.ClientName(r.ClientID),
			Status:  r.Status,
			Income:  core.FormatCHF(r.IncomeCHF),
			Expense: core.FormatCHF(r.ExpenseCHF),
			Profit:  core.FormatCHF(r.ProfitCHF),
		})
	}
	return rows, nil
}

func (l *Ledger) Clients(ctx context.Context) ([]ClientRow, error) {
	recs, err := store.List[core.Client](ctx, l.store, store.Clients, store.Query{
		Order: []store.Order{store.Desc("created_at")},
		Limit: clientsLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("load clients: %w", err)
	}

	rows := make([]ClientRow, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, ClientRow{
			ID:    r.ID,
			Name:  r.Name,
			Email: deref(r.Email),
			Phone: deref(r.Phone),
		})
	}
	return rows, nil
}

func (l *Ledger) Documents(ctx context.Context) ([]DocumentRow, error) {
	recs, err := store.List[core.Document](ctx, l.store, store.Documents, store.Query{
		Order: []store.Order{store.Desc("created_at")},
		Limit: documentsLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}

	snap := l.catalog.Snapshot()
	rows := make([]DocumentRow, 0, len(recs))
	for _, r := range recs {
		number := deref(r.DocNumber)
		if number == "" {
			number = missingDocNumber
		}
		clientID := r.ClientID
		rows = append(rows, DocumentRow{
			ID:      r.ID,
			Number:  number,
			Type:    r.DocType,
			Client:  snap.ClientName(&clientID),
			Project: snap.ProjectName(r.ProjectID),
			Status:  r.Status,
			Total:   core.FormatCHFPtr(r.Total),
		})
	}
	return rows, nil
}
