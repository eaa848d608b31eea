// Package store defines the boundary to the backend-as-a-service that owns
// every record. Implementations live in the postgrest, sqlite and memory
// subpackages.
package store

import (
	"context"
	"errors"
	"fmt"

	"buchhaltung/internal/core"
)

// Table names a record collection or read-only view.
type Table string

const (
	Clients           Table = "clients"
	Projects          Table = "projects"
	IncomeCategories  Table = "income_categories"
	ExpenseCategories Table = "expense_categories"
	Incomes           Table = "incomes"
	Expenses          Table = "expenses"
	Documents         Table = "documents"
	DocumentItems     Table = "document_items"
	Events            Table = "events"

	MonthlyOverview   Table = "v_monthly_overview"
	ProjectFinancials Table = "v_projects_financials"
)

// Op names a store operation for errors and logging.
type Op string

const (
	OpSelect Op = "select"
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// ReadOnly reports whether t is an aggregation view.
func (t Table) ReadOnly() bool {
	return t == MonthlyOverview || t == ProjectFinancials
}

// Tables lists every collection and view known to the application.
func Tables() []Table {
	return []Table{
		Clients, Projects, IncomeCategories, ExpenseCategories, Incomes,
		Expenses, Documents, DocumentItems, Events, MonthlyOverview, ProjectFinancials,
	}
}

// Order sorts by a single column.
type Order struct {
	Column    string
	Ascending bool
}

// Query bounds a select. A zero Limit means no limit.
type Query struct {
	Order []Order
	Limit int
}

// Asc and Desc build single-column orderings.
func Asc(column string) Order  { return Order{Column: column, Ascending: true} }
func Desc(column string) Order { return Order{Column: column} }

// Store is the query/mutation API used uniformly for every collection.
type Store interface {
	// Select decodes the matching rows into dest, a pointer to a slice.
	Select(ctx context.Context, t Table, q Query, dest any) error
	// Insert creates one row (struct or map) or many (slice). When dest is
	// non-nil the created rows are decoded into it, a pointer to a slice.
	Insert(ctx context.Context, t Table, rows any, dest any) error
	// Update overwrites the given fields of the row with the given id.
	Update(ctx context.Context, t Table, id core.ID, patch any) error
	// Delete removes the row with the given id.
	Delete(ctx context.Context, t Table, id core.ID) error
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}

var (
	ErrReadOnly = errors.New("table is read-only")
	ErrNoRows   = errors.New("no rows returned")
	ErrNoID     = errors.New("missing id")
)

// Error is a failed store request.
type Error struct {
	Op      Op
	Table   Table
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d: %s", e.Op, e.Table, e.Status, msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Table, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// List selects rows of t into a typed slice.
func List[T any](ctx context.Context, s Store, t Table, q Query) ([]T, error) {
	var out []T
	if err := s.Select(ctx, t, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// InsertOne inserts a single row and returns the created record.
func InsertOne[T any](ctx context.Context, s Store, t Table, row any) (T, error) {
	var out []T
	var zero T
	if err := s.Insert(ctx, t, row, &out); err != nil {
		return zero, err
	}
	if len(out) == 0 {
		return zero, &Error{Op: OpInsert, Table: t, Err: ErrNoRows}
	}
	return out[0], nil
}

// CheckWritable rejects mutations of views and ids that are not set.
func CheckWritable(op Op, t Table, id core.ID, needID bool) error {
	if t.ReadOnly() {
		return &Error{Op: op, Table: t, Err: ErrReadOnly}
	}
	if needID && id.IsZero() {
		return &Error{Op: op, Table: t, Err: ErrNoID}
	}
	return nil
}

// ValidColumn reports whether name is a plain snake_case identifier.
func ValidColumn(name string) bool {
	if name == "" || len(name) > 63 {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
