// Package catalog caches the reference data (clients, projects and both
// category sets) used to resolve foreign keys to display names.
//
// The cache is never patched: Reload fetches all four lists concurrently and
// swaps in a complete new Snapshot. Readers always see either the previous or
// the next snapshot, never a mix.
package catalog

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"buchhaltung/internal/core"
	"buchhaltung/internal/log"
	"buchhaltung/internal/store"
)

const projectsLimit = 1000

// Snapshot is an immutable view of the catalog at one point in time.
type Snapshot struct {
	Clients           []core.Client
	Projects          []core.Project
	IncomeCategories  []core.Category
	ExpenseCategories []core.Category
	LoadedAt          time.Time

	clientNames          map[core.ID]string
	projectNames         map[core.ID]string
	incomeCategoryNames  map[core.ID]string
	expenseCategoryNames map[core.ID]string
}

// Cache owns the current snapshot.
type Cache struct {
	store   store.Store
	logger  *log.Logger
	current atomic.Pointer[Snapshot]
	reloads atomic.Int64
}

// New returns a cache holding an empty snapshot. Call Reload to populate it.
func New(s store.Store, logger *log.Logger) *Cache {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	c := &Cache{store: s, logger: logger.WithComponent(log.ComponentCatalog)}
	c.current.Store(newSnapshot(nil, nil, nil, nil, time.Time{}))
	return c
}

// Reload issues the four catalog reads concurrently and waits for all of
// them. A failed read is logged and leaves its list empty; the others still
// populate. The resulting snapshot replaces the previous one atomically.
func (c *Cache) Reload(ctx context.Context) *Snapshot {
	var (
		g                             errgroup.Group
		clients                       []core.Client
		projects                      []core.Project
		incomeCategories, expenseCats []core.Category
	)

	g.Go(func() error {
		clients = c.fetchClients(ctx)
		return nil
	})
	g.Go(func() error {
		projects = c.fetchProjects(ctx)
		return nil
	})
	g.Go(func() error {
		incomeCategories = c.fetchCategories(ctx, store.IncomeCategories)
		return nil
	})
	g.Go(func() error {
		expenseCats = c.fetchCategories(ctx, store.ExpenseCategories)
		return nil
	})
	_ = g.Wait()

	snap := newSnapshot(clients, projects, incomeCategories, expenseCats, time.Now())
	c.current.Store(snap)
	c.reloads.Add(1)

	c.logger.DebugContext(ctx, "Catalog reloaded",
		"clients", len(clients),
		"projects", len(projects),
		"income_categories", len(incomeCategories),
		"expense_categories", len(expenseCats))
	return snap
}

func (c *Cache) fetchClients(ctx context.Context) []core.Client {
	rows, err := store.List[core.Client](ctx, c.store, store.Clients, store.Query{Order: []store.Order{store.Asc("name")}})
	if err != nil {
		c.logError(ctx, store.Clients, err)
		return nil
	}
	return rows
}

func (c *Cache) fetchProjects(ctx context.Context) []core.Project {
	rows, err := store.List[core.Project](ctx, c.store, store.Projects, store.Query{
		Order: []store.Order{store.Desc("created_at")},
		Limit: projectsLimit,
	})
	if err != nil {
		c.logError(ctx, store.Projects, err)
		return nil
	}
	return rows
}

func (c *Cache) fetchCategories(ctx context.Context, t store.Table) []core.Category {
	rows, err := store.List[core.Category](ctx, c.store, t, store.Query{Order: []store.Order{store.Asc("name")}})
	if err != nil {
		c.logError(ctx, t, err)
		return nil
	}
	return rows
}

func (c *Cache) logError(ctx context.Context, t store.Table, err error) {
	c.logger.ErrorContext(ctx, "Catalog fetch failed",
		log.FieldError, err,
		log.FieldTable, string(t),
		log.FieldOperation, log.OpList)
}

// Snapshot returns the current snapshot. It is never nil.
func (c *Cache) Snapshot() *Snapshot {
	return c.current.Load()
}

// Reloads returns how many reloads completed since startup.
func (c *Cache) Reloads() int64 {
	return c.reloads.Load()
}

// ClientName resolves a client id, returning "" when unknown.
func (c *Cache) ClientName(id *core.ID) string { return c.Snapshot().ClientName(id) }

// ProjectName resolves a project id, returning "" when unknown.
func (c *Cache) ProjectName(id *core.ID) string { return c.Snapshot().ProjectName(id) }

func newSnapshot(clients []core.Client, projects []core.Project, income, expense []core.Category, at time.Time) *Snapshot {
	s := &Snapshot{
		Clients:              orEmpty(clients),
		Projects:             orEmpty(projects),
		IncomeCategories:     orEmpty(income),
		ExpenseCategories:    orEmpty(expense),
		LoadedAt:             at,
		clientNames:          make(map[core.ID]string, len(clients)),
		projectNames:         make(map[core.ID]string, len(projects)),
		incomeCategoryNames:  make(map[core.ID]string, len(income)),
		expenseCategoryNames: make(map[core.ID]string, len(expense)),
	}
	for _, cl := range s.Clients {
		s.clientNames[cl.ID] = cl.Name
	}
	for _, p := range s.Projects {
		s.projectNames[p.ID] = p.Name
	}
	for _, cat := range s.IncomeCategories {
		s.incomeCategoryNames[cat.ID] = cat.Name
	}
	for _, cat := range s.ExpenseCategories {
		s.expenseCategoryNames[cat.ID] = cat.Name
	}
	return s
}

func orEmpty[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func (s *Snapshot) ClientName(id *core.ID) string {
	if id == nil {
		return ""
	}
	return s.clientNames[*id]
}

func (s *Snapshot) ProjectName(id *core.ID) string {
	if id == nil {
		return ""
	}
	return s.projectNames[*id]
}

func (s *Snapshot) IncomeCategoryName(id core.ID) string  { return s.incomeCategoryNames[id] }
func (s *Snapshot) ExpenseCategoryName(id core.ID) string { return s.expenseCategoryNames[id] }

// HasIncomeCategory reports whether id names a loaded income category.
func (s *Snapshot) HasIncomeCategory(id core.ID) bool {
	_, ok := s.incomeCategoryNames[id]
	return ok
}

// HasExpenseCategory reports whether id names a loaded expense category.
func (s *Snapshot) HasExpenseCategory(id core.ID) bool {
	_, ok := s.expenseCategoryNames[id]
	return ok
}
