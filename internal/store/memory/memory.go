// Package memory is an in-process store.Store for tests and demos. Rows are
// kept in their JSON shape, the aggregation views are computed on read and
// any operation can be made to fail.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"buchhaltung/internal/core"
	"buchhaltung/internal/store"
)

type failKey struct {
	op    store.Op
	table store.Table
}

// Store is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	tables   map[store.Table][]map[string]any
	nextID   map[store.Table]int64
	views    map[store.Table][]map[string]any
	failures map[failKey]error
	calls    map[failKey]int

	// Now is the clock used for created_at and the current-year view.
	Now func() time.Time
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		tables:   make(map[store.Table][]map[string]any),
		nextID:   make(map[store.Table]int64),
		views:    make(map[store.Table][]map[string]any),
		failures: make(map[failKey]error),
		calls:    make(map[failKey]int),
		Now:      time.Now,
	}
}

// NewWithDefaults returns a store seeded with a few categories.
func NewWithDefaults() *Store {
	s := New()
	for _, name := range []string{"Dienstleistung", "Produktverkauf", "Sonstiges"} {
		_ = s.Seed(store.IncomeCategories, core.Category{Name: name})
	}
	for _, name := range []string{"Büromaterial", "Software", "Reisekosten", "Sonstiges"} {
		_ = s.Seed(store.ExpenseCategories, core.Category{Name: name})
	}
	return s
}

// Seed inserts rows directly, bypassing failure injection and the document
// number and totals triggers.
func (s *Store) Seed(t store.Table, rows ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		recs, err := toRecords(r)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			s.add(t, rec)
		}
	}
	return nil
}

// SetView overrides the computed rows of an aggregation view.
func (s *Store) SetView(t store.Table, rows ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []map[string]any
	for _, r := range rows {
		recs, err := toRecords(r)
		if err != nil {
			return err
		}
		out = append(out, recs...)
	}
	s.views[t] = out
	return nil
}

// FailOn makes every subsequent op on t return err. A nil err clears it.
func (s *Store) FailOn(op store.Op, t store.Table, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := failKey{op, t}
	if err == nil {
		delete(s.failures, k)
		return
	}
	s.failures[k] = err
}

// Calls returns how many times op was invoked on t, failed calls included.
func (s *Store) Calls(op store.Op, t store.Table) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[failKey{op, t}]
}

// Len returns the number of rows in t.
func (s *Store) Len(t store.Table) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tables[t])
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Select(ctx context.Context, t store.Table, q store.Query, dest any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, store.OpSelect, t); err != nil {
		return err
	}

	var rows []map[string]any
	switch {
	case s.views[t] != nil:
		rows = cloneAll(s.views[t])
	case t == store.MonthlyOverview:
		rows = s.monthlyOverview()
	case t == store.ProjectFinancials:
		rows = s.projectFinancials()
	default:
		rows = cloneAll(s.tables[t])
	}

	for _, o := range q.Order {
		if !store.ValidColumn(o.Column) {
			return &store.Error{Op: store.OpSelect, Table: t, Message: "invalid order column " + strconv.Quote(o.Column)}
		}
	}
	if len(q.Order) > 0 {
		sort.SliceStable(rows, func(i, j int) bool {
			for _, o := range q.Order {
				c := compare(rows[i][o.Column], rows[j][o.Column])
				if c == 0 {
					continue
				}
				if o.Ascending {
					return c < 0
				}
				return c > 0
			}
			return false
		})
	}
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	return decodeInto(rows, dest)
}

func (s *Store) Insert(ctx context.Context, t store.Table, rows any, dest any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, store.OpInsert, t); err != nil {
		return err
	}
	if err := store.CheckWritable(store.OpInsert, t, "", false); err != nil {
		return err
	}
	recs, err := toRecords(rows)
	if err != nil {
		return &store.Error{Op: store.OpInsert, Table: t, Err: err}
	}
	created := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		row := s.add(t, rec)
		s.afterWrite(t, row, nil)
		created = append(created, clone(row))
	}
	if dest == nil {
		return nil
	}
	return decodeInto(created, dest)
}

func (s *Store) Update(ctx context.Context, t store.Table, id core.ID, patch any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, store.OpUpdate, t); err != nil {
		return err
	}
	if err := store.CheckWritable(store.OpUpdate, t, id, true); err != nil {
		return err
	}
	recs, err := toRecords(patch)
	if err != nil || len(recs) != 1 {
		return &store.Error{Op: store.OpUpdate, Table: t, Message: "patch must be a single object"}
	}
	for _, row := range s.tables[t] {
		if idOf(row) == id.String() {
			old := clone(row)
			for k, v := range recs[0] {
				if k != "id" {
					row[k] = v
				}
			}
			s.afterWrite(t, row, old)
		}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, t store.Table, id core.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, store.OpDelete, t); err != nil {
		return err
	}
	if err := store.CheckWritable(store.OpDelete, t, id, true); err != nil {
		return err
	}
	var removed []map[string]any
	rows := s.tables[t][:0]
	for _, row := range s.tables[t] {
		if idOf(row) != id.String() {
			rows = append(rows, row)
		} else {
			removed = append(removed, row)
		}
	}
	s.tables[t] = rows
	for _, row := range removed {
		s.afterWrite(t, nil, row)
	}
	return nil
}

// afterWrite mirrors the sqlite document triggers. row is the new state and
// old the previous one; either is nil for inserts and deletes.
func (s *Store) afterWrite(t store.Table, row, old map[string]any) {
	switch t {
	case store.Documents:
		switch {
		case row == nil:
			s.cascadeItems(idOf(old))
		case old == nil:
			assignNumber(row)
		case fmt.Sprint(row["tax_rate"]) != fmt.Sprint(old["tax_rate"]):
			s.recomputeTotals(idOf(row))
		}
	case store.DocumentItems:
		if old != nil {
			s.recomputeTotals(fmt.Sprint(old["document_id"]))
		}
		if row != nil && (old == nil || fmt.Sprint(row["document_id"]) != fmt.Sprint(old["document_id"])) {
			s.recomputeTotals(fmt.Sprint(row["document_id"]))
		}
	}
}

func assignNumber(doc map[string]any) {
	if doc["doc_number"] != nil {
		return
	}
	issued, _ := doc["issue_date"].(string)
	if len(issued) < 4 {
		return
	}
	prefix := "OF-"
	if doc["doc_type"] == string(core.Invoice) {
		prefix = "RE-"
	}
	id, _ := strconv.ParseInt(idOf(doc), 10, 64)
	doc["doc_number"] = fmt.Sprintf("%s%s-%04d", prefix, issued[:4], id)
}

func (s *Store) recomputeTotals(docID string) {
	for _, doc := range s.tables[store.Documents] {
		if idOf(doc) != docID {
			continue
		}
		subtotal := decimal.Zero
		for _, item := range s.tables[store.DocumentItems] {
			if fmt.Sprint(item["document_id"]) == docID {
				subtotal = subtotal.Add(decimalOf(item["qty"]).Mul(decimalOf(item["unit_price"])))
			}
		}
		tax := subtotal.Mul(decimalOf(doc["tax_rate"])).Div(decimal.NewFromInt(100))
		doc["subtotal"] = subtotal.String()
		doc["tax_amount"] = tax.String()
		doc["total"] = subtotal.Add(tax).String()
	}
}

func (s *Store) cascadeItems(docID string) {
	items := s.tables[store.DocumentItems][:0]
	for _, item := range s.tables[store.DocumentItems] {
		if fmt.Sprint(item["document_id"]) != docID {
			items = append(items, item)
		}
	}
	s.tables[store.DocumentItems] = items
}

func decimalOf(v any) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(fmt.Sprint(v))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// begin records the call and applies context cancellation and injected
// failures. Callers hold s.mu.
func (s *Store) begin(ctx context.Context, op store.Op, t store.Table) error {
	k := failKey{op, t}
	s.calls[k]++
	if err := ctx.Err(); err != nil {
		return &store.Error{Op: op, Table: t, Err: err}
	}
	if err, ok := s.failures[k]; ok {
		return &store.Error{Op: op, Table: t, Err: err}
	}
	return nil
}

func (s *Store) add(t store.Table, rec map[string]any) map[string]any {
	if v, ok := rec["id"]; !ok || v == nil {
		s.nextID[t]++
		rec["id"] = json.Number(strconv.FormatInt(s.nextID[t], 10))
	}
	if _, ok := rec["created_at"]; !ok {
		rec["created_at"] = s.Now().UTC().Format(time.RFC3339Nano)
	}
	if t == store.Documents {
		if rec["status"] == nil {
			rec["status"] = "draft"
		}
	}
	s.tables[t] = append(s.tables[t], rec)
	return rec
}

func (s *Store) monthlyOverview() []map[string]any {
	year := s.Now().UTC().Year()
	out := make([]map[string]any, 0, 12)
	for m := 1; m <= 12; m++ {
		key := fmt.Sprintf("%04d-%02d", year, m)
		out = append(out, map[string]any{
			"month_key":   key,
			"income_chf":  s.sum(store.Incomes, func(r map[string]any) bool { return hasMonth(r, key) }).String(),
			"expense_chf": s.sum(store.Expenses, func(r map[string]any) bool { return hasMonth(r, key) }).String(),
		})
	}
	return out
}

func (s *Store) projectFinancials() []map[string]any {
	out := make([]map[string]any, 0, len(s.tables[store.Projects]))
	for _, p := range s.tables[store.Projects] {
		pid := idOf(p)
		byProject := func(r map[string]any) bool { return fmt.Sprint(r["project_id"]) == pid }
		inc := s.sum(store.Incomes, byProject)
		exp := s.sum(store.Expenses, byProject)
		out = append(out, map[string]any{
			"id":          p["id"],
			"name":        p["name"],
			"client_id":   p["client_id"],
			"status":      p["status"],
			"created_at":  p["created_at"],
			"income_chf":  inc.String(),
			"expense_chf": exp.String(),
			"profit_chf":  inc.Sub(exp).String(),
		})
	}
	return out
}

func (s *Store) sum(t store.Table, match func(map[string]any) bool) decimal.Decimal {
	total := decimal.Zero
	for _, r := range s.tables[t] {
		if !match(r) {
			continue
		}
		if d, err := decimal.NewFromString(fmt.Sprint(r["amount_chf"])); err == nil {
			total = total.Add(d)
		}
	}
	return total
}

func hasMonth(r map[string]any, key string) bool {
	s, _ := r["tx_date"].(string)
	return strings.HasPrefix(s, key)
}

func idOf(r map[string]any) string {
	if r["id"] == nil {
		return ""
	}
	return fmt.Sprint(r["id"])
}

// compare orders numbers numerically, everything else as strings, and sorts
// nulls last.
func compare(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return 1
		default:
			return -1
		}
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	if ad, err := decimal.NewFromString(as); err == nil {
		if bd, err := decimal.NewFromString(bs); err == nil {
			return ad.Cmp(bd)
		}
	}
	return strings.Compare(as, bs)
}

func toRecords(v any) ([]map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal rows: %w", err)
	}
	b = bytes.TrimSpace(b)
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if len(b) > 0 && b[0] == '[' {
		var out []map[string]any
		if err := dec.Decode(&out); err != nil {
			return nil, err
		}
		return out, nil
	}
	var one map[string]any
	if err := dec.Decode(&one); err != nil {
		return nil, err
	}
	return []map[string]any{one}, nil
}

func decodeInto(rows []map[string]any, dest any) error {
	if rows == nil {
		rows = []map[string]any{}
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dest)
}

func clone(r map[string]any) map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func cloneAll(rows []map[string]any) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = clone(r)
	}
	return out
}
