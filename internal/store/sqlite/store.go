// Package sqlite implements store.Store on a local SQLite file. It mirrors
// the hosted schema closely enough for development: the same collections,
// the two aggregation views and store-computed document totals.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"buchhaltung/internal/core"
	"buchhaltung/internal/log"
	"buchhaltung/internal/store"

	_ "modernc.org/sqlite"
)

// columns lists the writable columns per collection.
var columns = map[store.Table][]string{
	store.Clients:           {"id", "name", "email", "phone", "billing_address", "vat_number"},
	store.Projects:          {"id", "name", "client_id", "start_date", "end_date", "status", "budget_chf", "notes"},
	store.IncomeCategories:  {"id", "name"},
	store.ExpenseCategories: {"id", "name"},
	store.Incomes:           {"id", "tx_date", "project_id", "client_id", "category_id", "amount_chf", "status", "description"},
	store.Expenses:          {"id", "tx_date", "project_id", "vendor", "category_id", "amount_chf", "description"},
	store.Documents:         {"id", "doc_number", "doc_type", "client_id", "project_id", "issue_date", "due_date", "tax_rate", "status", "notes"},
	store.DocumentItems:     {"id", "document_id", "position", "description", "qty", "unit_price"},
	store.Events:            {"id", "title", "start_at", "end_at"},
}

// Store is a SQLite-backed store.Store.
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

var _ store.Store = (*Store)(nil)

// Option customises a Store.
type Option func(*Store)

// WithLogger sets the logger; the default discards.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) { s.logger = logger.WithComponent(log.ComponentStorage) }
}

// Open creates the database directory if needed, opens the file with foreign
// keys enabled and applies migrations.
func Open(dbPath string, opts ...Option) (*Store, error) {
	s := &Store{logger: log.Discard()}
	for _, opt := range opts {
		opt(s)
	}

	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	dsn := "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s.db = db
	s.logger.Info("SQLite store ready", "path", dbPath)
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Select(ctx context.Context, t store.Table, q store.Query, dest any) error {
	if !known(t) {
		return &store.Error{Op: store.OpSelect, Table: t, Message: "unknown table"}
	}

	var sb strings.Builder
	sb.WriteString(`SELECT * FROM "` + string(t) + `"`)
	for i, o := range q.Order {
		if !store.ValidColumn(o.Column) {
			return &store.Error{Op: store.OpSelect, Table: t, Message: "invalid order column " + strconv.Quote(o.Column)}
		}
		if i == 0 {
			sb.WriteString(" ORDER BY ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(`"` + o.Column + `"`)
		if o.Ascending {
			sb.WriteString(" ASC")
		} else {
			sb.WriteString(" DESC")
		}
	}
	if q.Limit > 0 {
		sb.WriteString(" LIMIT " + strconv.Itoa(q.Limit))
	}

	rows, err := s.db.QueryContext(ctx, sb.String())
	if err != nil {
		return &store.Error{Op: store.OpSelect, Table: t, Err: err}
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return &store.Error{Op: store.OpSelect, Table: t, Err: err}
	}
	return decodeInto(store.OpSelect, t, out, dest)
}

func (s *Store) Insert(ctx context.Context, t store.Table, rows any, dest any) error {
	if err := store.CheckWritable(store.OpInsert, t, "", false); err != nil {
		return err
	}
	records, err := toRecords(rows)
	if err != nil {
		return &store.Error{Op: store.OpInsert, Table: t, Err: err}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &store.Error{Op: store.OpInsert, Table: t, Err: err}
	}
	defer tx.Rollback()

	created := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		cols, args, err := bind(t, rec)
		if err != nil {
			return &store.Error{Op: store.OpInsert, Table: t, Err: err}
		}
		var query string
		if len(cols) == 0 {
			query = `INSERT INTO "` + string(t) + `" DEFAULT VALUES RETURNING *`
		} else {
			query = `INSERT INTO "` + string(t) + `" ("` + strings.Join(cols, `", "`) + `") VALUES (` +
				strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + `) RETURNING *`
		}
		res, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return &store.Error{Op: store.OpInsert, Table: t, Err: err}
		}
		got, err := scanRows(res)
		res.Close()
		if err != nil {
			return &store.Error{Op: store.OpInsert, Table: t, Err: err}
		}
		created = append(created, got...)
	}
	if err := tx.Commit(); err != nil {
		return &store.Error{Op: store.OpInsert, Table: t, Err: err}
	}
	if dest == nil {
		return nil
	}
	return decodeInto(store.OpInsert, t, created, dest)
}

func (s *Store) Update(ctx context.Context, t store.Table, id core.ID, patch any) error {
	if err := store.CheckWritable(store.OpUpdate, t, id, true); err != nil {
		return err
	}
	records, err := toRecords(patch)
	if err != nil || len(records) != 1 {
		return &store.Error{Op: store.OpUpdate, Table: t, Message: "patch must be a single object"}
	}
	cols, args, err := bind(t, records[0])
	if err != nil {
		return &store.Error{Op: store.OpUpdate, Table: t, Err: err}
	}
	if len(cols) == 0 {
		return nil
	}
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = `"` + c + `" = ?`
	}
	query := `UPDATE "` + string(t) + `" SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, query, append(args, idArg(id))...); err != nil {
		return &store.Error{Op: store.OpUpdate, Table: t, Err: err}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, t store.Table, id core.ID) error {
	if err := store.CheckWritable(store.OpDelete, t, id, true); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM "`+string(t)+`" WHERE id = ?`, idArg(id)); err != nil {
		return &store.Error{Op: store.OpDelete, Table: t, Err: err}
	}
	return nil
}

func known(t store.Table) bool {
	_, ok := columns[t]
	return ok || t.ReadOnly()
}

// toRecords normalises a struct, map or slice into JSON-shaped records.
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
			return nil, fmt.Errorf("decode rows: %w", err)
		}
		return out, nil
	}
	var one map[string]any
	if err := dec.Decode(&one); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	return []map[string]any{one}, nil
}

// bind maps a record onto known columns in a stable order, rejecting
// unknown fields the way PostgREST does.
func bind(t store.Table, rec map[string]any) ([]string, []any, error) {
	allowed := columns[t]
	for k := range rec {
		if !slices.Contains(allowed, k) {
			return nil, nil, fmt.Errorf("unknown column %q", k)
		}
	}
	var cols []string
	var args []any
	for _, c := range allowed {
		v, ok := rec[c]
		if !ok {
			continue
		}
		if c == "id" && v == nil {
			continue
		}
		arg, err := sqlValue(v)
		if err != nil {
			return nil, nil, fmt.Errorf("column %q: %w", c, err)
		}
		cols = append(cols, c)
		args = append(args, arg)
	}
	return cols, args, nil
}

func sqlValue(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return x, nil
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unsupported value of type %T", v)
	}
}

func idArg(id core.ID) any {
	if i, err := strconv.ParseInt(id.String(), 10, 64); err == nil {
		return i
	}
	return id.String()
}

func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				rec[c] = string(b)
				continue
			}
			rec[c] = vals[i]
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func decodeInto(op store.Op, t store.Table, recs []map[string]any, dest any) error {
	if recs == nil {
		recs = []map[string]any{}
	}
	b, err := json.Marshal(recs)
	if err != nil {
		return &store.Error{Op: op, Table: t, Err: err}
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return &store.Error{Op: op, Table: t, Err: fmt.Errorf("decode rows: %w", err)}
	}
	return nil
}
