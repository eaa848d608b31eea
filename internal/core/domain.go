package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Invoice DocumentType = "invoice"
	Quote   DocumentType = "quote"
)

type (
	// ID is an opaque record identifier assigned by the store. Numeric and
	// textual keys (bigserial, uuid) are both carried as strings.
	ID string

	DocumentType string

	// Date is a calendar day without time of day.
	Date struct {
		time.Time
	}

	Client struct {
		ID             ID      `json:"id,omitempty"`
		Name           string  `json:"name"`
		Email          *string `json:"email"`
		Phone          *string `json:"phone"`
		BillingAddress *string `json:"billing_address"`
		VATNumber      *string `json:"vat_number"`
	}

	Project struct {
		ID        ID               `json:"id,omitempty"`
		Name      string           `json:"name"`
		ClientID  *ID              `json:"client_id"`
		StartDate Date             `json:"start_date"`
		EndDate   Date             `json:"end_date"`
		Status    string           `json:"status"`
		BudgetCHF *decimal.Decimal `json:"budget_chf"`
		Notes     *string          `json:"notes"`
	}

	Category struct {
		ID   ID     `json:"id"`
		Name string `json:"name"`
	}

	Income struct {
		ID          ID              `json:"id,omitempty"`
		TxDate      Date            `json:"tx_date"`
		ProjectID   *ID             `json:"project_id"`
		ClientID    *ID             `json:"client_id"`
		CategoryID  ID              `json:"category_id"`
		AmountCHF   decimal.Decimal `json:"amount_chf"`
		Status      string          `json:"status"`
		Description *string         `json:"description"`
	}

	Expense struct {
		ID          ID              `json:"id,omitempty"`
		TxDate      Date            `json:"tx_date"`
		ProjectID   *ID             `json:"project_id"`
		Vendor      *string         `json:"vendor"`
		CategoryID  ID              `json:"category_id"`
		AmountCHF   decimal.Decimal `json:"amount_chf"`
		Description *string         `json:"description"`
	}

	// Document is an invoice or quote header. Number, status and totals are
	// assigned by the store and therefore only read back.
	Document struct {
		ID        ID               `json:"id,omitempty"`
		DocNumber *string          `json:"doc_number,omitempty"`
		DocType   DocumentType     `json:"doc_type"`
		ClientID  ID               `json:"client_id"`
		ProjectID *ID              `json:"project_id"`
		IssueDate Date             `json:"issue_date"`
		DueDate   Date             `json:"due_date"`
		TaxRate   decimal.Decimal  `json:"tax_rate"`
		Notes     *string          `json:"notes"`
		Status    string           `json:"status,omitempty"`
		Total     *decimal.Decimal `json:"total,omitempty"`
	}

	DocumentItem struct {
		ID          ID              `json:"id,omitempty"`
		DocumentID  ID              `json:"document_id"`
		Position    int             `json:"position"`
		Description string          `json:"description"`
		Qty         decimal.Decimal `json:"qty"`
		UnitPrice   decimal.Decimal `json:"unit_price"`
	}

	Event struct {
		ID      ID         `json:"id,omitempty"`
		Title   string     `json:"title"`
		StartAt time.Time  `json:"start_at"`
		EndAt   *time.Time `json:"end_at"`
	}

	// MonthOverview is one row of the store-side monthly aggregation.
	MonthOverview struct {
		MonthKey   string          `json:"month_key"`
		IncomeCHF  decimal.Decimal `json:"income_chf"`
		ExpenseCHF decimal.Decimal `json:"expense_chf"`
	}

	// ProjectFinancials is one row of the store-side per-project aggregation.
	ProjectFinancials struct {
		ID         ID              `json:"id"`
		Name       string          `json:"name"`
		ClientID   *ID             `json:"client_id"`
		Status     string          `json:"status"`
		IncomeCHF  decimal.Decimal `json:"income_chf"`
		ExpenseCHF decimal.Decimal `json:"expense_chf"`
		ProfitCHF  decimal.Decimal `json:"profit_chf"`
	}
)

var (
	ErrEmptyName        = errors.New("empty name")
	ErrMissingClient    = errors.New("missing client")
	ErrMissingCategory  = errors.New("missing category")
	ErrInvalidDocType   = errors.New("invalid document type")
	ErrEmptyTitle       = errors.New("empty title")
	ErrInvalidDateRange = errors.New("end before start")
)

// String returns the raw identifier.
func (id ID) String() string { return string(id) }

// IsZero reports whether the identifier is unset.
func (id ID) IsZero() bool { return id == "" }

// MarshalJSON emits all-digit identifiers as JSON numbers so integer keys
// round-trip unchanged; everything else is emitted as a string.
func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if isDigits(string(id)) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func isDigits(s string) bool {
	if s == "" || len(s) > 18 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s == "0" || s[0] != '0'
}

// NewDate returns the calendar day of t in UTC.
func NewDate(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses YYYY-MM-DD, falling back to RFC 3339 timestamps.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, err
	}
	return NewDate(t), nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(d.Format(time.DateOnly))), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil || *s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(*s)
	if err != nil {
		// SQLite hands back "YYYY-MM-DD HH:MM:SS" for timestamp defaults.
		if t, err2 := time.Parse(time.DateTime, *s); err2 == nil {
			*d = NewDate(t)
			return nil
		}
		return err
	}
	*d = parsed
	return nil
}

// Validate checks the fields the store requires.
func (c Client) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (p Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if !p.StartDate.IsZero() && !p.EndDate.IsZero() && p.EndDate.Before(p.StartDate.Time) {
		return ErrInvalidDateRange
	}
	return nil
}

func (i Income) Validate() error {
	if i.CategoryID.IsZero() {
		return ErrMissingCategory
	}
	return nil
}

func (e Expense) Validate() error {
	if e.CategoryID.IsZero() {
		return ErrMissingCategory
	}
	return nil
}

func (d Document) Validate() error {
	if d.DocType != Invoice && d.DocType != Quote {
		return ErrInvalidDocType
	}
	if d.ClientID.IsZero() {
		return ErrMissingClient
	}
	return nil
}

func (e Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrEmptyTitle
	}
	if e.EndAt != nil && e.EndAt.Before(e.StartAt) {
		return ErrInvalidDateRange
	}
	return nil
}
