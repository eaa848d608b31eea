package core

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestIDJSON(t *testing.T) {
	cases := []struct {
		in   string
		want ID
		out  string
	}{
		{`42`, "42", `42`},
		{`"42"`, "42", `42`},
		{`"5f0c3c1e-8a9b-4d7e-9a51-3b1f1e0c2a11"`, "5f0c3c1e-8a9b-4d7e-9a51-3b1f1e0c2a11", `"5f0c3c1e-8a9b-4d7e-9a51-3b1f1e0c2a11"`},
		{`"007"`, "007", `"007"`},
		{`null`, "", `null`},
	}
	for _, tc := range cases {
		var id ID
		if err := json.Unmarshal([]byte(tc.in), &id); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.in, err)
		}
		if id != tc.want {
			t.Fatalf("unmarshal %s = %q, want %q", tc.in, id, tc.want)
		}
		b, err := json.Marshal(id)
		if err != nil {
			t.Fatalf("marshal %q: %v", id, err)
		}
		if string(b) != tc.out {
			t.Fatalf("marshal %q = %s, want %s", id, b, tc.out)
		}
	}
}

func TestDateJSON(t *testing.T) {
	var p Project
	in := `{"name":"Web","start_date":"2025-04-01","end_date":null,"created_at":"2025-04-01 09:10:11"}`
	if err := json.Unmarshal([]byte(in), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.StartDate.String() != "2025-04-01" || !p.EndDate.IsZero() {
		t.Fatalf("unexpected dates %v / %v", p.StartDate, p.EndDate)
	}

	var ev struct {
		Day Date `json:"day"`
	}
	if err := json.Unmarshal([]byte(`{"day":"2025-04-01T23:30:00+00:00"}`), &ev); err != nil {
		t.Fatalf("unmarshal timestamp: %v", err)
	}
	if ev.Day.String() != "2025-04-01" {
		t.Fatalf("timestamp day = %q", ev.Day.String())
	}
}

func TestOptionalFieldsMarshalAsNull(t *testing.T) {
	inc := Income{
		TxDate:     NewDate(time.Date(2025, 5, 2, 15, 0, 0, 0, time.UTC)),
		ProjectID:  OptionalID(""),
		CategoryID: "3",
		AmountCHF:  ParseAmount("100"),
		Status:     "open",
	}
	b, err := json.Marshal(inc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	for _, want := range []string{`"project_id":null`, `"description":null`, `"tx_date":"2025-05-02"`, `"category_id":3`} {
		if !strings.Contains(s, want) {
			t.Fatalf("expected %s in %s", want, s)
		}
	}
	if strings.Contains(s, `"id"`) {
		t.Fatalf("unset id must be omitted: %s", s)
	}
}

func TestValidate(t *testing.T) {
	later := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)
	cases := []struct {
		name string
		v    interface{ Validate() error }
		ok   bool
	}{
		{"client ok", Client{Name: "Acme"}, true},
		{"client blank", Client{Name: "  "}, false},
		{"project ok", Project{Name: "Web"}, true},
		{"project range", Project{Name: "Web", StartDate: NewDate(later), EndDate: NewDate(later.AddDate(0, 0, -3))}, false},
		{"income no category", Income{}, false},
		{"expense ok", Expense{CategoryID: "1"}, true},
		{"document ok", Document{DocType: Invoice, ClientID: "1"}, true},
		{"document type", Document{DocType: "receipt", ClientID: "1"}, false},
		{"document client", Document{DocType: Quote}, false},
		{"event ok", Event{Title: "Call", StartAt: later}, true},
		{"event title", Event{StartAt: later}, false},
		{"event range", Event{Title: "x", StartAt: later, EndAt: &earlier}, false},
	}
	for _, tc := range cases {
		err := tc.v.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%s: expected ok, got %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}
