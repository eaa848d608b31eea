package http

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
)

func newParser(t *testing.T, body, contentType string) *RequestBodyParser {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return parser
}

func TestRequestBodyParser_JSON(t *testing.T) {
	parser := newParser(t, `{"id": "123", "name": "test", "amount": 42.5, "all_day": true}`, "application/json")

	if !parser.IsJSON() {
		t.Error("Expected IsJSON() to be true")
	}
	if id := parser.Get("id"); id != "123" {
		t.Errorf("Get('id') = %q, want '123'", id)
	}
	if name := parser.Get("name"); name != "test" {
		t.Errorf("Get('name') = %q, want 'test'", name)
	}
	if amount := parser.Get("amount"); amount != "42.5" {
		t.Errorf("Get('amount') = %q, want '42.5'", amount)
	}
	if allDay := parser.Get("all_day"); allDay != "true" {
		t.Errorf("Get('all_day') = %q, want 'true'", allDay)
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	parser := newParser(t, "id=456&name=form+test&value=100", "application/x-www-form-urlencoded")

	if parser.IsJSON() {
		t.Error("Expected IsJSON() to be false for form data")
	}
	if id := parser.Get("id"); id != "456" {
		t.Errorf("Get('id') = %q, want '456'", id)
	}
	if name := parser.Get("name"); name != "form test" {
		t.Errorf("Get('name') = %q, want 'form test'", name)
	}
	if ct := parser.ContentType(); ct != "application/x-www-form-urlencoded" {
		t.Errorf("ContentType() = %q", ct)
	}
}

func TestRequestBodyParser_JSONWithoutContentType(t *testing.T) {
	parser := newParser(t, `{"title":"Call"}`, "")
	if !parser.IsJSON() {
		t.Fatal("body starting with '{' should parse as JSON")
	}
	if got := parser.Get("title"); got != "Call" {
		t.Errorf("Get('title') = %q, want 'Call'", got)
	}
}

func TestRequestBodyParser_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"title":`))
	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err == nil {
		t.Fatal("Parse() should fail on truncated JSON")
	}
	if _, resp := parseBody(httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"title":`))); resp == nil {
		t.Fatal("parseBody() should return an error response")
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	parser := newParser(t, "", "")

	if val := parser.Get("nonexistent"); val != "" {
		t.Errorf("Get('nonexistent') = %q, want empty string", val)
	}
	if parser.Has("nonexistent") {
		t.Error("Has('nonexistent') = true on empty body")
	}
	if got := parser.GetAll("item_qty"); len(got) != 0 {
		t.Errorf("GetAll() = %v, want empty", got)
	}
}

func TestRequestBodyParser_GetAll(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		want        []string
	}{
		{
			name:        "repeated form field keeps order",
			body:        "item_qty=2&item_qty=+1.5+&item_qty=",
			contentType: "application/x-www-form-urlencoded",
			want:        []string{"2", "1.5", ""},
		},
		{
			name:        "bracket suffix",
			body:        "item_qty%5B%5D=3&item_qty%5B%5D=4",
			contentType: "application/x-www-form-urlencoded",
			want:        []string{"3", "4"},
		},
		{
			name:        "json array",
			body:        `{"item_qty": ["1", 2, 0.5]}`,
			contentType: "application/json",
			want:        []string{"1", "2", "0.5"},
		},
		{
			name:        "json scalar",
			body:        `{"item_qty": "7"}`,
			contentType: "application/json",
			want:        []string{"7"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := newParser(t, tt.body, tt.contentType)
			if got := parser.GetAll("item_qty"); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("GetAll() = %q, want %q", got, tt.want)
			}
			if !parser.Has("item_qty") {
				t.Error("Has('item_qty') = false")
			}
		})
	}
}

func TestRequestBodyParser_SanitizesControlCharacters(t *testing.T) {
	parser := newParser(t, "title=%20Meet%00ing%07%20", "application/x-www-form-urlencoded")
	if got := parser.Get("title"); got != "Meeting" {
		t.Errorf("Get('title') = %q, want 'Meeting'", got)
	}
}
