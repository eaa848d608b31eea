package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTMXResponseBuilder_BodyHTML(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Status(http.StatusOK).
		BodyHTML("<tr></tr>").
		Write(w)

	if w.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Body.String() != "<tr></tr>" {
		t.Errorf("Body = %q, want %q", w.Body.String(), "<tr></tr>")
	}
}

func TestHTMXResponseBuilder_Triggers(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerChanged("incomes").
		TriggerDashboardRefresh().
		TriggerFormReset().
		TriggerSuccessNotification("Einnahme gespeichert").
		Write(w)

	trigger := w.Header().Get("HX-Trigger")
	if trigger == "" {
		t.Fatal("HX-Trigger header not set")
	}

	expectedParts := []string{
		`"incomes:changed"`,
		`"dashboard:refresh"`,
		`"form:reset"`,
		`"show-notification"`,
		`"type":"success"`,
		`"duration":3000`,
	}
	for _, part := range expectedParts {
		if !strings.Contains(trigger, part) {
			t.Errorf("HX-Trigger missing %q: %s", part, trigger)
		}
	}
}

func TestHTMXResponseBuilder_CalendarAndViewRefresh(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Status(http.StatusNoContent).
		TriggerCalendarRefresh().
		TriggerViewRefresh().
		TriggerErrorNotification("Fehler").
		Write(w)

	if w.Code != http.StatusNoContent {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusNoContent)
	}
	trigger := w.Header().Get("HX-Trigger")
	for _, part := range []string{`"calendar:refresh"`, `"view:refresh"`, `"type":"error"`, `"duration":5000`} {
		if !strings.Contains(trigger, part) {
			t.Errorf("HX-Trigger missing %q: %s", part, trigger)
		}
	}
}

func TestHTMXResponseBuilder_BodyJSON(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Status(http.StatusCreated).
		BodyJSON(map[string]string{"id": "7"}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if w.Body.String() != `{"id":"7"}` {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestHTMXResponseBuilder_NoTriggersNoHeader(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().Write(w)
	if _, ok := w.Header()["Hx-Trigger"]; ok {
		t.Errorf("HX-Trigger set without triggers")
	}
}

func TestHTMXResponseBuilder_BodyJSONFailure(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().BodyJSON(make(chan int)).Write(w)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if w.Body.Len() != 0 {
		t.Errorf("Body = %q, want empty", w.Body.String())
	}
}

func TestHTMXResponseBuilder_LastNotificationWins(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().
		TriggerSuccessNotification("Gespeichert").
		TriggerErrorNotification("Fehler beim Speichern").
		Write(w)

	trigger := w.Header().Get("HX-Trigger")
	if strings.Contains(trigger, "Gespeichert\"") || !strings.Contains(trigger, `"message":"Fehler beim Speichern"`) {
		t.Errorf("HX-Trigger = %s", trigger)
	}
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		builder    *HTMXResponseBuilder
		wantStatus int
		wantBody   string
	}{
		{
			name:       "bad request",
			builder:    BadRequestError("Invalid input"),
			wantStatus: http.StatusBadRequest,
			wantBody:   `<div class="error">Invalid input</div>`,
		},
		{
			name:       "unprocessable entity",
			builder:    UnprocessableEntityError("Validation failed"),
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   `<div class="error">Validation failed</div>`,
		},
		{
			name:       "internal server error",
			builder:    InternalServerError("Something broke"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `<div class="error">Something broke</div>`,
		},
		{
			name:       "bad gateway",
			builder:    BadGatewayError("Store down"),
			wantStatus: http.StatusBadGateway,
			wantBody:   `<div class="error">Store down</div>`,
		},
		{
			name:       "not found",
			builder:    NotFoundError("Resource not found"),
			wantStatus: http.StatusNotFound,
			wantBody:   `<div class="error">Resource not found</div>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantStatus)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("Body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestErrorResponse_EscapesHTML(t *testing.T) {
	w := httptest.NewRecorder()

	BadRequestError("<script>alert('xss')</script>").Write(w)

	body := w.Body.String()
	if strings.Contains(body, "<script>") {
		t.Error("Error response did not escape HTML")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Error("Error response did not properly escape HTML entities")
	}
}
