package http

import (
	"bytes"
	"strings"
	"time"

	"buchhaltung/internal/services"
)

// User-facing messages.
const (
	msgBadRequest     = "Ungültige Anfrage"
	msgSaveFailed     = "Fehler beim Speichern"
	msgDeleteFailed   = "Fehler beim Löschen"
	msgDeleted        = "Gelöscht"
	msgLoadFailed     = "Fehler beim Laden"
	msgDocumentFailed = "Fehler: Dokument"
	msgItemsFailed    = "Fehler: Positionen"
	msgRefreshed      = "Aktualisiert"
	msgEventSaved     = "Termin gespeichert"
	msgEventFailed    = "Fehler: Termin"
	msgTemplateFailed = "Fehler beim Anzeigen"
)

// savedMessages are the success toasts per entity kind.
var savedMessages = map[services.Kind]string{
	services.KindIncome:   "Einnahme gespeichert",
	services.KindExpense:  "Ausgabe gespeichert",
	services.KindProject:  "Projekt gespeichert",
	services.KindClient:   "Kunde gespeichert",
	services.KindDocument: "Dokument gespeichert",
}

// Accepted calendar time layouts: RFC 3339 from the calendar widget,
// datetime-local inputs from the modal and bare dates from all-day clicks.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseTime reads a calendar timestamp. Times without zone are taken as UTC.
func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// isDateOnly reports whether s carries no time of day.
func isDateOnly(s string) bool {
	return len(strings.TrimSpace(s)) == len("2006-01-02")
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// renderBuffer executes a template into memory so that a failure never
// leaves a half-written response.
func (s *Server) renderBuffer(name string, data any) (string, error) {
	if s.templates == nil {
		return "", errTemplatesNotLoaded
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
