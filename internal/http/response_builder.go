package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// Page-level events the templates and app.js listen for.
const (
	triggerNotification     = "show-notification"
	triggerDashboardRefresh = "dashboard:refresh"
	triggerCalendarRefresh  = "calendar:refresh"
	triggerViewRefresh      = "view:refresh"
	triggerFormReset        = "form:reset"
)

// Toast durations in milliseconds.
const (
	successToastMs = 3000
	errorToastMs   = 5000
)

// notification is the show-notification payload rendered as a toast.
type notification struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Duration int    `json:"duration"`
}

// HTMXResponseBuilder collects status, body and HX-Trigger events for one
// response. htmx fires the triggers for error statuses as well, so a failed
// form post still shows its toast.
type HTMXResponseBuilder struct {
	triggers    map[string]any
	statusCode  int
	contentType string
	body        []byte
}

func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		triggers:   make(map[string]any),
		statusCode: http.StatusOK,
	}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.statusCode = code
	return b
}

func (b *HTMXResponseBuilder) trigger(name string, data any) *HTMXResponseBuilder {
	b.triggers[name] = data
	return b
}

// TriggerChanged tells the tables of kind to reload, e.g. "incomes:changed".
func (b *HTMXResponseBuilder) TriggerChanged(kind string) *HTMXResponseBuilder {
	return b.trigger(kind+":changed", struct{}{})
}

func (b *HTMXResponseBuilder) TriggerDashboardRefresh() *HTMXResponseBuilder {
	return b.trigger(triggerDashboardRefresh, struct{}{})
}

func (b *HTMXResponseBuilder) TriggerCalendarRefresh() *HTMXResponseBuilder {
	return b.trigger(triggerCalendarRefresh, struct{}{})
}

func (b *HTMXResponseBuilder) TriggerViewRefresh() *HTMXResponseBuilder {
	return b.trigger(triggerViewRefresh, struct{}{})
}

func (b *HTMXResponseBuilder) TriggerFormReset() *HTMXResponseBuilder {
	return b.trigger(triggerFormReset, struct{}{})
}

func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.trigger(triggerNotification, notification{Type: "success", Message: message, Duration: successToastMs})
}

func (b *HTMXResponseBuilder) TriggerErrorNotification(message string) *HTMXResponseBuilder {
	return b.trigger(triggerNotification, notification{Type: "error", Message: message, Duration: errorToastMs})
}

func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.contentType = "text/html; charset=utf-8"
	b.body = []byte(html)
	return b
}

// BodyJSON encodes v as the body. An unencodable value turns the response
// into a bare 500.
func (b *HTMXResponseBuilder) BodyJSON(v any) *HTMXResponseBuilder {
	data, err := json.Marshal(v)
	if err != nil {
		b.statusCode = http.StatusInternalServerError
		b.contentType, b.body = "", nil
		return b
	}
	b.contentType = "application/json"
	b.body = data
	return b
}

func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	if b.contentType != "" {
		w.Header().Set("Content-Type", b.contentType)
	}
	if len(b.triggers) > 0 {
		if raw, err := json.Marshal(b.triggers); err == nil {
			w.Header().Set("HX-Trigger", string(raw))
		}
	}

	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse is an escaped error fragment with the given status.
func ErrorResponse(statusCode int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(statusCode).
		BodyHTML(`<div class="error">` + template.HTMLEscapeString(message) + `</div>`)
}

func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnprocessableEntityError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// BadGatewayError reports a failed store request.
func BadGatewayError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadGateway, message)
}

func NotFoundError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}
