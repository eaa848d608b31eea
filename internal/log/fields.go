package log

import (
	"maps"
	"slices"
)

// Attribute keys shared by every package.
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldDurationHuman = "duration_human"
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldErrorType     = "error_type"
	FieldOperation     = "operation"
	FieldTable         = "table"
	FieldEntity        = "entity"
	FieldRecordID      = "record_id"
	FieldAmountCHF     = "amount_chf"
	FieldDocumentID    = "document_id"
	FieldItems         = "items"
	FieldView          = "view"
	FieldEventID       = "event_id"
	FieldSheetsRef     = "sheets_ref"
)

const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentLedger   = "ledger"
	ComponentCatalog  = "catalog"
	ComponentCalendar = "calendar"
	ComponentStorage  = "storage"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
	ComponentSheets   = "sheets"
	ComponentSecurity = "security"
	ComponentTrace    = "trace"
	ComponentBackend  = "backend"
)

const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpReload   = "reload"
	OpAppend   = "append"
	OpPublish  = "publish"
	OpParse    = "parse"
	OpRender   = "render"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// Values for FieldErrorType.
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
)

// LogFields collects attributes before they are handed to slog.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithRecord adds the entity and, when known, the record id.
func (f LogFields) WithRecord(entity, id string) LogFields {
	f[FieldEntity] = entity
	if id != "" {
		f[FieldRecordID] = id
	}
	return f
}

// WithAmount adds a CHF amount already formatted as a decimal string.
func (f LogFields) WithAmount(amount string) LogFields {
	f[FieldAmountCHF] = amount
	return f
}

// ToSlice flattens f into key/value pairs ordered by key.
func (f LogFields) ToSlice() []any {
	out := make([]any, 0, len(f)*2)
	for _, k := range slices.Sorted(maps.Keys(f)) {
		out = append(out, k, f[k])
	}
	return out
}
