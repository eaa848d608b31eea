package log

import (
	"context"
	"log/slog"
)

type contextKey struct{}

// NewContext returns ctx carrying l. Request-scoped loggers travel this way
// from the trace middleware to the handlers.
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the logger stored by NewContext, or one wrapping the
// slog default.
func FromContext(ctx context.Context) *Logger {
	return FromContextOr(ctx, newLogger(slog.Default(), "unknown"))
}

// FromContextOr is FromContext with an explicit fallback.
func FromContextOr(ctx context.Context, fallback *Logger) *Logger {
	if l, ok := ctx.Value(contextKey{}).(*Logger); ok && l != nil {
		return l
	}
	return fallback
}

// StructuredLogger writes the audit lines for successful ledger writes.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogRecordCreated logs an insert. amount is omitted when empty.
func (sl *StructuredLogger) LogRecordCreated(ctx context.Context, entity, id, amount string) {
	fields := NewFields().WithRecord(entity, id).WithOperation(OpCreate)
	if amount != "" {
		fields = fields.WithAmount(amount)
	}
	sl.logger.InfoContext(ctx, "Record created", fields.ToSlice()...)
}

func (sl *StructuredLogger) LogRecordDeleted(ctx context.Context, entity, id string) {
	fields := NewFields().WithRecord(entity, id).WithOperation(OpDelete)
	sl.logger.InfoContext(ctx, "Record deleted", fields.ToSlice()...)
}
