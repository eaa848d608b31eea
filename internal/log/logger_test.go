package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return New(Config{
		Component: "test",
		Handler:   slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLogRecordCreated(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf))

	sl.LogRecordCreated(context.Background(), "incomes", "42", "1250.00")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid log line %q: %v", buf.String(), err)
	}
	if entry[FieldEntity] != "incomes" || entry[FieldRecordID] != "42" {
		t.Fatalf("unexpected record fields: %v", entry)
	}
	if entry[FieldAmountCHF] != "1250.00" {
		t.Fatalf("amount = %v", entry[FieldAmountCHF])
	}
	if entry[FieldOperation] != OpCreate {
		t.Fatalf("operation = %v", entry[FieldOperation])
	}
}

func TestComponentAttributeWrittenOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf).With("instance", "a").WithComponent(ComponentLedger)
	logger.WithComponent(ComponentLedger).Info("reloaded")

	if n := bytes.Count(buf.Bytes(), []byte(`"component"`)); n != 1 {
		t.Fatalf("component attribute written %d times: %s", n, buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"component":"ledger"`)) || !bytes.Contains(buf.Bytes(), []byte(`"instance":"a"`)) {
		t.Fatalf("unexpected line %s", buf.String())
	}
}

func TestToSliceIsSorted(t *testing.T) {
	got := NewFields().WithRecord("incomes", "7").WithOperation(OpDelete).ToSlice()
	want := []any{FieldEntity, "incomes", FieldOperation, OpDelete, FieldRecordID, "7"}
	if len(got) != len(want) {
		t.Fatalf("ToSlice() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ToSlice() = %v, want %v", got, want)
		}
	}
}

func TestFromContext(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Fatalf("expected fallback logger, got %+v", l)
	}

	fallback := Discard()
	if l := FromContextOr(context.Background(), fallback); l != fallback {
		t.Fatalf("FromContextOr ignored the fallback")
	}

	logger := newBufferLogger(&bytes.Buffer{}).WithComponent(ComponentHTTP)
	ctx := NewContext(context.Background(), logger)
	if seen := FromContext(ctx); seen != logger {
		t.Fatalf("logger not propagated: %+v", seen)
	}
}
