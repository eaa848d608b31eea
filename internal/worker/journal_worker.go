package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"buchhaltung/internal/amqp"
	"buchhaltung/internal/catalog"
	"buchhaltung/internal/core"
	"buchhaltung/internal/log"
	"buchhaltung/internal/sheets"
)

// BindingKeys are the routing keys the journal queue subscribes to.
var BindingKeys = []string{"incomes.*", "expenses.*", "clients.*", "projects.*"}

// JournalWorker appends income and expense changes to the journal sheet.
// Client and project changes only refresh the names used in new rows.
type JournalWorker struct {
	journal sheets.Journal
	catalog *catalog.Cache
	logger  *log.Logger
	now     func() time.Time

	mu   sync.Mutex
	seen map[string]struct{}
}

func NewJournalWorker(journal sheets.Journal, c *catalog.Cache, logger *log.Logger) *JournalWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &JournalWorker{
		journal: journal,
		catalog: c,
		logger:  logger.WithComponent(log.ComponentWorker),
		now:     time.Now,
		seen:    make(map[string]struct{}),
	}
}

// StartupCheck loads the catalog and the ids of events already journaled so
// redelivered messages are not written twice.
func (w *JournalWorker) StartupCheck(ctx context.Context) error {
	w.catalog.Reload(ctx)

	entries, err := w.journal.Entries(ctx)
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	w.mu.Lock()
	for _, e := range entries {
		w.seen[e.EventID] = struct{}{}
	}
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "Journal startup check completed",
		"entries", len(entries),
		log.FieldOperation, log.OpStartup)
	return nil
}

// HandleChange processes one change event. A returned error asks the
// consumer to redeliver the message.
func (w *JournalWorker) HandleChange(ctx context.Context, ev *amqp.ChangeEvent) error {
	switch ev.Entity {
	case "clients", "projects":
		w.catalog.Reload(ctx)
		return nil
	case "incomes", "expenses":
	default:
		return nil
	}
	if ev.Action == amqp.ActionUpdated {
		return nil
	}
	if w.recorded(ev.ID) {
		w.logger.DebugContext(ctx, "Skipping journaled event", "event", ev.ID)
		return nil
	}

	entry, err := w.entryFor(ev)
	if err != nil {
		// A record that cannot be decoded will never succeed; journal the
		// marker instead of redelivering forever.
		w.logger.WarnContext(ctx, "Undecodable change record",
			log.FieldEntity, ev.Entity,
			log.FieldRecordID, ev.RecordID,
			log.FieldError, err)
		entry = w.marker(ev)
	}

	ref, err := w.journal.Append(ctx, entry)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to append journal row",
			log.FieldEntity, ev.Entity,
			log.FieldRecordID, ev.RecordID,
			log.FieldOperation, log.OpAppend,
			log.FieldError, err)
		return fmt.Errorf("append journal row: %w", err)
	}

	w.mu.Lock()
	w.seen[ev.ID] = struct{}{}
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "Journal row appended",
		log.FieldEntity, ev.Entity,
		log.FieldRecordID, ev.RecordID,
		"action", string(ev.Action),
		log.FieldSheetsRef, ref)
	return nil
}

func (w *JournalWorker) recorded(eventID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.seen[eventID]
	return ok
}

func (w *JournalWorker) marker(ev *amqp.ChangeEvent) sheets.JournalEntry {
	recorded := ev.Timestamp
	if recorded.IsZero() {
		recorded = w.now()
	}
	return sheets.JournalEntry{
		EventID:    ev.ID,
		RecordedAt: recorded,
		Entity:     ev.Entity,
		Action:     string(ev.Action),
		RecordID:   ev.RecordID,
	}
}

func (w *JournalWorker) entryFor(ev *amqp.ChangeEvent) (sheets.JournalEntry, error) {
	e := w.marker(ev)
	if ev.Action != amqp.ActionCreated || len(ev.Record) == 0 {
		return e, nil
	}

	snap := w.catalog.Snapshot()
	switch ev.Entity {
	case "incomes":
		var in core.Income
		if err := ev.DecodeRecord(&in); err != nil {
			return e, err
		}
		e.Date = in.TxDate.String()
		e.Party = snap.ClientName(in.ClientID)
		e.Category = snap.IncomeCategoryName(in.CategoryID)
		e.Project = snap.ProjectName(in.ProjectID)
		e.Amount = amountPtr(in.AmountCHF)
		e.Description = deref(in.Description)
	case "expenses":
		var ex core.Expense
		if err := ev.DecodeRecord(&ex); err != nil {
			return e, err
		}
		e.Date = ex.TxDate.String()
		e.Party = deref(ex.Vendor)
		e.Category = snap.ExpenseCategoryName(ex.CategoryID)
		e.Project = snap.ProjectName(ex.ProjectID)
		e.Amount = amountPtr(ex.AmountCHF.Neg())
		e.Description = deref(ex.Description)
	}
	return e, nil
}

func amountPtr(d decimal.Decimal) *decimal.Decimal { return &d }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
