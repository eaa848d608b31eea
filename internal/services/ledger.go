package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"buchhaltung/internal/amqp"
	"buchhaltung/internal/catalog"
	"buchhaltung/internal/core"
	"buchhaltung/internal/log"
	"buchhaltung/internal/store"
)

// Kind names a ledger collection. The value is the store table name.
type Kind string

const (
	KindIncome   Kind = "incomes"
	KindExpense  Kind = "expenses"
	KindProject  Kind = "projects"
	KindClient   Kind = "clients"
	KindDocument Kind = "documents"
	KindEvent    Kind = "events"
)

var ErrUnknownKind = errors.New("unknown entity kind")

// ParseKind maps a URL segment to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindIncome, KindExpense, KindProject, KindClient, KindDocument, KindEvent:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) Table() store.Table { return store.Table(k) }

// affectsCatalog reports whether a mutation of k can change reference lists.
func (k Kind) affectsCatalog() bool {
	return k == KindClient || k == KindProject
}

// ChangePublisher receives an event after every successful mutation.
type ChangePublisher interface {
	Publish(ctx context.Context, ev *amqp.ChangeEvent) error
}

// Ledger loads and mutates bookkeeping records. It resolves display names
// through the catalog and reloads the catalog after mutations that affect it.
type Ledger struct {
	store     store.Store
	catalog   *catalog.Cache
	publisher ChangePublisher
	origin    string
	logger    *log.Logger
	inflight  singleflight.Group
	now       func() time.Time

	// joined is called once a submission is registered with inflight.
	joined func(Kind)
}

type Option func(*Ledger)

// WithPublisher announces mutations on p, tagged with origin so that the
// instance can ignore its own events.
func WithPublisher(p ChangePublisher, origin string) Option {
	return func(l *Ledger) {
		l.publisher = p
		l.origin = origin
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithClock overrides time.Now for default dates and the dashboard.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(s store.Store, c *catalog.Cache, opts ...Option) *Ledger {
	l := &Ledger{
		store:   s,
		catalog: c,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = log.New(log.DefaultConfig())
	}
	l.logger = l.logger.WithComponent(log.ComponentLedger)
	return l
}

// Catalog returns the cache used for name resolution.
func (l *Ledger) Catalog() *catalog.Cache { return l.catalog }

// Delete hard-deletes one record by id. Client and project deletes reload
// the catalog before returning.
func (l *Ledger) Delete(ctx context.Context, kind Kind, id core.ID) error {
	if id.IsZero() {
		return store.ErrNoID
	}
	if err := l.store.Delete(ctx, kind.Table(), id); err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}

	log.NewStructuredLogger(l.logger).LogRecordDeleted(ctx, string(kind), id.String())
	l.afterMutation(ctx, kind, amqp.ActionDeleted, id, nil)
	return nil
}

// afterMutation reloads the catalog when needed and publishes the change.
// Neither step can fail the mutation that already succeeded.
func (l *Ledger) afterMutation(ctx context.Context, kind Kind, action amqp.Action, id core.ID, record any) {
	if kind.affectsCatalog() {
		l.catalog.Reload(ctx)
	}
	l.publish(ctx, kind, action, id, record)
}

func (l *Ledger) publish(ctx context.Context, kind Kind, action amqp.Action, id core.ID, record any) {
	if l.publisher == nil {
		return
	}
	ev, err := amqp.NewChangeEvent(string(kind), action, id.String(), l.origin, record)
	if err != nil {
		l.logger.ErrorContext(ctx, "Failed to build change event", log.FieldError, err)
		return
	}
	if err := l.publisher.Publish(ctx, ev); err != nil {
		l.logger.WarnContext(ctx, "Failed to publish change event",
			log.FieldError, err,
			log.FieldEntity, string(kind),
			log.FieldRecordID, id.String(),
			log.FieldOperation, log.OpPublish)
	}
}

// RemoteBindingKeys are the routing keys a server instance listens on to
// keep its catalog in step with other instances.
var RemoteBindingKeys = []string{"clients.*", "projects.*", "income_categories.*", "expense_categories.*"}

// ApplyRemoteChange reloads the catalog when another instance changed a
// client, project or category. Events this instance published are skipped.
func (l *Ledger) ApplyRemoteChange(ctx context.Context, ev *amqp.ChangeEvent) error {
	if ev.Origin != "" && ev.Origin == l.origin {
		return nil
	}
	switch ev.Entity {
	case string(KindClient), string(KindProject), string(store.IncomeCategories), string(store.ExpenseCategories):
	default:
		return nil
	}

	l.catalog.Reload(ctx)
	l.logger.InfoContext(ctx, "Catalog reloaded after remote change",
		log.FieldEntity, ev.Entity,
		log.FieldRecordID, ev.RecordID,
		"origin", ev.Origin,
		log.FieldOperation, log.OpReload)
	return nil
}
