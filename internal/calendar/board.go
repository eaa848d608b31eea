// Package calendar keeps the displayed calendar events as an explicit list
// and translates each gesture into exactly one store write. Moves and
// resizes are applied to the list first and rolled back when the store
// rejects them.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"buchhaltung/internal/amqp"
	"buchhaltung/internal/core"
	"buchhaltung/internal/log"
	"buchhaltung/internal/store"
)

const (
	eventsLimit     = 500
	defaultDuration = time.Hour
	entityEvents    = string(store.Events)
)

var ErrEventNotFound = errors.New("event not on board")

// Publisher receives an event after every successful write.
type Publisher interface {
	Publish(ctx context.Context, ev *amqp.ChangeEvent) error
}

// Board is the list of events currently shown, ordered by start.
type Board struct {
	store     store.Store
	logger    *log.Logger
	publisher Publisher
	origin    string

	mu      sync.Mutex
	events  []core.Event
	editors map[core.ID]*Editor
}

type Option func(*Board)

func WithLogger(l *log.Logger) Option {
	return func(b *Board) { b.logger = l }
}

func WithPublisher(p Publisher, origin string) Option {
	return func(b *Board) {
		b.publisher = p
		b.origin = origin
	}
}

func NewBoard(s store.Store, opts ...Option) *Board {
	b := &Board{
		store:   s,
		editors: make(map[core.ID]*Editor),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = log.New(log.DefaultConfig())
	}
	b.logger = b.logger.WithComponent(log.ComponentCalendar)
	return b
}

// eventTimes is the full-overwrite patch sent for moves and resizes.
// A nil end is written as null.
type eventTimes struct {
	StartAt time.Time  `json:"start_at"`
	EndAt   *time.Time `json:"end_at"`
}

type eventTitle struct {
	Title string `json:"title"`
}

// Load replaces the board with the first page of events. On failure the
// previous list is kept.
func (b *Board) Load(ctx context.Context) ([]core.Event, error) {
	evs, err := store.List[core.Event](ctx, b.store, store.Events, store.Query{
		Order: []store.Order{store.Asc("start_at")},
		Limit: eventsLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	if evs == nil {
		evs = []core.Event{}
	}

	b.mu.Lock()
	b.events = evs
	b.mu.Unlock()
	return b.Events(), nil
}

// Events returns a copy of the displayed list.
func (b *Board) Events() []core.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.events)
}

func (b *Board) Get(id core.ID) (core.Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.index(id)
	if i < 0 {
		return core.Event{}, false
	}
	return b.events[i], true
}

// CreateAt inserts a one-hour event starting at day. A blank title is a
// no-op and reports created=false.
func (b *Board) CreateAt(ctx context.Context, day time.Time, title string) (ev core.Event, created bool, err error) {
	end := day.UTC().Add(defaultDuration)
	return b.create(ctx, day, &end, title)
}

// CreateRange inserts an event spanning start to end. A nil end leaves the
// event open-ended.
func (b *Board) CreateRange(ctx context.Context, start time.Time, end *time.Time, title string) (core.Event, bool, error) {
	return b.create(ctx, start, end, title)
}

func (b *Board) create(ctx context.Context, start time.Time, end *time.Time, title string) (core.Event, bool, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return core.Event{}, false, nil
	}
	ev := core.Event{Title: title, StartAt: start.UTC()}
	if end != nil {
		e := end.UTC()
		ev.EndAt = &e
	}
	if err := ev.Validate(); err != nil {
		return core.Event{}, false, err
	}

	created, err := store.InsertOne[core.Event](ctx, b.store, store.Events, ev)
	if err != nil {
		return core.Event{}, false, fmt.Errorf("create event: %w", err)
	}

	b.mu.Lock()
	b.events = append(b.events, created)
	b.sort()
	b.mu.Unlock()

	b.publish(ctx, amqp.ActionCreated, created)
	return created, true, nil
}

// Move sets new start and end times. The board shows the new position
// while the update is in flight; if the store rejects it the original
// position is restored and returned together with the error.
func (b *Board) Move(ctx context.Context, id core.ID, start time.Time, end *time.Time) (core.Event, error) {
	moved := eventTimes{StartAt: start.UTC()}
	if end != nil {
		e := end.UTC()
		moved.EndAt = &e
	}
	if moved.EndAt != nil && moved.EndAt.Before(moved.StartAt) {
		return core.Event{}, core.ErrInvalidDateRange
	}

	original, ok := b.apply(id, func(ev *core.Event) {
		ev.StartAt = moved.StartAt
		ev.EndAt = moved.EndAt
	})
	if !ok {
		return core.Event{}, fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}

	if err := b.store.Update(ctx, store.Events, id, moved); err != nil {
		b.restore(original)
		b.logger.WarnContext(ctx, "Event update rejected, reverted",
			log.FieldEventID, id.String(),
			log.FieldError, err)
		return original, fmt.Errorf("update event %s: %w", id, err)
	}

	updated, _ := b.Get(id)
	b.publish(ctx, amqp.ActionUpdated, updated)
	return updated, nil
}

// Resize has the same contract as Move.
func (b *Board) Resize(ctx context.Context, id core.ID, start time.Time, end *time.Time) (core.Event, error) {
	return b.Move(ctx, id, start, end)
}

// Rename writes a new title. An unchanged title issues no request.
func (b *Board) Rename(ctx context.Context, id core.ID, title string) (core.Event, bool, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return core.Event{}, false, core.ErrEmptyTitle
	}
	current, ok := b.Get(id)
	if !ok {
		return core.Event{}, false, fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	if current.Title == title {
		return current, false, nil
	}

	if err := b.store.Update(ctx, store.Events, id, eventTitle{Title: title}); err != nil {
		return current, false, fmt.Errorf("rename event %s: %w", id, err)
	}
	b.apply(id, func(ev *core.Event) { ev.Title = title })
	updated := current
	updated.Title = title
	b.publish(ctx, amqp.ActionUpdated, updated)
	return updated, true, nil
}

// Remove deletes the event and drops it from the board.
func (b *Board) Remove(ctx context.Context, id core.ID) error {
	if err := b.store.Delete(ctx, store.Events, id); err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	b.mu.Lock()
	if i := b.index(id); i >= 0 {
		b.events = slices.Delete(b.events, i, i+1)
	}
	b.mu.Unlock()

	b.publish(ctx, amqp.ActionDeleted, core.Event{ID: id})
	return nil
}

// apply mutates the event in place and returns its previous value.
func (b *Board) apply(id core.ID, mutate func(*core.Event)) (core.Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.index(id)
	if i < 0 {
		return core.Event{}, false
	}
	original := b.events[i]
	mutate(&b.events[i])
	b.sort()
	return original, true
}

func (b *Board) restore(original core.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.index(original.ID); i >= 0 {
		b.events[i] = original
		b.sort()
	}
}

// index returns the position of id or -1. Callers hold b.mu.
func (b *Board) index(id core.ID) int {
	return slices.IndexFunc(b.events, func(ev core.Event) bool { return ev.ID == id })
}

func (b *Board) sort() {
	slices.SortStableFunc(b.events, func(x, y core.Event) int {
		return x.StartAt.Compare(y.StartAt)
	})
}

func (b *Board) publish(ctx context.Context, action amqp.Action, ev core.Event) {
	if b.publisher == nil {
		return
	}
	var record any
	if action != amqp.ActionDeleted {
		record = ev
	}
	msg, err := amqp.NewChangeEvent(entityEvents, action, ev.ID.String(), b.origin, record)
	if err != nil {
		return
	}
	if err := b.publisher.Publish(ctx, msg); err != nil {
		b.logger.WarnContext(ctx, "Failed to publish change event",
			log.FieldError, err,
			log.FieldEventID, ev.ID.String())
	}
}
