package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"buchhaltung/internal/core"
	"buchhaltung/internal/log"
	"buchhaltung/internal/store"
	"buchhaltung/internal/store/memory"
)

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr(t time.Time) *time.Time { return &t }

// newBoard seeds "Kickoff" (id 1, 10:00-11:00) and "Review" (id 2, open
// ended, next day) and loads them.
func newBoard(t *testing.T) (*Board, *memory.Store) {
	t.Helper()
	s := memory.New()
	if err := s.Seed(store.Events,
		core.Event{Title: "Kickoff", StartAt: at("2025-03-10T10:00:00Z"), EndAt: ptr(at("2025-03-10T11:00:00Z"))},
		core.Event{Title: "Review", StartAt: at("2025-03-11T09:00:00Z")},
	); err != nil {
		t.Fatalf("seed: %v", err)
	}
	b := NewBoard(s, WithLogger(log.Discard()))
	if _, err := b.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return b, s
}

func TestLoadOrdersByStart(t *testing.T) {
	b, _ := newBoard(t)
	evs := b.Events()
	if len(evs) != 2 || evs[0].Title != "Kickoff" || evs[1].Title != "Review" {
		t.Fatalf("unexpected order: %+v", evs)
	}
	if evs[1].EndAt != nil {
		t.Errorf("open-ended event got an end: %v", evs[1].EndAt)
	}
}

func TestLoadFailureKeepsBoard(t *testing.T) {
	b, s := newBoard(t)
	s.FailOn(store.OpSelect, store.Events, errors.New("offline"))

	if _, err := b.Load(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if len(b.Events()) != 2 {
		t.Fatalf("failed load must keep the previous events")
	}
}

func TestCreateAt(t *testing.T) {
	b, s := newBoard(t)
	ctx := context.Background()

	ev, created, err := b.CreateAt(ctx, at("2025-03-12T00:00:00Z"), "  Steuern ")
	if err != nil || !created {
		t.Fatalf("CreateAt: created=%v err=%v", created, err)
	}
	if ev.Title != "Steuern" || ev.EndAt == nil || ev.EndAt.Sub(ev.StartAt) != time.Hour {
		t.Fatalf("unexpected event %+v", ev)
	}
	if evs := b.Events(); len(evs) != 3 || evs[2].ID != ev.ID {
		t.Errorf("new event should be appended in start order: %+v", evs)
	}

	if _, created, err := b.CreateAt(ctx, at("2025-03-12T00:00:00Z"), "   "); created || err != nil {
		t.Errorf("blank title must be a no-op, created=%v err=%v", created, err)
	}
	if got := s.Calls(store.OpInsert, store.Events); got != 1 {
		t.Errorf("expected one insert, got %d", got)
	}
}

func TestCreateRange(t *testing.T) {
	b, _ := newBoard(t)
	ctx := context.Background()

	open, _, err := b.CreateRange(ctx, at("2025-03-01T00:00:00Z"), nil, "Ferien")
	if err != nil {
		t.Fatalf("CreateRange: %v", err)
	}
	if open.EndAt != nil {
		t.Errorf("range without end should be open-ended")
	}

	span, _, err := b.CreateRange(ctx, at("2025-03-03T00:00:00Z"), ptr(at("2025-03-08T00:00:00Z")), "Messe")
	if err != nil {
		t.Fatalf("CreateRange: %v", err)
	}
	if span.EndAt == nil || !span.EndAt.Equal(at("2025-03-08T00:00:00Z")) {
		t.Errorf("end = %v", span.EndAt)
	}
	if evs := b.Events(); evs[0].Title != "Ferien" || evs[1].Title != "Messe" {
		t.Errorf("board not ordered by start: %+v", evs)
	}

	if _, _, err := b.CreateRange(ctx, at("2025-03-08T00:00:00Z"), ptr(at("2025-03-03T00:00:00Z")), "Rückwärts"); !errors.Is(err, core.ErrInvalidDateRange) {
		t.Errorf("expected ErrInvalidDateRange, got %v", err)
	}
}

func TestMoveRejectedByStoreReverts(t *testing.T) {
	b, s := newBoard(t)
	original, _ := b.Get("2")
	s.FailOn(store.OpUpdate, store.Events, errors.New("row level security"))

	got, err := b.Move(context.Background(), "2", at("2025-03-09T08:00:00Z"), ptr(at("2025-03-09T09:00:00Z")))

	if err == nil {
		t.Fatalf("expected error")
	}
	if !got.StartAt.Equal(original.StartAt) || got.EndAt != nil {
		t.Errorf("returned event should be the original, got %+v", got)
	}
	shown, _ := b.Get("2")
	if !shown.StartAt.Equal(original.StartAt) || shown.EndAt != nil {
		t.Errorf("board should show the original position, got %+v", shown)
	}
	if evs := b.Events(); evs[0].Title != "Kickoff" {
		t.Errorf("order not restored: %+v", evs)
	}
}

func TestMoveAndResize(t *testing.T) {
	b, s := newBoard(t)
	ctx := context.Background()

	moved, err := b.Move(ctx, "2", at("2025-03-09T08:00:00Z"), nil)
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if !moved.StartAt.Equal(at("2025-03-09T08:00:00Z")) {
		t.Errorf("start = %v", moved.StartAt)
	}
	if evs := b.Events(); evs[0].ID != "2" {
		t.Errorf("moved event should now be first: %+v", evs)
	}

	resized, err := b.Resize(ctx, "1", at("2025-03-10T10:00:00Z"), ptr(at("2025-03-10T13:00:00Z")))
	if err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if resized.EndAt == nil || resized.EndAt.Hour() != 13 {
		t.Errorf("end = %v", resized.EndAt)
	}

	stored, err := store.List[core.Event](ctx, s, store.Events, store.Query{Order: []store.Order{store.Asc("start_at")}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if stored[0].ID != "2" || !stored[1].EndAt.Equal(at("2025-03-10T13:00:00Z")) {
		t.Errorf("store not updated: %+v", stored)
	}

	if _, err := b.Move(ctx, "42", at("2025-03-09T08:00:00Z"), nil); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("expected ErrEventNotFound, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	b, s := newBoard(t)
	if err := b.Remove(context.Background(), "1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := b.Get("1"); ok {
		t.Errorf("removed event still on board")
	}
	if s.Len(store.Events) != 1 {
		t.Errorf("store still has %d events", s.Len(store.Events))
	}
}
