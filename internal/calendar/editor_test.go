package calendar

import (
	"context"
	"errors"
	"testing"

	"buchhaltung/internal/store"
)

func TestEditorRename(t *testing.T) {
	b, s := newBoard(t)
	ctx := context.Background()
	ed := b.Editor("1")

	if err := ed.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if ed.State() != Editing || ed.Event().Title != "Kickoff" {
		t.Fatalf("state=%s event=%+v", ed.State(), ed.Event())
	}

	changed, err := ed.Save(ctx, "Kickoff")
	if err != nil || changed {
		t.Fatalf("unchanged title: changed=%v err=%v", changed, err)
	}
	if got := s.Calls(store.OpUpdate, store.Events); got != 0 {
		t.Fatalf("unchanged title must not write, got %d updates", got)
	}
	if ed.State() != Idle || b.OpenEditors() != 0 {
		t.Fatalf("editor should be idle and released")
	}

	ed = b.Editor("1")
	if err := ed.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	changed, err = ed.Save(ctx, "Projektstart")
	if err != nil || !changed {
		t.Fatalf("Save: changed=%v err=%v", changed, err)
	}
	if ev, _ := b.Get("1"); ev.Title != "Projektstart" {
		t.Errorf("board title = %q", ev.Title)
	}
}

func TestEditorSaveFailureStaysEditing(t *testing.T) {
	b, s := newBoard(t)
	s.FailOn(store.OpUpdate, store.Events, errors.New("denied"))
	ed := b.Editor("1")
	if err := ed.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := ed.Save(context.Background(), "Neu"); err == nil {
		t.Fatalf("expected error")
	}
	if ed.State() != Editing {
		t.Errorf("state = %s, want editing", ed.State())
	}
	if ev, _ := b.Get("1"); ev.Title != "Kickoff" {
		t.Errorf("title changed despite failure: %q", ev.Title)
	}
}

func TestEditorDeleteFlow(t *testing.T) {
	b, _ := newBoard(t)
	ctx := context.Background()
	ed := b.Editor("2")

	steps := []struct {
		name string
		do   func() error
		want State
	}{
		{"open", ed.Open, Editing},
		{"request delete", ed.RequestDelete, ConfirmingDelete},
		{"cancel back to editing", ed.Cancel, Editing},
		{"request delete again", ed.RequestDelete, ConfirmingDelete},
		{"confirm", func() error { return ed.ConfirmDelete(ctx) }, Idle},
	}
	for _, step := range steps {
		if err := step.do(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if ed.State() != step.want {
			t.Fatalf("%s: state = %s, want %s", step.name, ed.State(), step.want)
		}
	}
	if _, ok := b.Get("2"); ok {
		t.Errorf("deleted event still on board")
	}
}

func TestEditorInvalidTransitions(t *testing.T) {
	b, _ := newBoard(t)
	ctx := context.Background()
	ed := b.Editor("1")

	tests := []struct {
		name string
		do   func() error
	}{
		{"save while idle", func() error { _, err := ed.Save(ctx, "x"); return err }},
		{"request delete while idle", ed.RequestDelete},
		{"confirm while idle", func() error { return ed.ConfirmDelete(ctx) }},
		{"cancel while idle", ed.Cancel},
		{"close while idle", ed.Close},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.do(); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition, got %v", err)
			}
		})
	}

	if err := ed.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := ed.Open(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double open: %v", err)
	}
	if err := ed.ConfirmDelete(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("confirm without request: %v", err)
	}
	if err := ed.Close(); err != nil || ed.State() != Idle {
		t.Errorf("Close: %v, state %s", err, ed.State())
	}
}

func TestEditorUnknownEvent(t *testing.T) {
	b, _ := newBoard(t)
	if err := b.Editor("99").Open(); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
	if b.OpenEditors() != 0 {
		t.Errorf("failed open must not leave an editor behind")
	}
}

func TestActiveEditor(t *testing.T) {
	b, _ := newBoard(t)
	if _, ok := b.ActiveEditor("1"); ok {
		t.Fatalf("no dialog open yet")
	}
	ed := b.Editor("1")
	if err := ed.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, ok := b.ActiveEditor("1")
	if !ok || got != ed {
		t.Fatalf("ActiveEditor should return the open dialog")
	}
	if err := ed.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := b.ActiveEditor("1"); ok {
		t.Errorf("closed dialog must be released")
	}
}

func TestOpenEditorDiscardsStaleDialog(t *testing.T) {
	b, _ := newBoard(t)
	stale := b.Editor("1")
	if err := stale.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := stale.RequestDelete(); err != nil {
		t.Fatalf("RequestDelete: %v", err)
	}

	ed, err := b.OpenEditor("1")
	if err != nil {
		t.Fatalf("OpenEditor: %v", err)
	}
	if ed.State() != Editing || ed.Event().Title != "Kickoff" {
		t.Fatalf("fresh dialog state=%s event=%+v", ed.State(), ed.Event())
	}
	if stale.State() != Idle {
		t.Errorf("stale dialog state = %s, want idle", stale.State())
	}
	if got, ok := b.ActiveEditor("1"); !ok || got != ed {
		t.Fatalf("ActiveEditor should return the fresh dialog")
	}
	if err := stale.Close(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("closing a discarded dialog: %v", err)
	}
	if b.OpenEditors() != 1 {
		t.Errorf("open editors = %d, want 1", b.OpenEditors())
	}

	if _, err := b.OpenEditor("99"); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
	if _, ok := b.ActiveEditor("99"); ok {
		t.Errorf("failed open must not leave an editor behind")
	}
}
