package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"buchhaltung/internal/core"
)

// State of an event edit dialog.
type State int

const (
	Idle State = iota
	Editing
	ConfirmingDelete
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Editing:
		return "editing"
	case ConfirmingDelete:
		return "confirming-delete"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var ErrInvalidTransition = errors.New("invalid editor transition")

// Editor drives the rename/delete dialog of one event:
//
//	Idle --Open--> Editing --Save--> Idle
//	Editing --RequestDelete--> ConfirmingDelete --ConfirmDelete--> Idle
//	ConfirmingDelete --Cancel--> Editing --Cancel--> Idle
//	Editing, ConfirmingDelete --Close--> Idle
//
// A failed write leaves the state unchanged so the user can retry.
type Editor struct {
	mu    sync.Mutex
	board *Board
	id    core.ID
	state State
	event core.Event
}

// Editor returns the dialog for id, creating an idle one if none is open.
func (b *Board) Editor(id core.ID) *Editor {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ed, ok := b.editors[id]; ok {
		return ed
	}
	ed := &Editor{board: b, id: id}
	b.editors[id] = ed
	return ed
}

// OpenEditor starts a fresh dialog for id. A dialog already open for the
// same event is closed first, so its snapshot and state are discarded.
func (b *Board) OpenEditor(id core.ID) (*Editor, error) {
	ed := &Editor{board: b, id: id}
	b.mu.Lock()
	prev := b.editors[id]
	b.editors[id] = ed
	b.mu.Unlock()

	if prev != nil {
		prev.discard()
	}
	if err := ed.Open(); err != nil {
		return nil, err
	}
	return ed, nil
}

// ActiveEditor returns the dialog for id only if one is open.
func (b *Board) ActiveEditor(id core.ID) (*Editor, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ed, ok := b.editors[id]
	return ed, ok
}

// OpenEditors returns how many dialogs are not idle.
func (b *Board) OpenEditors() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.editors)
}

// release forgets ed unless a newer dialog has replaced it.
func (b *Board) release(ed *Editor) {
	b.mu.Lock()
	if b.editors[ed.id] == ed {
		delete(b.editors, ed.id)
	}
	b.mu.Unlock()
}

func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Event is the event as it was when the dialog was opened.
func (e *Editor) Event() core.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.event
}

func (e *Editor) Open() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Idle {
		return e.invalid("open")
	}
	ev, ok := e.board.Get(e.id)
	if !ok {
		e.board.release(e)
		return fmt.Errorf("%w: %s", ErrEventNotFound, e.id)
	}
	e.event = ev
	e.state = Editing
	return nil
}

// Save renames the event. An unchanged title closes the dialog without a
// store request; changed reports whether a write happened.
func (e *Editor) Save(ctx context.Context, title string) (changed bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Editing {
		return false, e.invalid("save")
	}
	ev, changed, err := e.board.Rename(ctx, e.id, title)
	if err != nil {
		return false, err
	}
	e.event = ev
	e.idle()
	return changed, nil
}

func (e *Editor) RequestDelete() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Editing {
		return e.invalid("request delete")
	}
	e.state = ConfirmingDelete
	return nil
}

func (e *Editor) ConfirmDelete(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != ConfirmingDelete {
		return e.invalid("confirm delete")
	}
	if err := e.board.Remove(ctx, e.id); err != nil {
		return err
	}
	e.idle()
	return nil
}

// Cancel steps back one state.
func (e *Editor) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case ConfirmingDelete:
		e.state = Editing
	case Editing:
		e.idle()
	default:
		return e.invalid("cancel")
	}
	return nil
}

// Close dismisses the dialog from any open state.
func (e *Editor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Idle {
		return e.invalid("close")
	}
	e.idle()
	return nil
}

func (e *Editor) discard() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Idle {
		e.idle()
	}
}

func (e *Editor) idle() {
	e.state = Idle
	e.board.release(e)
}

func (e *Editor) invalid(action string) error {
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, action, e.state)
}
