package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ports "buchhaltung/internal/sheets"
)

var _ ports.Journal = (*Journal)(nil)

// Journal keeps entries in memory for tests and local runs without Google.
type Journal struct {
	mu      sync.Mutex
	entries []ports.JournalEntry
	failErr error
}

func New(seed ...ports.JournalEntry) *Journal {
	return &Journal{entries: append([]ports.JournalEntry(nil), seed...)}
}

// FailWith makes every following Append return err until called with nil.
func (j *Journal) FailWith(err error) {
	j.mu.Lock()
	j.failErr = err
	j.mu.Unlock()
}

// Append stores the entry and returns a synthetic row reference.
func (j *Journal) Append(_ context.Context, e ports.JournalEntry) (string, error) {
	if e.EventID == "" {
		return "", errors.New("journal entry without event id")
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.failErr != nil {
		return "", j.failErr
	}
	j.entries = append(j.entries, e)
	return fmt.Sprintf("mem:%d", len(j.entries)+1), nil
}

func (j *Journal) Entries(_ context.Context) ([]ports.JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]ports.JournalEntry(nil), j.entries...), nil
}
