package services

import (
	"errors"
	"fmt"

	"buchhaltung/internal/core"
)

var ErrUnknownCategory = errors.New("unknown category")

// ItemsError reports that a document header was stored but its line items
// were not. The header is left in place.
type ItemsError struct {
	DocumentID core.ID
	Err        error
}

func (e *ItemsError) Error() string {
	return fmt.Sprintf("insert items of document %s: %v", e.DocumentID, e.Err)
}

func (e *ItemsError) Unwrap() error { return e.Err }

// IsValidation reports whether err stems from rejected form input rather
// than from the store.
func IsValidation(err error) bool {
	for _, target := range []error{
		core.ErrEmptyName,
		core.ErrMissingClient,
		core.ErrMissingCategory,
		core.ErrInvalidDocType,
		core.ErrEmptyTitle,
		core.ErrInvalidDateRange,
		ErrUnknownCategory,
		ErrUnknownKind,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
