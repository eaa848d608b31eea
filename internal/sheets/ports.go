package sheets

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// JournalHeader is the first row of the journal sheet.
var JournalHeader = []string{
	"Event", "Recorded", "Entity", "Action", "Record",
	"Date", "Party", "Category", "Project", "Amount CHF", "Description",
}

// JournalEntry is one append-only journal row. Deletions are recorded as
// marker rows without amount.
type JournalEntry struct {
	EventID     string
	RecordedAt  time.Time
	Entity      string
	Action      string
	RecordID    string
	Date        string
	Party       string
	Category    string
	Project     string
	Amount      *decimal.Decimal
	Description string
}

// Ports for outbound adapters.
type (
	JournalWriter interface {
		Append(ctx context.Context, e JournalEntry) (rowRef string, err error)
	}

	// JournalReader lists the rows already written, oldest first.
	JournalReader interface {
		Entries(ctx context.Context) ([]JournalEntry, error)
	}

	Journal interface {
		JournalWriter
		JournalReader
	}
)
