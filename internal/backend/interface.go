package backend

import (
	"context"

	"buchhaltung/internal/sheets"
	"buchhaltung/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// StoreResult contains the store instance and optional cleanup function
type StoreResult struct {
	Store   store.Store
	Type    Type
	Cleanup CleanupFunc
}

// JournalResult contains the journal the worker appends to.
type JournalResult struct {
	Journal sheets.Journal
	// Remote is false when entries only live in memory.
	Remote bool
}

// Factory creates backends based on configuration
type Factory interface {
	OpenStore(ctx context.Context, config Config) (*StoreResult, error)
	OpenJournal(ctx context.Context, config Config) (*JournalResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type Type

	// PostgREST specific
	SupabaseURL     string
	SupabaseAnonKey string
	SupabaseSchema  string

	// SQLite specific
	SQLiteDBPath string

	// Google Sheets journal
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
	GoogleOAuthClientFile    string
	GoogleOAuthTokenFile     string
}

// Type represents the kind of store
type Type string

const (
	PostgRESTBackend Type = "postgrest"
	SQLiteBackend    Type = "sqlite"
	MemoryBackend    Type = "memory"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is valid
func (t Type) IsValid() bool {
	switch t {
	case PostgRESTBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
