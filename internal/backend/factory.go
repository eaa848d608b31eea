package backend

import (
	"context"
	"fmt"

	"buchhaltung/internal/log"
	gsheet "buchhaltung/internal/sheets/google"
	sheetsmem "buchhaltung/internal/sheets/memory"
	"buchhaltung/internal/store/memory"
	"buchhaltung/internal/store/postgrest"
	"buchhaltung/internal/store/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// OpenStore implements Factory.OpenStore
func (f *DefaultFactory) OpenStore(ctx context.Context, config Config) (*StoreResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case PostgRESTBackend:
		opts := []postgrest.Option{postgrest.WithLogger(f.logger)}
		if config.SupabaseSchema != "" {
			opts = append(opts, postgrest.WithSchema(config.SupabaseSchema))
		}
		client, err := postgrest.New(config.SupabaseURL, config.SupabaseAnonKey, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgREST client: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized PostgREST backend", "url", config.SupabaseURL)
		return &StoreResult{Store: client, Type: config.Type}, nil

	case SQLiteBackend:
		s, err := sqlite.Open(config.SQLiteDBPath, sqlite.WithLogger(f.logger))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return &StoreResult{Store: s, Type: config.Type, Cleanup: s.Close}, nil

	default:
		f.logger.InfoContext(ctx, "Initialized memory backend")
		return &StoreResult{Store: memory.NewWithDefaults(), Type: MemoryBackend}, nil
	}
}

// OpenJournal implements Factory.OpenJournal. Without a spreadsheet id the
// journal is kept in memory and lost on exit.
func (f *DefaultFactory) OpenJournal(ctx context.Context, config Config) (*JournalResult, error) {
	if config.GoogleSpreadsheetID == "" {
		f.logger.WarnContext(ctx, "No GOOGLE_SPREADSHEET_ID configured, journal kept in memory")
		return &JournalResult{Journal: sheetsmem.New()}, nil
	}

	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      config.GoogleSpreadsheetID,
		SheetName:          config.GoogleSheetName,
		ServiceAccountJSON: config.GoogleServiceAccountJSON,
		ServiceAccountFile: config.GoogleServiceAccountFile,
		OAuthClientFile:    config.GoogleOAuthClientFile,
		OAuthTokenFile:     config.GoogleOAuthTokenFile,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	if err := client.EnsureHeader(ctx); err != nil {
		return nil, fmt.Errorf("prepare journal sheet: %w", err)
	}
	f.logger.InfoContext(ctx, "Initialized Google Sheets journal",
		"spreadsheet", config.GoogleSpreadsheetID,
		"sheet", config.GoogleSheetName)
	return &JournalResult{Journal: client, Remote: true}, nil
}
