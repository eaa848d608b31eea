package backend

import (
	"errors"
	"fmt"

	"buchhaltung/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	t := Type(appConfig.DataBackend)
	if !t.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type: t,

		SupabaseURL:     appConfig.SupabaseURL,
		SupabaseAnonKey: appConfig.SupabaseAnonKey,
		SupabaseSchema:  appConfig.SupabaseSchema,

		SQLiteDBPath: appConfig.SQLiteDBPath,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GoogleSheetName,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleOAuthClientFile:    appConfig.GoogleOAuthClientFile,
		GoogleOAuthTokenFile:     appConfig.GoogleOAuthTokenFile,
	}, nil
}

// Validate validates the store part of the configuration
func (c Config) Validate() error {
	switch c.Type {
	case PostgRESTBackend:
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
			return errors.New("SUPABASE_URL and SUPABASE_ANON_KEY are required for the postgrest backend")
		}
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return errors.New("SQLite database path is required for sqlite backend")
		}
	case MemoryBackend:
	default:
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	return nil
}

// Types returns all valid backend types
func Types() []Type {
	return []Type{PostgRESTBackend, SQLiteBackend, MemoryBackend}
}
