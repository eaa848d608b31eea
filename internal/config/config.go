package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Backends understood by the store factory.
const (
	BackendPostgREST = "postgrest"
	BackendSQLite    = "sqlite"
	BackendMemory    = "memory"
)

type Config struct {
	// HTTP Server
	Port            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	RateLimitPerMin int

	// Logging
	LogLevel  string
	LogFormat string

	// Store
	DataBackend     string
	SupabaseURL     string
	SupabaseAnonKey string
	SupabaseSchema  string
	SQLiteDBPath    string

	// AMQP (optional; empty URL disables change events)
	AMQPURL      string
	AMQPExchange string
	JournalQueue string
	InstanceID   string

	// Google Sheets journal
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
	GoogleOAuthClientFile    string
	GoogleOAuthTokenFile     string
}

func Load() *Config {
	cfg := &Config{
		Port:            getEnv("PORT", "8081"),
		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 15*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		RateLimitPerMin: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DataBackend:     getEnv("DATA_BACKEND", BackendSQLite),
		SupabaseURL:     getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey: getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseSchema:  getEnv("SUPABASE_SCHEMA", ""),
		SQLiteDBPath:    getEnv("SQLITE_DB_PATH", "./data/buchhaltung.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "buchhaltung"),
		JournalQueue: getEnv("JOURNAL_QUEUE", "buchhaltung_journal"),
		InstanceID:   getEnv("INSTANCE_ID", hostname()),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Journal"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleOAuthClientFile:    getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthTokenFile:     getEnv("GOOGLE_OAUTH_TOKEN_FILE", ""),
	}

	return cfg
}

// Validate validates the server configuration and returns an error listing
// every problem found.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{BackendPostgREST, BackendSQLite, BackendMemory}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendPostgREST:
		if c.SupabaseURL == "" {
			errors = append(errors, "SUPABASE_URL is required when using postgrest backend")
		} else if u, err := url.Parse(c.SupabaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid SUPABASE_URL '%s': must be an http(s) URL", c.SupabaseURL))
		}
		if c.SupabaseAnonKey == "" {
			errors = append(errors, "SUPABASE_ANON_KEY is required when using postgrest backend")
		}
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	errors = append(errors, c.validateAMQP()...)

	if c.RequestTimeout < time.Second || c.RequestTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid request timeout %v: must be between 1s and 5m", c.RequestTimeout))
	}
	if c.RateLimitPerMin < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMin))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	return combine(errors)
}

// ValidateJournal checks what the journal worker needs: a broker, a queue
// and a spreadsheet with credentials.
func (c *Config) ValidateJournal() error {
	var errors []string

	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the journal worker")
	}
	errors = append(errors, c.validateAMQP()...)
	if c.JournalQueue == "" {
		errors = append(errors, "JOURNAL_QUEUE cannot be empty")
	}

	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "GOOGLE_SPREADSHEET_ID is required for the journal worker")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "GOOGLE_SHEET_NAME cannot be empty")
	}

	hasServiceAccount := c.GoogleServiceAccountFile != "" || c.GoogleServiceAccountJSON != ""
	hasOAuth := c.GoogleOAuthClientFile != "" && c.GoogleOAuthTokenFile != ""
	if !hasServiceAccount && !hasOAuth {
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE/JSON or GOOGLE_OAUTH_CLIENT_FILE and GOOGLE_OAUTH_TOKEN_FILE must be provided")
	}
	for _, f := range []string{c.GoogleServiceAccountFile, c.GoogleOAuthClientFile, c.GoogleOAuthTokenFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google credentials file does not exist: %s", f))
		}
	}

	return combine(errors)
}

// AMQPEnabled reports whether change events should be published.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

func (c *Config) validateAMQP() []string {
	if c.AMQPURL == "" {
		return nil
	}
	var errors []string
	if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
	} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
		errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
	}
	if c.AMQPExchange == "" {
		errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
	}
	return errors
}

func combine(errors []string) error {
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func hostname() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "buchhaltung"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
