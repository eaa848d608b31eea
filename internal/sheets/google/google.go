package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"buchhaltung/internal/log"
	ports "buchhaltung/internal/sheets"
)

const columns = "A:K"

var _ ports.Journal = (*Client)(nil)

// Config selects the spreadsheet and the credentials. A service account
// takes precedence over an OAuth client plus stored token.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
	OAuthClientFile    string
	OAuthTokenFile     string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	logger        *log.Logger
}

// New creates a journal client for cfg.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	opt, err := credentialsOption(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName, logger), nil
}

// NewWithService wraps an existing service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheet string, logger *log.Logger) *Client {
	if sheet == "" {
		sheet = "Journal"
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheet: sheet, logger: logger}
}

func credentialsOption(ctx context.Context, cfg Config, logger *log.Logger) (goption.ClientOption, error) {
	saJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	saFile := strings.TrimSpace(cfg.ServiceAccountFile)
	if saJSON == "" && saFile == "" {
		saFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case saJSON != "":
		logger.InfoContext(ctx, "Using inline service account credentials")
		return goption.WithCredentialsJSON([]byte(saJSON)), nil
	case saFile != "":
		b, err := os.ReadFile(saFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		logger.InfoContext(ctx, "Using service account credentials file", "path", saFile)
		return goption.WithCredentialsJSON(b), nil
	case cfg.OAuthClientFile != "":
		ts, err := oauthTokenSource(ctx, cfg.OAuthClientFile, cfg.OAuthTokenFile)
		if err != nil {
			return nil, err
		}
		logger.InfoContext(ctx, "Using OAuth token", "path", cfg.OAuthTokenFile)
		return goption.WithTokenSource(ts), nil
	}
	return nil, errors.New("missing credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_OAUTH_CLIENT_FILE)")
}

func oauthTokenSource(ctx context.Context, clientFile, tokenFile string) (oauth2.TokenSource, error) {
	b, err := os.ReadFile(clientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client: %w", err)
	}
	conf, err := googleoauth.ConfigFromJSON(b, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	if tokenFile == "" {
		return nil, errors.New("missing oauth token (set GOOGLE_OAUTH_TOKEN_FILE, see cmd/oauth-init)")
	}
	tb, err := os.ReadFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tb, &tok); err != nil {
		return nil, fmt.Errorf("decode oauth token: %w", err)
	}
	// Token refreshes go through the pooled client.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	return conf.TokenSource(ctx, &tok), nil
}

// newHTTPClientWithPooling creates an HTTP client for Google APIs with
// connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// EnsureHeader writes the header row when the first row is missing or
// does not start with it.
func (c *Client) EnsureHeader(ctx context.Context) error {
	rng := fmt.Sprintf("%s!A1:K1", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 &&
		strings.EqualFold(strings.TrimSpace(fmt.Sprint(resp.Values[0][0])), ports.JournalHeader[0]) {
		return nil
	}

	header := make([]any, len(ports.JournalHeader))
	for i, h := range ports.JournalHeader {
		header[i] = h
	}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{header}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header %s: %w", rng, err)
	}
	c.logger.InfoContext(ctx, "Journal header written", "sheet", c.sheet)
	return nil
}

// Append adds one row after the last non-empty row and returns its range.
func (c *Client) Append(ctx context.Context, e ports.JournalEntry) (string, error) {
	if e.EventID == "" {
		return "", errors.New("journal entry without event id")
	}
	rng := fmt.Sprintf("%s!%s", c.sheet, columns)
	vr := &gsheet.ValueRange{Values: [][]any{toRow(e)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", c.sheet, err)
	}
	if resp.Updates == nil {
		return rng, nil
	}
	return resp.Updates.UpdatedRange, nil
}

// Entries reads the whole journal.
func (c *Client) Entries(ctx context.Context) ([]ports.JournalEntry, error) {
	rng := fmt.Sprintf("%s!%s", c.sheet, columns)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseJournal(resp.Values)
}

func toRow(e ports.JournalEntry) []any {
	var amount any = ""
	if e.Amount != nil {
		amount = e.Amount.Round(2).InexactFloat64()
	}
	return []any{
		e.EventID,
		e.RecordedAt.UTC().Format(time.RFC3339),
		e.Entity,
		e.Action,
		e.RecordID,
		e.Date,
		e.Party,
		e.Category,
		e.Project,
		amount,
		e.Description,
	}
}
