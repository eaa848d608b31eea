// Command oauth-init runs the OAuth consent flow once and stores the token
// the journal worker uses when no service account is configured.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"buchhaltung/internal/cli"
	"buchhaltung/internal/config"
	"buchhaltung/internal/log"
)

const consentTimeout = 5 * time.Minute

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("oauth-init")
	cfg := config.Load()

	oauthCfg, err := clientConfig(cfg)
	if err != nil {
		logger.Error("Invalid OAuth client", log.FieldError, err)
		os.Exit(1)
	}

	redirectPort := os.Getenv("OAUTH_REDIRECT_PORT")
	if redirectPort == "" {
		redirectPort = "8085"
	}
	// The OAuth client must list this URI as an authorized redirect.
	oauthCfg.RedirectURL = "http://localhost:" + redirectPort + "/callback"

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	code, err := awaitCode(ctx, ":"+redirectPort, oauthCfg)
	if err != nil {
		logger.Error("Authorization failed", log.FieldError, err)
		os.Exit(1)
	}

	tok, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		logger.Error("Token exchange failed", log.FieldError, err)
		os.Exit(1)
	}

	out := cfg.GoogleOAuthTokenFile
	if out == "" {
		out = "token.json"
	}
	if err := saveToken(out, tok); err != nil {
		logger.Error("Failed to save token", log.FieldError, err, "file", out)
		os.Exit(1)
	}
	logger.Info("Saved OAuth token", "file", out)

	if cfg.GoogleSpreadsheetID == "" {
		return
	}
	title, err := spreadsheetTitle(ctx, oauthCfg, tok, cfg.GoogleSpreadsheetID)
	if err != nil {
		logger.Warn("Token saved but spreadsheet is not readable", log.FieldError, err,
			"spreadsheet", cfg.GoogleSpreadsheetID)
		return
	}
	logger.Info("Spreadsheet reachable", "spreadsheet", cfg.GoogleSpreadsheetID, "title", title)
}

// clientConfig reads the OAuth client from GOOGLE_OAUTH_CLIENT_JSON or the
// configured client file.
func clientConfig(cfg *config.Config) (*oauth2.Config, error) {
	var raw []byte
	switch {
	case os.Getenv("GOOGLE_OAUTH_CLIENT_JSON") != "":
		raw = []byte(os.Getenv("GOOGLE_OAUTH_CLIENT_JSON"))
	case cfg.GoogleOAuthClientFile != "":
		b, err := os.ReadFile(cfg.GoogleOAuthClientFile)
		if err != nil {
			return nil, fmt.Errorf("read client file: %w", err)
		}
		raw = b
	default:
		return nil, errors.New("set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")
	}
	return google.ConfigFromJSON(raw, sheets.SpreadsheetsScope)
}

// awaitCode serves the redirect endpoint until the consent screen calls back.
func awaitCode(ctx context.Context, addr string, oauthCfg *oauth2.Config) (string, error) {
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		if msg := r.URL.Query().Get("error"); msg != "" {
			http.Error(w, "OAuth error: "+msg, http.StatusBadRequest)
			errCh <- fmt.Errorf("consent denied: %s", msg)
			return
		}
		fmt.Fprintln(w, "You may close this window and return to the terminal.")
		codeCh <- r.URL.Query().Get("code")
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("Open this URL to authorize:\n%s\n", oauthCfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline))

	select {
	case code := <-codeCh:
		return code, nil
	case err := <-errCh:
		return "", err
	case <-time.After(consentTimeout):
		return "", errors.New("authorization timed out")
	case <-ctx.Done():
		return "", errors.New("interrupted")
	}
}

func saveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func spreadsheetTitle(ctx context.Context, oauthCfg *oauth2.Config, tok *oauth2.Token, id string) (string, error) {
	srv, err := sheets.NewService(ctx, option.WithTokenSource(oauthCfg.TokenSource(ctx, tok)))
	if err != nil {
		return "", err
	}
	ss, err := srv.Spreadsheets.Get(id).Fields("properties.title").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return ss.Properties.Title, nil
}
