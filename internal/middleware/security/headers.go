package security

import (
	"fmt"
	"net/http"
	"strings"
)

// CSP lists the Content-Security-Policy directives in output order. The
// page loads htmx from unpkg and Chart.js and FullCalendar from jsdelivr.
type CSP [][2]string

func (c CSP) String() string {
	parts := make([]string, len(c))
	for i, d := range c {
		parts[i] = d[0] + " " + d[1]
	}
	return strings.Join(parts, "; ")
}

// HeadersConfig selects the security headers sent with every response.
type HeadersConfig struct {
	CSP CSP
	// HSTSMaxAge is in seconds; HSTS is only sent over TLS.
	HSTSMaxAge int
	// Static is set verbatim on every response.
	Static map[string]string
}

func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		CSP: CSP{
			{"default-src", "'self'"},
			{"script-src", "'self' https://unpkg.com https://cdn.jsdelivr.net"},
			{"style-src", "'self' 'unsafe-inline' https://cdn.jsdelivr.net"},
			{"img-src", "'self' data:"},
			{"connect-src", "'self'"},
			{"object-src", "'none'"},
			{"frame-ancestors", "'none'"},
			{"base-uri", "'self'"},
			{"form-action", "'self'"},
		},
		HSTSMaxAge: 31536000,
		Static: map[string]string{
			"X-Content-Type-Options":       "nosniff",
			"X-Frame-Options":              "DENY",
			"Referrer-Policy":              "strict-origin-when-cross-origin",
			"Permissions-Policy":           "geolocation=(), microphone=(), camera=(), payment=(), usb=()",
			"Cross-Origin-Opener-Policy":   "same-origin",
			"Cross-Origin-Resource-Policy": "same-site",
		},
	}
}

// HeadersMiddleware sets the configured headers. The header values are
// rendered once at construction.
type HeadersMiddleware struct {
	static http.Header
	hsts   string
}

func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	h := &HeadersMiddleware{static: make(http.Header, len(config.Static)+1)}
	for k, v := range config.Static {
		h.static.Set(k, v)
	}
	if len(config.CSP) > 0 {
		h.static.Set("Content-Security-Policy", config.CSP.String())
	}
	if config.HSTSMaxAge > 0 {
		h.hsts = fmt.Sprintf("max-age=%d; includeSubDomains", config.HSTSMaxAge)
	}
	return h
}

// Middleware applies the headers. htmx fragments reflect live ledger state
// and are never cached.
func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		for k, v := range h.static {
			headers[k] = append([]string(nil), v...)
		}
		if r.TLS != nil && h.hsts != "" {
			headers.Set("Strict-Transport-Security", h.hsts)
		}
		if r.Header.Get("HX-Request") == "true" {
			headers.Set("Cache-Control", "no-store")
			headers.Add("Vary", "HX-Request")
		}
		next.ServeHTTP(w, r)
	})
}

// StaticAssetMiddleware marks embedded assets as cacheable for maxAge seconds.
func StaticAssetMiddleware(maxAge int) func(http.Handler) http.Handler {
	value := fmt.Sprintf("public, max-age=%d, immutable", maxAge)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxAge > 0 {
				w.Header().Set("Cache-Control", value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
