package security

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestExtractClientIP(t *testing.T) {
	d := NewDetector(nil)

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"direct public", "203.0.113.7:5000", nil, "203.0.113.7"},
		{"public ignores forwarded", "203.0.113.7:5000", map[string]string{"X-Forwarded-For": "1.2.3.4"}, "203.0.113.7"},
		{"trusted proxy forwarded", "10.0.0.2:5000", map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.2"}, "198.51.100.1"},
		{"trusted proxy real ip", "127.0.0.1:5000", map[string]string{"X-Real-IP": "198.51.100.9"}, "198.51.100.9"},
		{"trusted proxy garbage", "192.168.1.1:5000", map[string]string{"X-Forwarded-For": "nonsense"}, "192.168.1.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := d.ExtractClientIP(r); got != tt.want {
				t.Errorf("ExtractClientIP = %q, want %q", got, tt.want)
			}
		})
	}

	if d.GetMetrics().InvalidForwarding != 1 {
		t.Errorf("invalid forwarding = %d, want 1", d.GetMetrics().InvalidForwarding)
	}
}

func TestAddTrustedProxy(t *testing.T) {
	d := NewDetector(nil)
	if err := d.AddTrustedProxy("not-a-cidr"); err == nil {
		t.Fatal("expected error")
	}
	if err := d.AddTrustedProxy("203.0.113.0/24"); err != nil {
		t.Fatalf("AddTrustedProxy: %v", err)
	}
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.7:1234"
	r.Header.Set("X-Forwarded-For", "198.51.100.1")
	if got := d.ExtractClientIP(r); got != "198.51.100.1" {
		t.Errorf("got %q", got)
	}
}

func TestDetectorMiddleware(t *testing.T) {
	d := NewDetector(nil)
	h := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		method string
		target string
		want   int
	}{
		{http.MethodGet, "/views/incomes", http.StatusOK},
		{http.MethodGet, "/api/events?start=2025-03-01", http.StatusOK},
		{http.MethodGet, "/.env", http.StatusNotFound},
		{http.MethodGet, "/wp-admin/setup.php", http.StatusNotFound},
		{http.MethodGet, "/static/../../etc/passwd", http.StatusNotFound},
		{http.MethodTrace, "/", http.StatusNotFound},
		{http.MethodGet, "/?q=" + strings.Repeat("a", 3000), http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))
		if rec.Code != tt.want {
			t.Errorf("%s %.40s: status = %d, want %d", tt.method, tt.target, rec.Code, tt.want)
		}
	}
	if got := d.GetMetrics().BlockedProbes; got != 5 {
		t.Errorf("blocked = %d, want 5", got)
	}
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/ui/incomes/table", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	csp := rec.Header().Get("Content-Security-Policy")
	for _, src := range []string{"https://unpkg.com", "https://cdn.jsdelivr.net"} {
		if !strings.Contains(csp, src) {
			t.Errorf("CSP missing %s: %s", src, csp)
		}
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q", rec.Header().Get("Cache-Control"))
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS set on plain HTTP")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Errorf("X-Frame-Options = %q", rec.Header().Get("X-Frame-Options"))
	}
}

func TestHeadersMiddlewareTLS(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "https://example.test/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("HSTS = %q", got)
	}
	if rec.Header().Get("Cache-Control") != "" {
		t.Error("full page responses should not be marked no-store")
	}
}

func TestCSPString(t *testing.T) {
	c := CSP{{"default-src", "'self'"}, {"object-src", "'none'"}}
	if got := c.String(); got != "default-src 'self'; object-src 'none'" {
		t.Errorf("String() = %q", got)
	}
}

func TestStaticAssetMiddleware(t *testing.T) {
	h := StaticAssetMiddleware(3600)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/app.js", nil))
	if got := rec.Header().Get("Cache-Control"); got != "public, max-age=3600, immutable" {
		t.Errorf("Cache-Control = %q", got)
	}
}
