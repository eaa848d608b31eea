package security

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"

	"buchhaltung/internal/log"
)

// DetectionMetrics tracks security detection events
type DetectionMetrics struct {
	BlockedProbes     int64
	InvalidForwarding int64
}

// Detector resolves client addresses behind trusted proxies and rejects
// scanner probes before they reach the dashboard handlers.
type Detector struct {
	mu             sync.RWMutex
	trustedProxies []netip.Prefix
	logger         *log.Logger

	blocked atomic.Int64
	invalid atomic.Int64
}

var defaultTrusted = []string{"127.0.0.0/8", "::1/128", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}

// probeMarkers are path fragments no dashboard route ever contains.
var probeMarkers = []string{
	"../", "..\\", "/.env", "/.git", "/.ssh", "wp-admin", "wp-login",
	"phpmyadmin", ".php", "etc/passwd", "cmd.exe", "<script",
}

// NewDetector creates a new security detector
func NewDetector(logger *log.Logger) *Detector {
	if logger == nil {
		logger = log.Discard()
	}
	d := &Detector{logger: logger.WithComponent(log.ComponentSecurity)}
	for _, cidr := range defaultTrusted {
		d.trustedProxies = append(d.trustedProxies, netip.MustParsePrefix(cidr))
	}
	return d
}

// AddTrustedProxy adds a trusted proxy network
func (d *Detector) AddTrustedProxy(cidr string) error {
	p, err := netip.ParsePrefix(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.mu.Lock()
	d.trustedProxies = append(d.trustedProxies, p.Masked())
	d.mu.Unlock()
	return nil
}

// IsProbe reports whether the request looks like an automated scan.
func (d *Detector) IsProbe(r *http.Request) bool {
	switch r.Method {
	case http.MethodTrace, http.MethodConnect, "TRACK", "DEBUG":
		return true
	}
	if len(r.URL.RawQuery)+len(r.URL.Path) > 2048 {
		return true
	}
	target := strings.ToLower(r.URL.Path + "?" + r.URL.RawQuery)
	for _, marker := range probeMarkers {
		if strings.Contains(target, marker) {
			return true
		}
	}
	return false
}

// Middleware answers probes with 404 and counts them.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d.IsProbe(r) {
			d.blocked.Add(1)
			d.logger.WarnContext(r.Context(), "Blocked probe request",
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, d.ExtractClientIP(r),
				log.FieldUserAgent, r.Header.Get("User-Agent"))
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ExtractClientIP returns the connecting address, or the first forwarded
// address when the connection comes from a trusted proxy.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	direct, err := netip.ParseAddr(host)
	if err != nil || !d.trusted(direct.Unmap()) {
		return host
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return addr.String()
		}
		d.invalid.Add(1)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if addr, err := netip.ParseAddr(xri); err == nil {
			return addr.String()
		}
		d.invalid.Add(1)
	}
	return host
}

func (d *Detector) trusted(addr netip.Addr) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, p := range d.trustedProxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// GetMetrics returns current security metrics
func (d *Detector) GetMetrics() DetectionMetrics {
	return DetectionMetrics{
		BlockedProbes:     d.blocked.Load(),
		InvalidForwarding: d.invalid.Load(),
	}
}
