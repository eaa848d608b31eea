package http

import (
	"context"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"buchhaltung/internal/calendar"
	"buchhaltung/internal/log"
	"buchhaltung/internal/middleware/ratelimit"
	"buchhaltung/internal/middleware/security"
	"buchhaltung/internal/middleware/trace"
	"buchhaltung/internal/services"
	appweb "buchhaltung/web"
)

var errTemplatesNotLoaded = errors.New("templates not loaded")

// Pinger reports whether the record store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server serves the single-page shell, its htmx partials and the calendar
// JSON API.
type Server struct {
	http.Server
	templates *template.Template
	logger    *log.Logger

	ledger *services.Ledger
	board  *calendar.Board
	store  Pinger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	brokerCheck      func() error

	appMetrics   appMetrics
	shutdownOnce sync.Once
}

type appMetrics struct {
	uptime    time.Time
	mutations atomic.Int64
	failures  atomic.Int64
}

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	logger         *log.Logger
	rateLimit      ratelimit.Config
	trustedProxies []string
	brokerCheck    func() error
	templatesFS    fs.FS
}

func WithLogger(l *log.Logger) Option {
	return func(o *serverOptions) { o.logger = l }
}

func WithRateLimit(c ratelimit.Config) Option {
	return func(o *serverOptions) { o.rateLimit = c }
}

// WithTrustedProxies adds CIDRs whose forwarding headers are honored.
func WithTrustedProxies(cidrs ...string) Option {
	return func(o *serverOptions) { o.trustedProxies = append(o.trustedProxies, cidrs...) }
}

// WithBrokerCheck adds the message broker to the readiness checks.
func WithBrokerCheck(check func() error) Option {
	return func(o *serverOptions) { o.brokerCheck = check }
}

// WithTemplatesFS replaces the embedded templates.
func WithTemplatesFS(fsys fs.FS) Option {
	return func(o *serverOptions) { o.templatesFS = fsys }
}

// NewServer configures routes, templates and middleware, returning a
// ready-to-run http.Server.
func NewServer(addr string, ledger *services.Ledger, board *calendar.Board, pinger Pinger, opts ...Option) *Server {
	o := serverOptions{
		rateLimit:   ratelimit.DefaultConfig(),
		templatesFS: appweb.TemplatesFS,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.New(log.DefaultConfig())
	}
	logger := o.logger.WithComponent(log.ComponentHTTP)

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger:           logger,
		ledger:           ledger,
		board:            board,
		store:            pinger,
		rateLimiter:      ratelimit.NewLimiter(o.rateLimit),
		securityDetector: security.NewDetector(o.logger),
		brokerCheck:      o.brokerCheck,
	}
	s.appMetrics.uptime = time.Now()
	for _, cidr := range o.trustedProxies {
		if err := s.securityDetector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}
	s.traceMiddleware = trace.NewMiddleware(o.logger, s.securityDetector.ExtractClientIP)

	t, err := template.New("").Funcs(templateFuncs).ParseFS(o.templatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates",
			log.FieldError, err,
			log.FieldOperation, log.OpParse)
	} else {
		s.templates = t
	}

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /views/{name}", s.handleView)
	mux.HandleFunc("POST /refresh", s.handleRefresh)

	mux.HandleFunc("GET /ui/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /ui/{entity}/table", s.handleTable)
	mux.HandleFunc("POST /ui/documents/items", s.handleDocumentItems)
	mux.HandleFunc("POST /{entity}", s.handleCreate)
	mux.HandleFunc("DELETE /{entity}/{id}", s.handleDelete)

	mux.HandleFunc("GET /api/events", s.handleListEvents)
	mux.HandleFunc("POST /api/events", s.handleCreateEvent)
	mux.HandleFunc("PATCH /api/events/{id}", s.handleMoveEvent)
	mux.HandleFunc("DELETE /api/events/{id}", s.handleDeleteEvent)
	mux.HandleFunc("GET /ui/events/new", s.handleNewEventModal)
	mux.HandleFunc("GET /ui/events/{id}/edit", s.handleEditEventModal)
	mux.HandleFunc("POST /ui/events/{id}/edit/{action}", s.handleEditEventAction)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimited)

	var handler http.Handler = mux
	handler = limited(handler)
	handler = headers.Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)
	handler = s.securityDetector.Middleware(handler)
	s.Handler = handler

	return s
}

// onRateLimited answers with an error toast so htmx forms keep their input.
func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.requestLogger(r).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Zu viele Anfragen").
		TriggerErrorNotification("Zu viele Anfragen. Bitte später erneut versuchen.").
		Write(w)
}

// Shutdown stops background routines and the HTTP server once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// requestLogger returns the request-scoped logger set by the trace
// middleware, falling back to the server logger.
func (s *Server) requestLogger(r *http.Request) *log.Logger {
	return log.FromContextOr(r.Context(), s.logger).WithComponent(log.ComponentHTTP)
}

var templateFuncs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}
