// Package http serves the subscription dashboard: the HTMX page, its
// partials, the chart image and the JSON and spreadsheet exports.
package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"subtrack/internal/cache"
	"subtrack/internal/catalog"
	"subtrack/internal/chart"
	"subtrack/internal/core"
	"subtrack/internal/events"
	applog "subtrack/internal/log"
	"subtrack/internal/metrics"
	"subtrack/internal/middleware/ratelimit"
	"subtrack/internal/middleware/security"
	"subtrack/internal/middleware/trace"
	"subtrack/internal/session"
	appweb "subtrack/web"
)

const (
	chartCacheSize  = 256
	chartCacheTTL   = 10 * time.Minute
	cleanupInterval = time.Minute
	publishTimeout  = 2 * time.Second
)

// Options configures a Server. Zero values fall back to the defaults used
// by cmd/subtrack.
type Options struct {
	Addr               string
	Catalog            *catalog.Catalog
	Currency           string
	SessionTTL         time.Duration
	SessionMax         int
	RateLimitPerMinute int
	Publisher          events.Publisher
	Logger             *applog.Logger
}

func (o *Options) defaults() {
	if o.Catalog == nil {
		o.Catalog = catalog.Default()
	}
	if o.Currency == "" {
		o.Currency = "USD"
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = 30 * time.Minute
	}
	if o.SessionMax <= 0 {
		o.SessionMax = 1000
	}
	if o.RateLimitPerMinute <= 0 {
		o.RateLimitPerMinute = 120
	}
	if o.Publisher == nil {
		o.Publisher = events.Noop{}
	}
	if o.Logger == nil {
		o.Logger = applog.New(applog.DefaultConfig())
	}
}

type Server struct {
	http.Server
	mux       *http.ServeMux
	templates *template.Template

	sessions  *session.Store
	charts    *chart.Renderer
	currency  core.Currency
	publisher events.Publisher
	metrics   *metrics.Metrics

	logger     *applog.Logger
	structured *applog.StructuredLogger

	cacheManager *cache.Manager
	rateLimiter  *ratelimit.Limiter
	detector     *security.Detector
	tracer       *trace.Middleware

	startedAt    time.Time
	publishing   sync.WaitGroup
	emitMu       sync.Mutex
	emitClosed   bool
	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(opts Options) (*Server, error) {
	opts.defaults()

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	logger := opts.Logger.WithComponent(applog.ComponentHTTP)
	s := &Server{
		mux:          http.NewServeMux(),
		templates:    t,
		sessions:     session.NewStore(opts.Catalog, opts.SessionMax, opts.SessionTTL),
		charts:       chart.NewRenderer(chartCacheSize, chartCacheTTL, chart.Options{}),
		currency:     core.NewCurrency(opts.Currency),
		publisher:    opts.Publisher,
		logger:       logger,
		structured:   applog.NewStructuredLogger(opts.Logger.WithComponent(applog.ComponentDashboard)),
		cacheManager: cache.NewManager(),
		rateLimiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:     security.NewDetector(),
		startedAt:    time.Now(),
	}
	s.metrics = metrics.New(func() float64 { return float64(s.sessions.Size()) })
	s.sessions.OnUnmount(s.handleUnmount)

	s.cacheManager.Register(s.sessions)
	s.cacheManager.Register(s.charts)
	s.cacheManager.StartCleanup(cleanupInterval)

	s.routes()

	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP).
		WithRoute(s.routeOf).
		Observe(s.metrics.ObserveRequest)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() {
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		s.mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /readyz", s.handleReady)
	s.mux.Handle("GET /metrics", s.metrics.Handler())

	ui := func(h http.HandlerFunc) http.Handler { return security.NoStore(h) }
	s.mux.Handle("GET /{$}", ui(s.handleIndex))
	s.mux.Handle("GET /ui/dashboard", ui(s.handleDashboardPartial))
	s.mux.Handle("POST /ui/theme", ui(s.handleToggleTheme))
	s.mux.Handle("POST /ui/ghost", ui(s.handleToggleGhost))
	s.mux.Handle("POST /ui/subscriptions/{id}/toggle", ui(s.handleToggleSubscription))
	s.mux.Handle("GET /ui/chart.svg", ui(s.handleChart))
	s.mux.Handle("GET /api/dashboard", ui(s.handleAPIDashboard))
	s.mux.Handle("GET /export.xlsx", ui(s.handleExport))
	s.mux.Handle("POST /session/end", ui(s.handleEndSession))
}

// handler wraps the mux with the middleware chain, outermost first:
// trace, scan detection, security headers, request logger, rate limit.
func (s *Server) handler() http.Handler {
	var h http.Handler = s.mux
	h = s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited, http.MethodPost)(h)
	h = applog.Middleware(s.logger)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	h = s.tracer.Middleware(h)
	return h
}

func (s *Server) routeOf(r *http.Request) string {
	_, pattern := s.mux.Handler(r)
	return pattern
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Too many changes, slow down.").
		TriggerErrorNotification("Rate limit exceeded").
		Write(w)
}

// Sessions exposes the view store, mainly for tests and the readiness check.
func (s *Server) Sessions() *session.Store {
	return s.sessions
}

// Shutdown stops the listener, background cleanup and pending event
// publishes. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownErr = s.Server.Shutdown(ctx)
		s.cacheManager.Stop()
		s.rateLimiter.Stop()

		// no publish may start once Wait is running
		s.emitMu.Lock()
		s.emitClosed = true
		s.emitMu.Unlock()

		done := make(chan struct{})
		go func() {
			s.publishing.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			s.logger.Warn("Shutdown timeout reached with events pending")
		}
	})
	return shutdownErr
}
