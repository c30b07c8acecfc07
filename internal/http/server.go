package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gastos/internal/auth"
	"gastos/internal/log"
	"gastos/internal/middleware/ratelimit"
	"gastos/internal/middleware/security"
	"gastos/internal/middleware/trace"
	"gastos/internal/realtime"
	"gastos/internal/services"
)

// Options configures NewServer. Service and Verifier are required.
type Options struct {
	Service            *services.ExpenseService
	Verifier           *auth.Verifier
	Hub                *realtime.Hub
	Logger             *log.Logger
	CORSAllowedOrigins []string
	RateLimit          ratelimit.Config
	BlockSuspicious    bool
}

// Server wraps http.Server with the application's routes and middleware.
type Server struct {
	http.Server

	svc      *services.ExpenseService
	verifier *auth.Verifier
	hub      *realtime.Hub
	logger   *log.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	startedAt       time.Time
	expensesCreated atomic.Int64
	expensesDeleted atomic.Int64

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewServer builds the HTTP server. Requests pass, outermost first, through
// tracing, suspicious request detection, security headers, CORS and the
// per-IP rate limit on writes; /api and /ws additionally require a bearer
// token.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentHTTP, Handler: slog.Default().Handler()})
	}
	rl := opts.RateLimit
	if rl.RequestsPerMinute <= 0 {
		rl = ratelimit.DefaultConfig()
	}

	s := &Server{
		svc:       opts.Service,
		verifier:  opts.Verifier,
		hub:       opts.Hub,
		logger:    logger,
		limiter:   ratelimit.NewLimiter(rl),
		detector:  security.NewDetector(opts.BlockSuspicious),
		startedAt: time.Now(),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ClientIP)

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ClientIP, isReadOnly, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
	})(handler)
	handler = security.NewCORS(opts.CORSAllowedOrigins).Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.detector.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/v1/categories", s.handleCategories)

	mux.Handle("GET /api/v1/expenses", s.authed(s.handleListExpenses))
	mux.Handle("POST /api/v1/expenses", s.authed(s.handleCreateExpense))
	mux.Handle("DELETE /api/v1/expenses/{id}", s.authed(s.handleDeleteExpense))

	mux.Handle("GET /api/v1/dashboard", s.authed(s.handleDashboard))
	mux.Handle("GET /api/v1/dashboard/breakdown", s.authed(s.handleBreakdown))
	mux.Handle("GET /api/v1/dashboard/comparison", s.authed(s.handleComparison))
	mux.Handle("GET /api/v1/dashboard/trend", s.authed(s.handleTrend))

	mux.Handle("GET /api/v1/insights", s.authed(s.handleInsight))
	mux.Handle("POST /api/v1/insights/refresh", s.authed(s.handleRefreshInsight))

	if s.hub != nil {
		mux.Handle("GET /ws", s.verifier.UpgradeMiddleware(s.hub))
	}
}

func (s *Server) authed(h http.HandlerFunc) http.Handler {
	return s.verifier.Middleware(h)
}

// isReadOnly keeps safe methods out of the rate limit.
func isReadOnly(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// ownerOf returns the authenticated owner. The auth middleware guarantees
// one on every route that calls it.
func ownerOf(r *http.Request) string {
	owner, _ := auth.OwnerFromContext(r.Context())
	return strings.TrimSpace(owner)
}

// Shutdown stops accepting requests, waits for in-flight ones and releases
// the rate limiter and the websocket hub. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.logger.InfoContext(ctx, "Shutting down HTTP server", log.FieldOperation, log.OpShutdown)

		var errs []error
		if s.hub != nil {
			if err := s.hub.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := s.Server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		s.limiter.Stop()
		s.shutdownErr = errors.Join(errs...)
	})
	return s.shutdownErr
}
