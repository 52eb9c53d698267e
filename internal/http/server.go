package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/0xcafe-io/iz"
	"github.com/rs/cors"

	applog "bilancio/internal/log"
	"bilancio/internal/middleware/ratelimit"
	"bilancio/internal/middleware/security"
	"bilancio/internal/middleware/trace"
	"bilancio/internal/notify"
	"bilancio/internal/services"
)

// Options configures the HTTP server.
type Options struct {
	CORSOrigins        []string
	RateLimitPerMinute int
	TrustedProxies     []string
	Logger             *applog.Logger
}

type Server struct {
	http.Server
	service  *services.LedgerService
	hub      *notify.Hub
	limiter  *ratelimit.Limiter
	detector *security.Detector
	trace    *trace.Middleware
	logger   *applog.Logger

	started      atomic.Bool
	shutdownOnce sync.Once
}

// NewServer wires the JSON API, the live event feed and the probes behind
// the middleware chain. hub may be nil to disable /api/events.
func NewServer(addr string, svc *services.LedgerService, hub *notify.Hub, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.WarnContext(context.Background(), "Ignoring invalid trusted proxy", "cidr", cidr, applog.FieldError, err.Error())
		}
	}

	s := &Server{
		service:  svc,
		hub:      hub,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector: detector,
		trace:    trace.NewMiddleware(logger, detector.ExtractClientIP),
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/categories", iz.Bind(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", iz.Bind(s.handleCreateCategory))
	mux.HandleFunc("GET /api/transactions", iz.Bind(s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", iz.Bind(s.handleCreateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", iz.Bind(s.handleDeleteTransaction))
	mux.HandleFunc("GET /api/budgets", iz.Bind(s.handleListBudgets))
	mux.HandleFunc("POST /api/budgets", iz.Bind(s.handleCreateBudget))
	mux.HandleFunc("GET /api/budgets/progress", iz.Bind(s.handleBudgetProgress))
	mux.HandleFunc("GET /api/summary", iz.Bind(s.handleSummary))
	mux.HandleFunc("GET /api/breakdown", iz.Bind(s.handleBreakdown))
	mux.HandleFunc("GET /api/monthly", iz.Bind(s.handleMonthly))
	mux.HandleFunc("GET /api/dashboard", iz.Bind(s.handleDashboard))
	if hub != nil {
		mux.Handle("GET /api/events", hub)
	}
	mux.HandleFunc("GET /healthz", iz.Bind(s.handleHealth))
	mux.HandleFunc("GET /readyz", iz.Bind(s.handleReady))
	mux.HandleFunc("GET /metrics", iz.Bind(s.handleMetrics))

	corsConf := cors.New(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", trace.RequestIDHeader},
		AllowCredentials: true,
	})

	var handler http.Handler = mux
	handler = s.limiter.Middleware(detector.ExtractClientIP, writeRateLimited)(handler)
	handler = applog.RequestIDMiddleware(trace.RequestIDFromRequest)(handler)
	handler = applog.Middleware(logger)(handler)
	handler = s.trace.Middleware(handler)
	handler = detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = corsConf.Handler(handler)

	s.Addr = addr
	s.Handler = handler
	s.ReadHeaderTimeout = 10 * time.Second
	s.ReadTimeout = 30 * time.Second
	s.IdleTimeout = 120 * time.Second
	return s
}

// ListenAndServe marks the server ready and serves until Shutdown.
func (s *Server) ListenAndServe() error {
	s.started.Store(true)
	s.logger.InfoContext(context.Background(), "HTTP server listening", "addr", s.Addr)
	return s.Server.ListenAndServe()
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.started.Store(false)
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func writeRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded", applog.FieldPath, r.URL.Path)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(ErrorBody{Error: "rate limit exceeded"})
}
