package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"expensetracker/internal/cache"
	applog "expensetracker/internal/log"
	"expensetracker/internal/middleware/ratelimit"
	"expensetracker/internal/middleware/security"
	"expensetracker/internal/middleware/trace"
	"expensetracker/internal/services"
)

// BrokerStatus reports the event broker connection for readiness checks.
type BrokerStatus interface {
	IsConnected() bool
}

// Options tunes the optional parts of the server.
type Options struct {
	// RateLimitPerMinute caps mutating requests per client IP. Zero disables limiting.
	RateLimitPerMinute int
	TrustedProxies     []string
	// CacheStats exposes the category cache in /metrics when set.
	CacheStats func() cache.Stats
	// Broker is nil when events are not configured.
	Broker BrokerStatus
}

type Server struct {
	http.Server
	router   *mux.Router
	expenses *services.ExpenseService
	users    *services.UserService
	logger   *applog.Logger
	slogger  *applog.StructuredLogger

	validate   *validator.Validate
	translator ut.Translator

	trace       *trace.Middleware
	detector    *security.Detector
	rateLimiter *ratelimit.Limiter
	cacheStats  func() cache.Stats
	broker      BrokerStatus
	startedAt   time.Time

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, expenses *services.ExpenseService, users *services.UserService, logger *applog.Logger, opts Options) *Server {
	logger = logger.WithComponent(applog.ComponentHTTP)
	validate, translator := newValidator()

	s := &Server{
		router:     mux.NewRouter(),
		expenses:   expenses,
		users:      users,
		logger:     logger,
		slogger:    applog.NewStructuredLogger(logger),
		validate:   validate,
		translator: translator,
		detector:   security.NewDetector(),
		cacheStats: opts.CacheStats,
		broker:     opts.Broker,
		startedAt:  time.Now(),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring invalid trusted proxy", "cidr", cidr, applog.FieldError, err)
		}
	}
	s.trace = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	s.routes()

	var handler http.Handler = s.router
	if opts.RateLimitPerMinute > 0 {
		s.rateLimiter = ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
			CleanupInterval:   5 * time.Minute,
			MutatingOnly:      true,
		})
		handler = s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)(handler)
	}
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.trace.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	r := s.router
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/users", s.handleCreateUser).Methods(http.MethodPost)
	api.HandleFunc("/users/{id:[0-9]+}", s.handleGetUser).Methods(http.MethodGet)
	api.HandleFunc("/categories", s.handleListCategories).Methods(http.MethodGet)

	api.HandleFunc("/expenses", s.handleListExpenses).Methods(http.MethodGet)
	api.HandleFunc("/expenses", s.handleCreateExpense).Methods(http.MethodPost)
	api.HandleFunc("/expenses/summary/by_category", s.handleSummaryByCategory).Methods(http.MethodGet)
	api.HandleFunc("/expenses/by_category/{category_id:[0-9]+}", s.handleListByCategory).Methods(http.MethodGet)
	api.HandleFunc("/expenses/{id:[0-9]+}", s.handleGetExpense).Methods(http.MethodGet)
	api.HandleFunc("/expenses/{id:[0-9]+}", s.handleUpdateExpense).Methods(http.MethodPut, http.MethodPatch)
	api.HandleFunc("/expenses/{id:[0-9]+}", s.handleDeleteExpense).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)
}

// Handler exposes the full middleware chain, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.Server.Handler
}

// Shutdown stops background goroutines and drains the HTTP server once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
