package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"bankfees/internal/catalog"
	"bankfees/internal/core"
	"bankfees/internal/fees"
	"bankfees/internal/format"
	applog "bankfees/internal/log"
	"bankfees/internal/metrics"
	"bankfees/internal/middleware/ratelimit"
	"bankfees/internal/middleware/security"
	"bankfees/internal/middleware/trace"
	"bankfees/internal/services"
)

// Catalog is what the handlers need from the catalog service.
type Catalog interface {
	ListBanks(ctx context.Context) ([]core.Bank, error)
	ListAccounts(ctx context.Context, q services.Query) (services.Listing, error)
	BankDetail(ctx context.Context, id string) (services.Detail, error)
	Customize(ctx context.Context, bankID string, accountType core.AccountType, usage core.UsageProfile) (services.CustomResult, error)
	Compare(ctx context.Context, sel catalog.Selection) (services.Comparison, error)
	Breakdown() fees.Breakdown
	Policy() fees.Policy
	Refresh(ctx context.Context, reason string) error
	Ready(ctx context.Context) (int, error)
}

var _ Catalog = (*services.CatalogService)(nil)

type Options struct {
	Logger  *applog.Logger
	Metrics *metrics.Metrics
	// RateLimitPerMinute bounds POST requests per client; 0 means 60.
	RateLimitPerMinute int
	// Locale drives bank-name collation and currency formatting.
	Locale string
	// ReadyTimeout bounds the source check behind /readyz.
	ReadyTimeout time.Duration
}

// Server serves the bank fee API.
type Server struct {
	http.Server
	catalog      Catalog
	logger       *applog.Logger
	structLog    *applog.StructuredLogger
	metrics      *metrics.Metrics
	money        *format.Formatter
	locale       string
	readyTimeout time.Duration
	limiter      *ratelimit.Limiter
	detector     *security.Detector
	tracer       *trace.Middleware
	changelog    *changelog
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// The rate limiter's cleanup goroutine runs until Shutdown.
func NewServer(addr string, c Catalog, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 5 * time.Second
	}
	limitCfg := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limitCfg.RequestsPerMinute = opts.RateLimitPerMinute
	}

	s := &Server{
		catalog:      c,
		logger:       logger,
		structLog:    applog.NewStructuredLogger(logger),
		metrics:      opts.Metrics,
		money:        format.New(opts.Locale),
		locale:       opts.Locale,
		readyTimeout: opts.ReadyTimeout,
		limiter:      ratelimit.NewLimiter(limitCfg),
		detector:     security.NewDetector(),
		changelog:    newChangelog(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
	})

	r.Use(
		applog.Middleware(logger),
		s.tracer.Middleware,
		applog.RequestIDMiddleware(trace.RequestID),
		s.metrics.Middleware(),
		security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware,
		s.detector.Middleware(logger),
		s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited),
	)

	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet, http.MethodHead)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/banks", s.handleListBanks).Methods(http.MethodGet)
	api.HandleFunc("/banks/{id}", s.handleBankDetail).Methods(http.MethodGet)
	api.HandleFunc("/banks/{id}/custom", s.handleCustom).Methods(http.MethodGet)
	api.HandleFunc("/accounts", s.handleAccounts).Methods(http.MethodGet)
	api.HandleFunc("/compare", s.handleCompare).Methods(http.MethodGet)
	api.Handle("/calculation", security.CacheFor(3600)(http.HandlerFunc(s.handleCalculation))).Methods(http.MethodGet)
	api.Handle("/changelog", security.CacheFor(300)(http.HandlerFunc(s.handleChangelog))).Methods(http.MethodGet)
	api.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
