// Package server sets up the HTTP server exposing the security engine.
package server

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/askari-labs/askari/internal/audit"
	"github.com/askari-labs/askari/internal/blacklist"
	"github.com/askari-labs/askari/internal/circuitbreaker"
	"github.com/askari-labs/askari/internal/config"
	"github.com/askari-labs/askari/internal/fraud"
	"github.com/askari-labs/askari/internal/history"
	"github.com/askari-labs/askari/internal/idgen"
	"github.com/askari-labs/askari/internal/logging"
	"github.com/askari-labs/askari/internal/metrics"
	"github.com/askari-labs/askari/internal/ratelimit"
	"github.com/askari-labs/askari/internal/security"
	"github.com/askari-labs/askari/internal/traces"
)

// Server wraps the HTTP server and the security engine's dependencies.
type Server struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *sql.DB // nil if using in-memory stores
	auditLog  audit.Logger
	provider  history.Provider
	analyses  fraud.Store
	blacklist blacklist.Provider

	limiter *ratelimit.Limiter
	gate    *blacklist.Gate
	engine  *fraud.Engine

	router       *gin.Engine
	httpSrv      *http.Server
	stopTracing  func(context.Context) error
	cancelRunCtx context.CancelFunc

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithHistoryProvider sets a custom history provider (for testing)
func WithHistoryProvider(p history.Provider) Option {
	return func(s *Server) {
		s.provider = p
	}
}

// WithAuditLogger sets a custom audit logger (for testing)
func WithAuditLogger(l audit.Logger) Option {
	return func(s *Server) {
		s.auditLog = l
	}
}

// WithBlacklistProvider sets a custom blacklist provider (for testing)
func WithBlacklistProvider(p blacklist.Provider) Option {
	return func(s *Server) {
		s.blacklist = p
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}

	// Apply options first (may set logger/provider/audit)
	for _, opt := range opts {
		opt(s)
	}

	// Storage: Postgres if DATABASE_URL set, otherwise in-memory.
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.Ping(); err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		s.db = db

		if s.auditLog == nil {
			s.auditLog = audit.NewPostgresLogger(db)
		}
		if s.provider == nil {
			s.provider = history.NewPostgresProvider(db)
		}
		s.analyses = fraud.NewPostgresStore(db)
		if s.blacklist == nil {
			s.blacklist = blacklist.NewPostgresProvider(db)
		}
		s.logger.Info("using postgres storage")
	} else {
		if s.auditLog == nil {
			s.auditLog = audit.NewMemoryLogger()
		}
		if s.provider == nil {
			s.provider = history.NewMemoryProvider()
		}
		s.analyses = fraud.NewMemoryStore()
		if s.blacklist == nil {
			s.blacklist = blacklist.NewMemoryProvider()
		}
		s.logger.Info("using in-memory storage (set DATABASE_URL for persistence)")
	}

	s.limiter = ratelimit.New(ratelimit.NewMemoryStore(), s.auditLog, s.logger).
		WithViolationBlockAt(cfg.ViolationBlockAt)

	breaker := circuitbreaker.New("blacklist", cfg.BreakerThreshold, cfg.BreakerOpenFor)
	s.gate = blacklist.NewGate(s.blacklist, breaker, s.auditLog, s.logger)

	s.engine = fraud.NewEngine(s.provider, s.analyses, s.logger).
		WithThresholds(cfg.BlockThreshold, cfg.ReviewThreshold, cfg.FlagThreshold).
		WithHighValueAmount(cfg.HighValueAmount).
		WithFactorTimeout(cfg.FactorTimeout).
		WithProxyRanges(cfg.ProxyCIDRs)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.setupRoutes()

	s.healthy.Store(true)
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(metrics.Middleware())
	s.router.Use(security.HeadersMiddleware())
	s.router.Use(security.CORSMiddleware(s.cfg.AllowedOrigins))

	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	v1 := s.router.Group("/v1")
	{
		// Order submission is the hot path; it gets the strict limit.
		v1.POST("/orders/check",
			s.limiter.Middleware(s.cfg.OrderRateLimit, s.cfg.RateLimitWindow),
			s.orderCheckHandler)

		v1.POST("/fraud/check",
			s.limiter.Middleware(s.cfg.DefaultRateLimit, s.cfg.RateLimitWindow),
			s.fraudCheckHandler)

		v1.GET("/blacklist/check",
			s.limiter.Middleware(s.cfg.DefaultRateLimit, s.cfg.RateLimitWindow),
			s.blacklistCheckHandler)

		admin := v1.Group("/admin")
		admin.GET("/security-events", s.listSecurityEventsHandler)
		admin.GET("/fraud-analyses/:userId", s.listFraudAnalysesHandler)
		admin.POST("/fraud-analyses/:id/review", s.reviewFraudAnalysisHandler)
		admin.GET("/violations", s.getViolationHandler)
	}
}

// requestIDMiddleware tags every request with an ID for log correlation.
func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = idgen.New()
		}
		c.Header("X-Request-ID", reqID)

		ctx := logging.WithRequestID(c.Request.Context(), reqID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	stopTracing, err := traces.Init(runCtx, s.cfg.OTLPEndpoint, s.logger)
	if err != nil {
		return err
	}
	s.stopTracing = stopTracing

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-quit:
		s.logger.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("shutting down", "reason", "context canceled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server and its background goroutines.
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var firstErr error
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if s.stopTracing != nil {
		if err := s.stopTracing(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Router exposes the gin engine (for testing).
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) healthHandler(c *gin.Context) {
	status := "ok"
	code := http.StatusOK
	if !s.healthy.Load() {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status})
}

func (s *Server) livenessHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
