// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/safdo/cryptoshield/internal/chain"
	"github.com/safdo/cryptoshield/internal/config"
	"github.com/safdo/cryptoshield/internal/health"
	"github.com/safdo/cryptoshield/internal/ipfs"
	"github.com/safdo/cryptoshield/internal/logging"
	"github.com/safdo/cryptoshield/internal/metrics"
	"github.com/safdo/cryptoshield/internal/notify"
	"github.com/safdo/cryptoshield/internal/realtime"
	"github.com/safdo/cryptoshield/internal/retry"
	"github.com/safdo/cryptoshield/internal/risk"
	"github.com/safdo/cryptoshield/internal/security"
	"github.com/safdo/cryptoshield/internal/status"
	"github.com/safdo/cryptoshield/internal/traces"
	"github.com/safdo/cryptoshield/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg          *config.Config
	riskProvider *risk.Provider
	riskStore    risk.Store
	chainClient  *chain.Client
	relay        *notify.Relay
	notifyStore  notify.Store
	prefStore    notify.PreferenceStore
	statusStore  status.Store
	ipfsProxy    *ipfs.Proxy
	realtimeHub  *realtime.Hub
	healthReg    *health.Registry
	db           *sql.DB // nil if using in-memory
	router       *gin.Engine
	httpSrv      *http.Server
	logger         *slog.Logger
	cancelRunCtx   context.CancelFunc // cancels background goroutines started in Run
	shutdownTraces func(context.Context) error

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

// WithChainClient sets a custom chain client (for testing)
func WithChainClient(c *chain.Client) Option {
	return func(s *Server) {
		s.chainClient = c
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, cfg.LogFormat),
	}

	// Apply options first (may set chain client/logger)
	for _, opt := range opts {
		opt(s)
	}

	// Context for initialization
	ctx := context.Background()

	// Distributed tracing (no-op when no collector endpoint is configured)
	shutdownTraces, err := traces.Init(ctx, cfg.OTLPEndpoint, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	s.shutdownTraces = shutdownTraces

	// Risk rule set (file-based or compiled-in defaults)
	provider, err := risk.NewProvider(cfg.RiskConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load risk config: %w", err)
	}
	s.riskProvider = provider
	if cfg.RiskConfigPath != "" {
		s.logger.Info("risk rules loaded from file", "path", cfg.RiskConfigPath)
	} else {
		s.logger.Info("risk rules using compiled-in defaults")
	}

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		// Configure connection pool
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		// Test connection; the database may still be starting up
		if err := retry.Do(ctx, 5, time.Second, db.Ping); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))

		riskStore := risk.NewPostgresStore(db)
		if err := riskStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate risk store", "error", err)
		}
		s.riskStore = riskStore

		notifyStore := notify.NewPostgresStore(db)
		if err := notifyStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate notification store", "error", err)
		}
		s.notifyStore = notifyStore
		s.prefStore = notifyStore

		statusStore := status.NewPostgresStore(db)
		if err := statusStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate status store", "error", err)
		}
		s.statusStore = statusStore
	} else {
		s.logger.Info("using in-memory storage (data will not persist)")
		s.riskStore = risk.NewMemoryStore()
		notifyStore := notify.NewMemoryStore()
		s.notifyStore = notifyStore
		s.prefStore = notifyStore
		s.statusStore = status.NewMemoryStore()
	}

	// Chain RPC client if not injected
	if s.chainClient == nil {
		s.chainClient = chain.NewClient(map[chain.ID][]string{
			chain.Polkadot: cfg.PolkadotEndpoints,
			chain.Kusama:   cfg.KusamaEndpoints,
			chain.Westend:  cfg.WestendEndpoints,
		}, cfg.RPCTimeout)
	}
	s.logger.Info("chain RPC client configured",
		"polkadot_endpoints", len(cfg.PolkadotEndpoints),
		"kusama_endpoints", len(cfg.KusamaEndpoints),
		"westend_endpoints", len(cfg.WestendEndpoints),
		"timeout", cfg.RPCTimeout,
	)

	// Notification relay; operator-supplied webhook URLs go through the SSRF
	// check, a bad URL is dropped rather than failing startup.
	creds := notify.Credentials{
		DiscordWebhookURL: checkedURL(s.logger, "discord webhook", cfg.DiscordWebhookURL),
		GenericWebhookURL: checkedURL(s.logger, "generic webhook", cfg.GenericWebhookURL),
		SMTPHost:          cfg.SMTPHost,
		SMTPPort:          cfg.SMTPPort,
		SMTPUser:          cfg.SMTPUser,
		SMTPPassword:      cfg.SMTPPassword,
	}
	s.relay = notify.NewRelay(creds, cfg.NotificationDryRun, s.notifyStore)
	s.logger.Info("notification relay configured", "dry_run", cfg.NotificationDryRun)

	// IPFS upload proxy (mock pin, real validation)
	s.ipfsProxy = ipfs.NewProxy(cfg.MaxUploadMB)

	// Create realtime hub for WebSocket streaming
	s.realtimeHub = realtime.NewHub(s.logger)
	s.logger.Info("realtime streaming enabled")

	// Health checkers
	s.healthReg = health.NewRegistry()
	if s.db != nil {
		s.healthReg.Register("database", func(ctx context.Context) health.Status {
			if err := s.db.PingContext(ctx); err != nil {
				return health.Status{Name: "database", Healthy: false, Detail: err.Error()}
			}
			return health.Status{Name: "database", Healthy: true}
		})
	}
	s.healthReg.Register("risk_scorer", func(ctx context.Context) health.Status {
		// The scorer is pure; healthy as long as a rule set is loaded.
		if s.riskProvider.Current() == nil {
			return health.Status{Name: "risk_scorer", Healthy: false, Detail: "no rule set loaded"}
		}
		return health.Status{Name: "risk_scorer", Healthy: true}
	})
	s.healthReg.Register("notification_relay", func(ctx context.Context) health.Status {
		return health.Status{Name: "notification_relay", Healthy: true}
	})

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// checkedURL validates an operator-configured outbound URL, returning ""
// (channel not configured) when the URL fails the SSRF check.
func checkedURL(logger *slog.Logger, name, rawURL string) string {
	if rawURL == "" {
		return ""
	}
	if err := security.ValidateEndpointURL(rawURL); err != nil {
		logger.Warn("dropping unsafe outbound URL", "target", name, "error", err)
		return ""
	}
	return rawURL
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS
	s.router.Use(security.CORSMiddleware(s.cfg.CORSOrigins))

	// Request size limit (1MB default; uploads get their own multipart cap)
	s.router.Use(validation.RequestSizeMiddleware(maxBodySize(s.cfg)))

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Tracing
	s.router.Use(s.tracingMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) tracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := traces.StartSpan(c.Request.Context(),
			c.Request.Method+" "+c.FullPath(),
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", c.FullPath()),
		)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
		if c.Writer.Status() >= 500 {
			span.SetStatus(codes.Error, http.StatusText(c.Writer.Status()))
		}
		span.End()
	}
}

// maxBodySize allows multipart uploads up to the configured cap while normal
// JSON bodies stay limited to 1MB by gin binding on a per-route basis.
func maxBodySize(cfg *config.Config) int64 {
	uploadCap := int64(cfg.MaxUploadMB)*1024*1024 + validation.MaxRequestSize
	if uploadCap < validation.MaxRequestSize {
		return validation.MaxRequestSize
	}
	return uploadCap
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		code := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case code >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", code,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case code >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", code,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", code,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// API info
	s.router.GET("/", s.infoHandler)

	// WebSocket for real-time streaming
	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})

	// V1 API group
	v1 := s.router.Group("/v1")

	riskHandler := risk.NewHandler(s.riskProvider, s.riskStore).
		WithEvents(&riskEventEmitter{s.realtimeHub})
	riskHandler.RegisterRoutes(v1)

	chain.NewHandler(s.chainClient).RegisterRoutes(v1)

	notify.NewHandler(s.relay, s.notifyStore, s.prefStore).
		WithEvents(&notifyEventEmitter{s.realtimeHub}).
		RegisterRoutes(v1)

	status.NewHandler(s.statusStore).RegisterRoutes(v1)

	ipfs.NewHandler(s.ipfsProxy).RegisterRoutes(v1)

	// Hub stats for dashboards
	v1.GET("/realtime/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.realtimeHub.Stats())
	})
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, checks := s.healthReg.CheckAll(ctx)

	result := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		result = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    result,
		Version:   "1.0.0",
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "Cryptoshield",
		"description": "Wallet security dashboard backend",
		"version":     "1.0.0",
		"chains":      []string{"polkadot", "kusama", "westend"},
		"status":      "operational",
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.realtimeHub.Run(runCtx)

	// Start DB stats collector
	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for background goroutines (hub, stats collector)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Flush any pending trace spans
	if s.shutdownTraces != nil {
		if err := s.shutdownTraces(ctx); err != nil {
			s.logger.Warn("trace shutdown error", "error", err)
		}
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}

// riskEventEmitter adapts realtime.Hub to risk.EventEmitter
type riskEventEmitter struct {
	hub *realtime.Hub
}

func (e *riskEventEmitter) RiskScored(a *risk.Assessment) {
	if e.hub != nil {
		e.hub.BroadcastRiskAssessment(map[string]any{
			"id":           a.ID,
			"from_address": a.Transaction.FromAddress,
			"to_address":   a.Transaction.ToAddress,
			"chain":        a.Transaction.Chain,
			"score":        a.Score,
			"level":        string(a.Level),
			"reasons":      a.Reasons,
		})
	}
}

// notifyEventEmitter adapts realtime.Hub to notify.EventEmitter
type notifyEventEmitter struct {
	hub *realtime.Hub
}

func (e *notifyEventEmitter) NotificationDispatched(l *notify.Log) {
	if e.hub != nil {
		e.hub.BroadcastNotification(map[string]any{
			"id":         l.ID,
			"user_id":    l.UserID,
			"event_type": l.EventType,
			"channel":    l.Channel,
			"status":     string(l.Status),
		})
	}
}
