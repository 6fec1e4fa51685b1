// Package server sets up the HTTP server with all routes.
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

	"github.com/Spikeyfun/game-contracts/internal/admin"
	"github.com/Spikeyfun/game-contracts/internal/config"
	"github.com/Spikeyfun/game-contracts/internal/engine"
	"github.com/Spikeyfun/game-contracts/internal/events"
	"github.com/Spikeyfun/game-contracts/internal/logging"
	"github.com/Spikeyfun/game-contracts/internal/metrics"
	"github.com/Spikeyfun/game-contracts/internal/oracle"
	"github.com/Spikeyfun/game-contracts/internal/traces"
	"github.com/Spikeyfun/game-contracts/internal/validation"
	"github.com/Spikeyfun/game-contracts/internal/vault"
)

// SweepInterval is how often the background reclaim sweep runs.
const SweepInterval = 10 * time.Minute

// Server wraps the HTTP server and its collaborators.
type Server struct {
	cfg       *config.Config
	vault     *vault.Vault
	engine    *engine.Engine
	sweeper   *engine.Sweeper
	hub       *events.Hub
	devOracle *oracle.Dev // non-nil in development mode only
	db        *sql.DB     // nil if using in-memory stores
	router    *gin.Engine
	httpSrv   *http.Server
	logger    *slog.Logger
	shutdown  []func(context.Context) error
	cancelRun context.CancelFunc

	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new server instance.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()

	if shutdownTraces, err := traces.Init(ctx, cfg.OTLPEndpoint, s.logger); err != nil {
		s.logger.Warn("tracing disabled", "error", err)
	} else {
		s.shutdown = append(s.shutdown, shutdownTraces)
	}

	// Storage: Postgres if DATABASE_URL is set, otherwise in-memory.
	var vaultStore vault.Store
	var engineStore engine.Store
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s.db = db
		vaultStore = vault.NewPostgresStore(db)
		engineStore = engine.NewPostgresStore(db)
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))
	} else {
		vaultStore = vault.NewMemoryStore()
		engineStore = engine.NewMemoryStore()
		s.logger.Info("using in-memory storage")
	}

	s.vault = vault.Open(vaultStore, "treasury")

	// Oracle: a configured signer means callbacks come from the real
	// network; otherwise run the in-process dev oracle.
	var requester oracle.Requester
	var verifier *oracle.Verifier
	if cfg.OracleSigner != "" {
		requester = oracle.Local{}
		verifier = oracle.NewVerifier(cfg.OracleSigner, cfg.OracleCallers)
	} else {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("ORACLE_SIGNER is required in production")
		}
		dev, err := oracle.NewDev(cfg.OwnerAddress)
		if err != nil {
			return nil, fmt.Errorf("failed to create dev oracle: %w", err)
		}
		s.devOracle = dev
		requester = dev
		verifier = oracle.NewVerifier(dev.SignerAddress(), []string{dev.Caller()})
		s.logger.Info("using in-process dev oracle", "signer", dev.SignerAddress())
	}

	s.hub = events.NewHub(s.logger)

	eng, err := engine.Initialize(engine.Config{
		Owner:            cfg.OwnerAddress,
		MinBet:           cfg.MinBet,
		MaxBet:           cfg.MaxBet,
		SpinFee:          cfg.SpinFee,
		Fee:              engine.FeePolicy{RateBps: cfg.FeeRateBps, Recipient: cfg.FeeRecipient},
		WagerRefundDelay: cfg.WagerRefundDelay,
		DrawRefundDelay:  cfg.DrawRefundDelay,
	}, engineStore, s.vault, requester, verifier,
		engine.WithLogger(s.logger), engine.WithEvents(s.hub))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize engine: %w", err)
	}
	s.engine = eng
	s.sweeper = engine.NewSweeper(eng, SweepInterval)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)
	return s, nil
}

// maskDSN hides the password in a connection string for logging.
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

func (s *Server) setupMiddleware() {
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

	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))
	s.router.Use(metrics.Middleware())
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

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
		status := c.Writer.Status()
		logger := logging.L(c.Request.Context())

		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/healthz", s.livenessHandler)
	s.router.GET("/readyz", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())
	s.router.GET("/ws", func(c *gin.Context) {
		s.hub.HandleWebSocket(c.Writer, c.Request)
	})

	v1 := s.router.Group("/v1")
	engine.NewHandler(s.engine).RegisterRoutes(v1)
	v1.GET("/players/:address/balance", s.balanceHandler)
	v1.GET("/players/:address/history", s.historyHandler)
	v1.GET("/players/:address/items", s.itemsHandler)

	adminGroup := s.router.Group("/admin")
	adminGroup.Use(admin.Middleware(s.cfg.AdminSecret))
	admin.NewHandler(s.engine, s.vault).RegisterRoutes(adminGroup)

	// Dev oracle shortcut: settle a nonce immediately with a local draw.
	if s.devOracle != nil {
		v1.POST("/dev/fulfill", s.devFulfillHandler)
	}
}

func (s *Server) balanceHandler(c *gin.Context) {
	address := c.Param("address")
	if !validation.IsValidAddress(address) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid player address",
		})
		return
	}
	balance, err := s.vault.Balance(c.Request.Context(), address)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": address, "balance": balance})
}

func (s *Server) historyHandler(c *gin.Context) {
	address := c.Param("address")
	if !validation.IsValidAddress(address) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid player address",
		})
		return
	}
	entries, err := s.vault.History(c.Request.Context(), address, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

func (s *Server) itemsHandler(c *gin.Context) {
	address := c.Param("address")
	if !validation.IsValidAddress(address) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid player address",
		})
		return
	}
	items, err := s.vault.Items(c.Request.Context(), address, c.Query("collection"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// devFulfillHandler settles a pending nonce using the dev oracle.
func (s *Server) devFulfillHandler(c *gin.Context) {
	var req struct {
		Nonce string `json:"nonce" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	pending, err := s.engine.Pending(c.Request.Context(), req.Nonce)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Pending request not found",
		})
		return
	}

	cb, err := s.devOracle.Fulfill(pending.Nonce, pending.Seed)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	if err := s.engine.Fulfill(c.Request.Context(), cb); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "fulfillment_failed",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "settled", "nonce": pending.Nonce})
}

func (s *Server) healthHandler(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK
	if !s.healthy.Load() {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	dbStatus := "in-memory"
	if s.db != nil {
		dbStatus = "connected"
		if err := s.db.Ping(); err != nil {
			dbStatus = "disconnected"
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	c.JSON(code, gin.H{
		"status":   status,
		"database": dbStatus,
		"paused":   s.engine.Paused(),
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

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the HTTP server with graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRun = cancel

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
		s.logger.Info("starting server", "port", s.cfg.Port, "owner", s.cfg.OwnerAddress)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go s.hub.Run(runCtx)
	s.sweeper.Start(runCtx)

	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

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

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	if s.cancelRun != nil {
		s.cancelRun()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var firstErr error
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			firstErr = err
		}
	}

	s.sweeper.Stop()
	s.logger.Info("reclaim sweeper stopped")

	for _, fn := range s.shutdown {
		if err := fn(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.healthy.Store(false)
	s.logger.Info("shutdown complete")
	return firstErr
}

func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(b)
}
