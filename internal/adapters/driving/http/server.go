package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/conecta-labs/conecta-core/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	// Services
	authService       driving.AuthService
	userService       driving.UserService
	connectionService driving.ConnectionService
	reconciler        driving.StatusReconciler

	// Infrastructure
	db          Pinger // PostgreSQL health check
	redisClient Pinger // Redis health check (optional)
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// AllowedOrigins lists the console frontend origins for CORS.
	// Empty means same-origin only.
	AllowedOrigins []string

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:    "0.0.0.0",
		Port:    8080,
		Version: "dev",
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	authService driving.AuthService,
	userService driving.UserService,
	connectionService driving.ConnectionService,
	reconciler driving.StatusReconciler,
	db Pinger,
	redisClient Pinger, // can be nil
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:            http.NewServeMux(),
		version:           cfg.Version,
		logger:            logger,
		authService:       authService,
		userService:       userService,
		connectionService: connectionService,
		reconciler:        reconciler,
		db:                db,
		redisClient:       redisClient,
	}

	handler := Chain(s.router,
		Recover(logger),
		RequestLog(logger),
		CORS(cfg.AllowedOrigins),
	)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	guard := NewGuard(s.authService, s.logger)

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Auth endpoints (public)
	s.router.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	s.router.HandleFunc("POST /api/v1/auth/refresh", s.handleRefresh)

	// Setup endpoint (public, one-time use)
	s.router.HandleFunc("POST /api/v1/setup", s.handleSetup)

	// Auth endpoints (authenticated)
	s.router.Handle("POST /api/v1/auth/logout",
		guard.Authenticate(http.HandlerFunc(s.handleLogout)))

	// User endpoints
	s.router.Handle("GET /api/v1/me",
		guard.Authenticate(http.HandlerFunc(s.handleGetMe)))

	// Connection endpoints (authenticated, owner-scoped)
	s.router.Handle("GET /api/v1/connections",
		guard.Authenticate(http.HandlerFunc(s.handleListConnections)))
	s.router.Handle("POST /api/v1/connections",
		guard.Authenticate(http.HandlerFunc(s.handleCreateConnection)))
	s.router.Handle("GET /api/v1/connections/{id}",
		guard.Authenticate(http.HandlerFunc(s.handleGetConnection)))
	s.router.Handle("DELETE /api/v1/connections/{id}",
		guard.Authenticate(http.HandlerFunc(s.handleDeleteConnection)))
	s.router.Handle("POST /api/v1/connections/{id}/qr",
		guard.Authenticate(http.HandlerFunc(s.handleRefreshQR)))
	s.router.Handle("GET /api/v1/connections/{id}/linked",
		guard.Authenticate(http.HandlerFunc(s.handleConfirmLinked)))
	s.router.Handle("POST /api/v1/connections/{id}/cancel-scan",
		guard.Authenticate(http.HandlerFunc(s.handleCancelScan)))
	s.router.Handle("POST /api/v1/connections/{id}/disconnect",
		guard.Authenticate(http.HandlerFunc(s.handleDisconnect)))

	// Status check endpoints (authenticated)
	s.router.Handle("POST /api/v1/connections/check",
		guard.Authenticate(http.HandlerFunc(s.handleCheckConnections)))
	s.router.Handle("GET /api/v1/connections/check",
		guard.Authenticate(http.HandlerFunc(s.handleCheckStatus)))

	// Admin-only user management
	s.router.Handle("GET /api/v1/users",
		guard.Authenticate(
			guard.RequireAdmin(http.HandlerFunc(s.handleListUsers))))
	s.router.Handle("POST /api/v1/users",
		guard.Authenticate(
			guard.RequireAdmin(http.HandlerFunc(s.handleCreateUser))))
	s.router.Handle("DELETE /api/v1/users/{id}",
		guard.Authenticate(
			guard.RequireAdmin(http.HandlerFunc(s.handleDeleteUser))))
	s.router.Handle("POST /api/v1/users/{id}/activate",
		guard.Authenticate(
			guard.RequireAdmin(http.HandlerFunc(s.handleActivateUser))))
	s.router.Handle("POST /api/v1/users/{id}/deactivate",
		guard.Authenticate(
			guard.RequireAdmin(http.HandlerFunc(s.handleDeactivateUser))))

	// Admin-only fleet view
	s.router.Handle("GET /api/v1/admin/connections",
		guard.Authenticate(
			guard.RequireAdmin(http.HandlerFunc(s.handleListAllConnections))))
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	// Channel to listen for OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or listener failure
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}
	s.logger.Info("shutting down server")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
