// Package mockbackend provides an in-process reference implementation of the
// admin API the smoke checks exercise. It backs local dry runs and the test
// suite.
package mockbackend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/jmylchreest/apismoke/internal/mockbackend/handlers"
	"github.com/jmylchreest/apismoke/internal/mockbackend/middleware"
)

// Config holds reference backend configuration.
type Config struct {
	// Host is the address to bind to.
	Host string
	// Port is the port to listen on.
	Port int
	// Email and Password are the seeded admin credentials.
	Email    string
	Password string
	// VerboseLogging logs every request instead of only 4xx/5xx responses.
	VerboseLogging bool
	// CORS overrides the default CORS policy when non-nil.
	CORS *middleware.CORSConfig
	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration to wait for active connections to close.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "127.0.0.1",
		Port:            8001,
		Email:           "admin@trading.com",
		Password:        "Admin@123456",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Address returns the listen address in host:port format.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, fmt.Sprintf("%d", c.Port))
}

// Server is the reference backend.
type Server struct {
	config     Config
	router     *chi.Mux
	api        huma.API
	store      *handlers.Store
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates the backend and registers every operation.
// The version parameter is reported by the root endpoint and the OpenAPI document.
func NewServer(config Config, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if version == "" {
		version = "dev"
	}

	corsConfig := middleware.DefaultCORSConfig()
	if config.CORS != nil {
		corsConfig = *config.CORS
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestLogger(logger, config.VerboseLogging))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORSWithConfig(corsConfig))
	router.Use(middleware.Compress(middleware.DefaultCompressionLevel))

	humaConfig := huma.DefaultConfig("Trading Platform Admin API", version)
	humaConfig.Info.Description = "Reference admin backend for smoke testing"
	humaConfig.DocsPath = ""
	humaConfig.OpenAPIPath = "/api/openapi"

	api := humachi.New(router, humaConfig)
	store := handlers.NewStore(config.Email, config.Password)

	handlers.NewRootHandler(version).Register(api)
	handlers.NewHealthHandler(version).Register(api)
	handlers.NewAuthHandler(store, logger).Register(api)
	handlers.NewSettingsHandler(store, logger).Register(api)

	s := &Server{
		config: config,
		router: router,
		api:    api,
		store:  store,
		logger: logger,
	}
	s.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: config.ReadTimeout,
		ReadTimeout:       config.ReadTimeout,
		WriteTimeout:      config.WriteTimeout,
	}
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// API returns the Huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

// Store returns the backing state.
func (s *Server) Store() *handlers.Store {
	return s.store
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("reference backend listening",
		slog.String("address", ln.Addr().String()),
	)

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving reference backend: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx := ctx
	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down reference backend: %w", err)
	}

	s.logger.Info("reference backend stopped")
	return nil
}

// ListenAndServe listens on the configured address and blocks until ctx is
// cancelled or the server fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.Address())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.config.Address(), err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}
