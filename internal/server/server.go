// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer: it connects handlers, middleware, and routes.
// It decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// The CLI creates:
//   config.Config, logger, sandbox executor → passed to New
//   New creates: sqlite.DB → services → handlers → routes
//
// This is the "composition root" pattern: all dependencies are wired
// in one place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/codecraft/internal/auth"
	"github.com/sakif/codecraft/internal/config"
	"github.com/sakif/codecraft/internal/entitlement"
	"github.com/sakif/codecraft/internal/events"
	"github.com/sakif/codecraft/internal/executor"
	"github.com/sakif/codecraft/internal/handler"
	"github.com/sakif/codecraft/internal/middleware"
	sqliteRepo "github.com/sakif/codecraft/internal/repository/sqlite"
	"github.com/sakif/codecraft/internal/service"
	"github.com/sakif/codecraft/internal/webhook"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection and, when configured, the Redis
// client behind the event publisher. Close releases both; Start calls it
// during graceful shutdown.
type Server struct {
	router    *chi.Mux
	config    *config.Config
	logger    *slog.Logger
	db        *sqliteRepo.DB
	languages *config.Catalogue
	policy    entitlement.Policy
	publisher events.Publisher
	sandbox   executor.Executor
	closers   []io.Closer
}

// New creates a new Server with the given config.
//
// sandbox may be nil: the server still starts and POST /api/execute
// answers 503. Recording client-side runs keeps working.
//
// IMPORT ALIAS:
// We import repository/sqlite as `sqliteRepo` to avoid confusion with
// the sqlite driver package.
func New(cfg *config.Config, logger *slog.Logger, sandbox executor.Executor) (*Server, error) {
	// === LANGUAGE CATALOGUE ===
	languages, err := config.LoadCatalogue(cfg.LanguagesFile)
	if err != nil {
		return nil, fmt.Errorf("loading language catalogue: %w", err)
	}

	// === CREATE DATABASE ===
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		logger:    logger,
		db:        db,
		languages: languages,
		policy:    entitlement.NewPolicy(languages.FreeTags()...),
		sandbox:   sandbox,
		closers:   []io.Closer{db},
	}

	// === EVENT PUBLISHER ===
	// Redis when configured, otherwise events only go to the log.
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		redisPub, err := events.NewRedisPublisher(ctx, events.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Channel:  cfg.EventsChannel,
		})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connecting event bus: %w", err)
		}
		s.publisher = redisPub
		s.closers = append(s.closers, redisPub)
	} else {
		s.publisher = events.NewLogPublisher(logger)
	}

	if err := s.setupRoutes(); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler returns the fully wired router. Tests drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases everything the server owns, newest first.
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz
// GET    /api/languages
// GET    /api/snippets                  list (public)
// GET    /api/snippets/{id}             (public)
// GET    /api/snippets/{id}/comments    (public)
// GET    /api/snippets/{id}/stars       {starred, count} (optional auth)
// GET    /api/users/{identity}/stats    (public)
// POST   /api/snippets                  auth
// DELETE /api/snippets/{id}             auth, owner only
// POST   /api/snippets/{id}/comments    auth
// DELETE /api/comments/{id}             auth, author only
// POST   /api/snippets/{id}/stars       auth, toggles
// GET    /api/me                        auth
// GET    /api/me/starred                auth
// GET    /api/me/executions             auth
// POST   /api/executions                auth, records a client-side run
// POST   /api/execute                   auth, runs in the sandbox
// POST   /webhooks/clerk                Svix-signed
// POST   /webhooks/lemon-squeezy        HMAC-signed
// GET    /auth/github/login, /auth/github/callback; POST /auth/logout
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns unique ID to each request (for tracing)
// 2. RealIP: extracts real client IP from proxy headers
// 3. Logger: logs each request with timing info and the request ID
// 4. Recoverer: catches panics and returns 500 instead of crashing
func (s *Server) setupRoutes() error {
	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	// === Services ===
	// s.db implements every repository interface; each service only sees
	// the ones it needs.
	userService := service.NewUserService(s.db, s.publisher, s.logger)
	snippetService := service.NewSnippetService(s.db, s.db, s.publisher, s.logger)
	engagementService := service.NewEngagementService(s.db, s.db, s.db, s.db, s.logger)
	executionService := service.NewExecutionService(service.ExecutionDeps{
		Executions: s.db,
		Users:      s.db,
		Stars:      s.db,
		Snippets:   s.db,
		Policy:     s.policy,
		Languages:  s.languages,
		Sandbox:    s.sandbox,
	}, s.logger)

	// === Handlers ===
	healthHandler := handler.NewHealthHandler(s.db)
	snippetHandler := handler.NewSnippetHandler(snippetService, s.logger)
	engagementHandler := handler.NewEngagementHandler(engagementService, s.logger)
	executeHandler := handler.NewExecuteHandler(executionService, s.logger)
	userHandler := handler.NewUserHandler(userService, engagementService, s.languages, s.policy, s.logger)

	s.router.Get("/healthz", healthHandler.HandleHealth)

	// === Auth ===
	// Without a JWT secret there is no way to verify a caller, so every
	// authenticated route stays unregistered (404) instead of half-working.
	var tokens *auth.TokenService
	if s.config.JWTSecret != "" {
		var err error
		tokens, err = auth.NewTokenService(s.config.JWTSecret)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
	} else {
		s.logger.Warn("JWT_SECRET not set: authenticated routes are disabled")
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/languages", userHandler.HandleLanguages)
		r.Get("/snippets", snippetHandler.HandleList)
		r.Get("/snippets/{id}", snippetHandler.HandleGetByID)
		r.Get("/snippets/{id}/comments", engagementHandler.HandleListComments)
		r.Get("/users/{identity}/stats", executeHandler.HandleStats)

		if tokens == nil {
			r.Get("/snippets/{id}/stars", engagementHandler.HandleStarStatus)
			return
		}

		r.With(auth.OptionalAuth(tokens)).Get("/snippets/{id}/stars", engagementHandler.HandleStarStatus)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Post("/snippets", snippetHandler.HandleCreate)
			r.Delete("/snippets/{id}", snippetHandler.HandleDelete)
			r.Post("/snippets/{id}/comments", engagementHandler.HandleAddComment)
			r.Delete("/comments/{id}", engagementHandler.HandleDeleteComment)
			r.Post("/snippets/{id}/stars", engagementHandler.HandleToggleStar)

			r.Get("/me", userHandler.HandleMe)
			r.Get("/me/starred", userHandler.HandleStarred)
			r.Get("/me/executions", executeHandler.HandleList)

			r.Post("/executions", executeHandler.HandleRecord)
			r.Post("/execute", executeHandler.HandleExecute)
		})
	})

	// === Webhooks ===
	// Each provider route exists only when its signing secret is set, so an
	// unconfigured deployment can never accept unsigned deliveries.
	ingestor := webhook.NewIngestor(webhook.Secrets{
		Clerk:        s.config.ClerkWebhookSecret,
		LemonSqueezy: s.config.LemonSqueezyWebhookSecret,
	}, userService, userService, s.logger)
	webhookHandler := handler.NewWebhookHandler(ingestor, s.logger)

	if s.config.ClerkWebhookSecret != "" {
		s.router.Post("/webhooks/clerk", webhookHandler.HandleClerk)
	}
	if s.config.LemonSqueezyWebhookSecret != "" {
		s.router.Post("/webhooks/lemon-squeezy", webhookHandler.HandleLemonSqueezy)
	}

	// === GitHub sign-in ===
	if tokens != nil && s.config.GitHubClientID != "" {
		github := auth.NewGitHubProvider(s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.GitHubCallbackURL)
		authService := service.NewAuthService(userService, tokens, s.logger)
		authHandler := handler.NewAuthHandler(github, authService, s.logger)

		s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
		s.router.Post("/auth/logout", authHandler.HandleLogout)
	}

	return nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database (flushes WAL, releases file lock) and the event bus
func (s *Server) Start() error {
	defer s.Close()

	// WriteTimeout must outlast the slowest sandbox run.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to receive OS signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	// Channel to receive server errors
	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.Bool("sandbox", s.sandbox != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	// Block until we receive a signal or server error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give in-flight requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
