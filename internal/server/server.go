// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer — it connects handlers, middleware, and routes.
// Think of it as the control centre that decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// WHY SEPARATE FROM main.go?
// Keeping server setup in its own package makes it:
// - Testable (we can create a test server without running main)
// - Reusable (multiple entry points could use the same server config)
// - Clean (main.go stays minimal — just "load config, start the server")
//
// This is the "composition root" pattern — all dependencies are wired in
// one place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
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

	"github.com/waterette/waterette/internal/auth"
	"github.com/waterette/waterette/internal/handler"
	"github.com/waterette/waterette/internal/middleware"
	"github.com/waterette/waterette/internal/repository"
	"github.com/waterette/waterette/internal/repository/memory"
	sqliteRepo "github.com/waterette/waterette/internal/repository/sqlite"
	"github.com/waterette/waterette/internal/scanner"
	"github.com/waterette/waterette/internal/service"
)

// Config holds server configuration. It mirrors config.Config but keeps
// this package decoupled from how configuration is loaded.
type Config struct {
	Port                 string
	DBPath               string // empty selects the in-memory store
	JWTSecret            string
	GoogleClientID       string
	GoogleClientSecret   string
	GoogleCallbackURL    string
	FrontendURL          string
	DeleteOrphanedEvents bool
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// When backed by SQLite the server owns the database connection and closes
// it on shutdown to flush the WAL and release the file lock. With the
// in-memory store there is nothing to close.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	closer io.Closer // nil for the in-memory store
}

// New creates a new Server with the given config.
//
// DEPENDENCY WIRING:
// This is where the entire dependency chain is assembled:
//  1. Pick the storage backend (SQLite file, or in-memory when DBPath is empty)
//  2. Create the services over the repository interfaces
//  3. Create the handlers over the services
//  4. Wire handlers to routes
//
// Each layer only receives what it needs: services get repository
// interfaces, handlers get services, and nothing below the repository
// knows which backend is running.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	var (
		events repository.EventRepository
		users  repository.UserRepository
		closer io.Closer
	)
	if cfg.DBPath == "" {
		store := memory.New()
		events = store
		users = store.Users()
		logger.Warn("no database path configured, using in-memory storage")
	} else {
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		events = db
		users = db.Users()
		closer = db
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		closer: closer,
	}

	if err := s.setupRoutes(events, users); err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	POST /auth/register          → create an email/password account
//	POST /auth/login             → sign in with email/password
//	POST /auth/google            → sign in with a Google ID token
//	GET  /auth/google/login      → start the Google code flow
//	GET  /auth/google/callback   → finish the Google code flow
//	POST /auth/logout            → clear the session cookie
//	GET  /auth/me                → current user + joined event IDs  (auth)
//	GET  /events                 → event feed (?q=, ?filter=)       (optional auth)
//	POST /events                 → create an event                  (auth)
//	POST /events/join            → join an event                    (auth)
//	POST /events/leave           → leave an event                   (auth)
//	GET  /events/{id}            → event detail with attendees
//	GET  /events/{id}/attendees  → guest list                       (auth, host)
//	POST /events/{id}/checkin    → check a guest in by ID           (auth, host)
//	POST /scan                   → decide a QR scan                 (auth, host)
//
// Chi matches static segments before parameters, so /events/join and
// /events/leave never collide with /events/{id}.
//
// MIDDLEWARE ORDER MATTERS:
// Middleware executes in the order it's added. Our order:
// 1. RequestID — assigns unique ID to each request (for tracing)
// 2. RealIP — extracts real client IP from proxy headers
// 3. Recoverer — catches panics and returns 500 instead of crashing
// 4. Logger — logs each request with timing info
func (s *Server) setupRoutes(events repository.EventRepository, users repository.UserRepository) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()
	google := auth.NewGoogleProvider(
		s.config.GoogleClientID,
		s.config.GoogleClientSecret,
		s.config.GoogleCallbackURL,
	)

	authService := service.NewAuthService(users, events, tokens, passwords, s.logger)
	eventService := service.NewEventService(events, s.logger)
	memberService := service.NewMembershipService(events, service.Policy{
		DeleteOrphanedEvents: s.config.DeleteOrphanedEvents,
	}, s.logger)
	validator := scanner.NewValidator(memberService)

	authHandler := handler.NewAuthHandler(authService, google, s.config.FrontendURL, s.logger)
	eventHandler := handler.NewEventHandler(eventService, memberService, authService, validator, s.logger)

	requireAuth := auth.RequireAuth(tokens)
	optionalAuth := auth.OptionalAuth(tokens)

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/google", authHandler.HandleGoogle)
		r.Get("/google/login", authHandler.HandleGoogleLogin)
		r.Get("/google/callback", authHandler.HandleGoogleCallback)
		r.Post("/logout", authHandler.HandleLogout)
		r.With(requireAuth).Get("/me", authHandler.HandleMe)
	})

	s.router.Route("/events", func(r chi.Router) {
		r.With(optionalAuth).Get("/", eventHandler.HandleList)
		r.With(optionalAuth).Get("/{id}", eventHandler.HandleGet)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", eventHandler.HandleCreate)
			r.Post("/join", eventHandler.HandleJoin)
			r.Post("/leave", eventHandler.HandleLeave)
			r.Get("/{id}/attendees", eventHandler.HandleAttendees)
			r.Post("/{id}/checkin", eventHandler.HandleCheckIn)
		})
	})

	s.router.With(requireAuth).Post("/scan", eventHandler.HandleScan)

	return nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database connection (flushes WAL, releases file lock)
//
// If we skip step 3, the database file might be left in an inconsistent
// state. The deferred close ensures it happens even if something panics.
func (s *Server) Start() error {
	defer func() {
		if s.closer != nil {
			s.closer.Close()
		}
	}()

	srv := &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to receive OS signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErrors := make(chan error, 1)

	// Start the server in a goroutine (so it doesn't block)
	go func() {
		s.logger.Info("server starting",
			slog.String("port", s.config.Port),
			slog.String("url", "http://localhost:"+s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	// Block until we receive a signal or server error
	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
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
