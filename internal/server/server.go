// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → Server.New():
//	  sqlite.DB ─┬→ PostService ─┬→ PageHandler, PostHandler, APIHandler
//	             ├→ AuthService ─┴→ AuthHandler
//	TokenService ┴→ auth middleware
//
// This is the "composition root": every dependency is built here and nowhere else.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/markdown-blog/internal/auth"
	"github.com/sakif/markdown-blog/internal/config"
	"github.com/sakif/markdown-blog/internal/handler"
	"github.com/sakif/markdown-blog/internal/markdown"
	"github.com/sakif/markdown-blog/internal/middleware"
	sqliteRepo "github.com/sakif/markdown-blog/internal/repository/sqlite"
	"github.com/sakif/markdown-blog/internal/service"
	"github.com/sakif/markdown-blog/internal/validation"
	"github.com/sakif/markdown-blog/web"
)

// shutdownTimeout is how long in-flight requests get after SIGINT/SIGTERM.
const shutdownTimeout = 30 * time.Second

// sweepInterval is how often idle login-limiter buckets are dropped.
const sweepInterval = 5 * time.Minute

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. It is closed after the HTTP server
// has drained, so no request ever sees a closed pool.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	limiter *middleware.KeyedLimiter
}

// New opens the database and wires every layer.
//
// IMPORT ALIAS:
// repository/sqlite is imported as `sqliteRepo` so it is not confused with the
// modernc sqlite driver package.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		limiter: middleware.NewKeyedLimiter(cfg.LoginRatePerMinute),
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database. Start calls it on its own way out.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET       /                 → feed (search, tag, page)
// GET       /post/{id}        → single post
// GET       /about            → about page
// GET/POST  /create           → new post            [auth]
// GET/POST  /edit/{id}        → edit post           [auth]
// POST      /delete/{id}      → delete post         [auth]
// GET/POST  /register         → sign up
// GET/POST  /login            → log in              [POST rate limited]
// GET/POST  /logout           → log out
// GET       /static/*         → embedded CSS
// GET       /api/posts        → feed page (JSON)    [CORS]
// GET       /api/posts/{id}   → single post (JSON)  [CORS]
// GET       /api/tags         → all tags (JSON)     [CORS]
// GET       /api/me           → current user (JSON) [CORS, auth]
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID → every log line of a request shares an id
//  2. RealIP → the rate limiter and the logs see the client, not the proxy
//  3. Logger → wraps Recoverer so a recovered panic is logged as a 500
//  4. Recoverer
//  5. OptionalAuth → the Actor is on the context for every page
func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.SessionTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	postService := service.NewPostService(s.db, s.db, markdown.New(), s.logger)
	authService := service.NewAuthService(s.db, tokens, passwords, validation.New(), s.logger)

	tmpl, err := handler.NewTemplates(web.Templates(), s.logger)
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	pages := handler.NewPageHandler(postService, tmpl, s.logger)
	posts := handler.NewPostHandler(postService, tmpl, s.logger)
	authHandler := handler.NewAuthHandler(authService, tokens.TTL(), s.config.IsProduction(), tmpl, s.logger)
	api := handler.NewAPIHandler(postService, authService, s.logger)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(auth.OptionalAuth(tokens))

	// === Static Files ===
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(web.Static())))

	// === Pages ===
	s.router.Get("/", pages.HandleIndex)
	s.router.Get("/post/{id}", pages.HandlePost)
	s.router.Get("/about", pages.HandleAbout)

	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))
		r.Get("/create", posts.HandleNew)
		r.Post("/create", posts.HandleCreate)
		r.Get("/edit/{id}", posts.HandleEdit)
		r.Post("/edit/{id}", posts.HandleUpdate)
		r.Post("/delete/{id}", posts.HandleDelete)
	})

	s.router.Get("/register", authHandler.HandleRegisterPage)
	s.router.Post("/register", authHandler.HandleRegister)
	s.router.Get("/login", authHandler.HandleLoginPage)
	s.router.With(middleware.RateLimit(s.limiter, authHandler.HandleLoginLimited)).
		Post("/login", authHandler.HandleLogin)
	s.router.Get("/logout", authHandler.HandleLogout)
	s.router.Post("/logout", authHandler.HandleLogout)

	// === API Routes ===
	s.router.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.config.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))

		r.Get("/posts", api.HandleListPosts)
		r.Get("/posts/{id}", api.HandleGetPost)
		r.Get("/tags", api.HandleListTags)
		r.With(auth.RequireAPIAuth(tokens)).Get("/me", api.HandleMe)
	})

	return nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go s.sweepLimiter(sweepCtx)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.String("env", s.config.Env),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// sweepLimiter keeps the login limiter from growing with every IP ever seen.
func (s *Server) sweepLimiter(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.limiter.Sweep()
		}
	}
}
