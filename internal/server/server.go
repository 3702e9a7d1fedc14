// Package server is the composition root: it wires the database, vault,
// remote client factory, services, and handlers together and owns the
// HTTP lifecycle.
//
// DEPENDENCY FLOW:
//
//	sqlite.DB ─┬→ Vault ─┬→ AuthService ──→ AuthHandler
//	           │         ├→ RepoService ──→ RepoHandler
//	           │         └→ EditService ──→ SiteHandler
//	           └ implements the repository interfaces directly
//
// Handlers never touch the database; services never touch HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ByteWisdomTech/docs/internal/auth"
	"github.com/ByteWisdomTech/docs/internal/detector"
	"github.com/ByteWisdomTech/docs/internal/github"
	"github.com/ByteWisdomTech/docs/internal/handler"
	"github.com/ByteWisdomTech/docs/internal/metrics"
	"github.com/ByteWisdomTech/docs/internal/middleware"
	"github.com/ByteWisdomTech/docs/internal/mirror"
	sqliteRepo "github.com/ByteWisdomTech/docs/internal/repository/sqlite"
	"github.com/ByteWisdomTech/docs/internal/service"
	"github.com/ByteWisdomTech/docs/internal/vault"
)

// Config holds everything the server needs, read once in main and passed
// down as a value.
type Config struct {
	Port    int
	DBPath  string
	DataDir string // root directory for site mirrors

	JWTSecret          string
	TokenEncryptionKey string // required; the vault refuses to start without it

	// GitHub OAuth app credentials. Empty ClientID/ClientSecret puts the
	// server in degraded mode: it runs, but the auth routes answer 503.
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string

	// GitHubAPIURL overrides the API root (GitHub Enterprise, tests).
	// Empty means api.github.com.
	GitHubAPIURL string

	MirrorMaxConcurrent int // parallel file downloads per mirror run
	ProbeMaxConcurrent  int // parallel repos probed by the detector

	// RequestsPerMinute caps inbound requests per client address.
	// <= 0 falls back to the limiter's default.
	RequestsPerMinute int
}

// Server owns the router and the resources that must be released on
// shutdown.
type Server struct {
	router  *chi.Mux
	config  Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	limiter *middleware.RateLimiter
}

// New assembles the full dependency graph. Construction fails fast on a
// missing encryption key or JWT secret — a server that cannot protect
// credentials should not come up at all.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes wires middleware, services, handlers, and routes.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// After RealIP so the limiter keys on the real client address, not
	// the proxy's.
	s.limiter = middleware.NewRateLimiter(s.logger, s.config.RequestsPerMinute)
	s.router.Use(s.limiter.Middleware())

	collector := metrics.NewCollector()

	v, err := vault.New(s.config.TokenEncryptionKey, s.db)
	if err != nil {
		return fmt.Errorf("creating vault: %w", err)
	}

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	// Degraded mode: without OAuth app credentials the provider stays
	// nil and the auth handler answers 503 on the login routes. Users
	// with live sessions and vaulted tokens keep working.
	var provider *auth.GitHubProvider
	if s.config.GitHubClientID != "" && s.config.GitHubClientSecret != "" {
		provider = auth.NewGitHubProvider(
			s.config.GitHubClientID,
			s.config.GitHubClientSecret,
			s.config.GitHubCallbackURL,
		)
	} else {
		s.logger.Warn("GitHub OAuth credentials not configured; sign-in is unavailable")
	}

	// One client per operation, bound to the token the vault hands out.
	clientFactory := func(token string) github.ContentClient {
		opts := []github.Option{github.WithMetrics(collector)}
		if s.config.GitHubAPIURL != "" {
			opts = append(opts, github.WithBaseURL(s.config.GitHubAPIURL))
		}
		return github.NewClient(token, opts...)
	}

	det := detector.New(s.logger, s.config.ProbeMaxConcurrent)
	eng := mirror.NewEngine(s.logger, collector, s.config.MirrorMaxConcurrent)

	authSvc := service.NewAuthService(s.db, tokens, v, s.logger)
	repoSvc := service.NewRepoService(s.db, v, det, eng, clientFactory, s.config.DataDir, s.logger)
	editSvc := service.NewEditService(s.db, v, clientFactory, collector, s.logger)

	authHandler := handler.NewAuthHandler(provider, authSvc, s.logger)
	repoHandler := handler.NewRepoHandler(repoSvc, s.logger)
	siteHandler := handler.NewSiteHandler(repoSvc, editSvc, s.logger)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	s.router.Method(http.MethodGet, "/metrics", collector.Handler())

	s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
	s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
	s.router.Post("/auth/logout", authHandler.HandleLogout)
	s.router.With(auth.OptionalAuth(tokens)).Get("/auth/session", authHandler.HandleSession)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		r.Get("/me", authHandler.HandleMe)
		r.Get("/repos", repoHandler.HandleList)
		r.Post("/repos/import", repoHandler.HandleImport)
		r.Get("/sites", siteHandler.HandleListSites)
		r.Get("/sites/{owner}/{repo}/file", siteHandler.HandleFetchFile)
		r.Post("/sites/{owner}/{repo}/edit", siteHandler.HandleSubmitEdit)
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, drain in-flight requests for
// up to 30 seconds, close the database (flushes the WAL).
func (s *Server) Start() error {
	defer s.db.Close()
	defer s.limiter.Stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.String("dataDir", s.config.DataDir),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
