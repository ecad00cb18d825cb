// Package main is the entry point for the wallet engine API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/jmylchreest/wallet-engine/internal/auth"
	"github.com/jmylchreest/wallet-engine/internal/catalog"
	"github.com/jmylchreest/wallet-engine/internal/config"
	"github.com/jmylchreest/wallet-engine/internal/database"
	"github.com/jmylchreest/wallet-engine/internal/http/handlers"
	"github.com/jmylchreest/wallet-engine/internal/http/mw"
	"github.com/jmylchreest/wallet-engine/internal/http/routes"
	"github.com/jmylchreest/wallet-engine/internal/logging"
	"github.com/jmylchreest/wallet-engine/internal/metrics"
	"github.com/jmylchreest/wallet-engine/internal/repository"
	"github.com/jmylchreest/wallet-engine/internal/service"
	"github.com/jmylchreest/wallet-engine/internal/shutdown"
	"github.com/jmylchreest/wallet-engine/internal/version"
)

func main() {
	// Initialize logger with TTY detection, source paths, and format control
	logger := logging.SetDefault()

	v := version.Get()
	logger.Info("starting wallet-api",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
		"go_version", v.GoVersion,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.JWTSecretGenerated {
		logger.Warn("JWT_SECRET not set - using a generated secret, tokens will not survive a restart")
	}

	db, err := database.New(cfg.DatabaseURL, database.Options{
		TursoURL:          cfg.TursoURL,
		TursoAuthToken:    cfg.TursoAuthToken,
		BusyTimeoutMillis: int(cfg.DatabaseBusyTimeout.Milliseconds()),
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := database.MigrateWithLogger(db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	schemaVersion, err := database.GetLatestSchemaVersion(db)
	if err != nil {
		logger.Warn("failed to get schema version", "error", err)
	} else {
		logger.Info("database schema ready", "schema_version", schemaVersion)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cat, err := catalog.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to load product catalog", "error", err)
		os.Exit(1)
	}

	store := repository.NewStore(db)
	services := service.NewServices(cfg, store, cat, logger)

	if cfg.CleanupActive() {
		go services.Cleanup.RunScheduledCleanup(ctx, cfg.IdempotencyRetention, cfg.CleanupInterval)
		logger.Info("cleanup service started",
			"retention", cfg.IdempotencyRetention.String(),
			"interval", cfg.CleanupInterval.String(),
		)
	}

	verifier := auth.NewVerifier(cfg.JWTSigningKey, cfg.JWTIssuer)
	tracker := shutdown.NewTracker(shutdown.Config{
		IdleTimeout:  cfg.IdleTimeout,
		ExcludePaths: []string{"/healthz", "/readyz", "/metrics"},
		Busy:         services.Cleanup.Running,
		Logger:       logger,
	})

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(tracker.Middleware)
	router.Use(middleware.Timeout(cfg.RequestTimeout))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Project"},
		ExposedHeaders:   []string{"X-Request-ID", "X-API-Version", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Use(middleware.RequestSize(1 * 1024 * 1024))
	router.Use(mw.APIVersion(v))
	router.Use(mw.OptionalAuth(verifier))

	rateLimits := mw.DefaultRateLimitConfig(cfg.RateLimitService, cfg.RateLimitUser)
	router.Use(mw.RateLimitByRole(rateLimits))

	router.With(mw.RequireRoles(auth.RoleService, auth.RolePrivileged, auth.RoleAdmin)).
		Handle("/metrics", metrics.Handler())

	api := humachi.New(router, routes.NewHumaConfig(cfg.BaseURL))
	api.UseMiddleware(mw.HumaAuth(api, mw.HumaAuthConfig{Verifier: verifier}))

	readyz := handlers.NewReadyzHandler(db)
	routes.Register(api, &routes.Handlers{
		HealthCheck: handlers.HealthCheck,
		Livez:       handlers.Livez,
		Readyz:      readyz.Readyz,
		Accounting:  handlers.NewAccountingHandler(services.Accounting),
		Wallets:     handlers.NewWalletHandler(services.Wallets),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	tracker.Start()
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		select {
		case sig := <-sigChan:
			logger.Info("shutting down server", "signal", sig.String())
		case <-tracker.Idle():
			logger.Info("shutting down idle server")
		}

		tracker.Stop()
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
		if err := tracker.Drain(shutdownCtx); err != nil {
			logger.Error("requests still in flight at shutdown", "in_flight", tracker.InFlight())
		}
	}()

	logger.Info("starting server", "port", cfg.Port, "base_url", cfg.BaseURL)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	<-stopped
	logger.Info("server stopped")
}
