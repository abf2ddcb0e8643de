package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/BradenHooton/bulwark/internal/background"
	"github.com/BradenHooton/bulwark/internal/config"
	"github.com/BradenHooton/bulwark/internal/handlers"
	middlewareCustom "github.com/BradenHooton/bulwark/internal/middleware"
	"github.com/BradenHooton/bulwark/internal/protection"
	"github.com/BradenHooton/bulwark/internal/routes"
	"github.com/BradenHooton/bulwark/pkg/httpx"
	pkglogger "github.com/BradenHooton/bulwark/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Audit logging + event emission
	auditLogger := pkglogger.NewAuditLogger(logger)
	emitter := protection.NewAuditEmitter(auditLogger)

	// Protection core
	guard, err := protection.NewGuard(protection.Config{
		Salt:                      cfg.Protection.Salt,
		RateWindow:                cfg.Protection.RateWindow,
		RateMaxAttempts:           cfg.Protection.RateMaxAttempts,
		BanBaseDuration:           cfg.Protection.BanBaseDuration,
		LockWindow:                cfg.Protection.LockWindow,
		LockMaxFailures:           cfg.Protection.LockMaxFailures,
		LockDuration:              cfg.Protection.LockDuration,
		EscalationWindow:          cfg.Protection.EscalationWindow,
		EscalationBanThreshold:    cfg.Protection.EscalationBanThreshold,
		EscalationMultiplier:      cfg.Protection.EscalationMultiplier,
		SharedIPUsernameThreshold: cfg.Protection.SharedIPUsernameThreshold,
		SharedIPMultiplier:        cfg.Protection.SharedIPMultiplier,
		MaxLockoutsPerIPPerHour:   cfg.Protection.MaxLockoutsPerIPPerHour,
		Allowlist:                 cfg.Protection.Allowlist,
		MaxTrackedKeys:            cfg.Protection.MaxTrackedKeys,
	}, emitter, logger)
	if err != nil {
		logger.Error("failed to initialize protection core", slog.Any("error", err))
		os.Exit(1)
	}

	// Background sweep
	sweepManager := background.NewSweepManager(guard, logger, cfg.Protection.SweepInterval)

	// Timing delay for auth responses
	timingDelay := handlers.NewTimingDelay(handlers.TimingConfig{
		BaseDelayMs:   cfg.Admin.TimingBaseDelayMs,
		RandomDelayMs: cfg.Admin.TimingRandomDelayMs,
	})

	ipConfig := &httpx.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	// The credential verifier is an external collaborator; the service wires
	// in whatever backend the deployment provides.
	verifier := newCredentialVerifier()

	// Handlers
	authHandler := handlers.NewAuthHandler(guard, verifier, timingDelay, auditLogger, ipConfig, logger)
	adminHandler := handlers.NewAdminHandler(guard, logger)

	// Router
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(30 * time.Second))

	routes.RegisterRoutes(
		router,
		guard,
		authHandler,
		adminHandler,
		cfg.Admin.JWTSecret,
		middlewareCustom.RateLimitConfig{RequestsPerMinute: cfg.Admin.RequestsPerMinute},
		ipConfig,
	)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start sweep task
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()

	go sweepManager.Start(sweepCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	sweepCancel()
	sweepManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
