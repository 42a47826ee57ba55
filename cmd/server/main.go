package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blakestevenson/watchlog/internal/auth"
	"github.com/blakestevenson/watchlog/internal/catalogue"
	"github.com/blakestevenson/watchlog/internal/config"
	"github.com/blakestevenson/watchlog/internal/enrich"
	httpserver "github.com/blakestevenson/watchlog/internal/http"
	"github.com/blakestevenson/watchlog/internal/logging"
	"github.com/blakestevenson/watchlog/internal/plugins"
	"github.com/blakestevenson/watchlog/internal/scheduler"
	"github.com/blakestevenson/watchlog/internal/storage"
	"github.com/blakestevenson/watchlog/internal/tmdb"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := logging.New(logging.Options{
		Development: cfg.IsDevelopment(),
		File:        cfg.LogFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting watchlog server",
		zap.String("environment", cfg.Environment),
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("store", cfg.StoreBackend),
	)

	ctx := context.Background()

	// Initialize catalogue storage
	backend, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open catalogue store", zap.Error(err))
	}
	defer backend.Close()

	catalogueService := catalogue.NewService(backend.Store, logger)

	// Initialize metadata provider
	var provider tmdb.Provider = tmdb.NewClient(tmdb.Config{
		APIKey:            cfg.TMDBAPIKey,
		RequestsPerSecond: cfg.TMDBRateLimit,
	}, logger)
	if cfg.MetadataPluginPath != "" {
		loaded, err := plugins.Load(cfg.MetadataPluginPath, logger)
		if err != nil {
			logger.Fatal("Failed to load metadata plugin", zap.Error(err))
		}
		defer loaded.Close()
		provider = loaded
	} else if cfg.TMDBAPIKey == "" {
		logger.Warn("TMDB_API_KEY is not set, metadata lookups will fail")
	}

	enricher := enrich.NewService(catalogueService, provider, logger)

	// Initialize auth service
	jwtManager, err := auth.NewJWTManager(cfg.JWTSecret, 0)
	if err != nil {
		logger.Fatal("Failed to initialize JWT manager", zap.Error(err))
	}
	authService := auth.NewService(cfg.AdminPasswordHash, jwtManager, logger)
	if !authService.Enabled() {
		logger.Warn("ADMIN_PASSWORD_HASH is not set, write endpoints are open")
	}

	// Background enrichment
	if cfg.EnrichSchedule != "" {
		sched, err := scheduler.New(logger)
		if err != nil {
			logger.Fatal("Failed to create scheduler", zap.Error(err))
		}
		err = sched.RegisterTask(scheduler.TaskConfig{
			ID:   "enrich",
			Name: "Enrich catalogue metadata",
			Cron: cfg.EnrichSchedule,
			Func: func(ctx context.Context) error {
				report, err := enricher.Run(ctx, enrich.Options{
					Mode:  enrich.ModeBatch,
					Delay: cfg.EnrichDelay,
				})
				if report != nil {
					logger.Info("Scheduled enrichment finished",
						zap.Int("candidates", report.Candidates),
						zap.Int("enriched", report.Enriched),
						zap.Int("failed", report.Failed),
					)
				}
				return err
			},
		})
		if err != nil {
			logger.Fatal("Failed to register enrichment task", zap.Error(err))
		}
		sched.Start()
		defer func() {
			if err := sched.Stop(); err != nil {
				logger.Error("Failed to stop scheduler", zap.Error(err))
			}
		}()
	}

	// Initialize HTTP router
	router := httpserver.NewRouter(httpserver.Services{
		Catalogue: catalogueService,
		Auth:      authService,
		Provider:  provider,
		Enricher:  enricher,
	}, httpserver.Options{
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		MaxBodyBytes:      cfg.MaxBodyBytes,
	}, logger)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("address", addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until a signal or error is received
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", zap.Error(err))
		}

	case sig := <-shutdown:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Gracefully shutdown the server
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", zap.Error(err))
			if err := server.Close(); err != nil {
				logger.Error("Failed to close server", zap.Error(err))
			}
		}

		logger.Info("Server stopped")
	}
}
