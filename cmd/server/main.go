package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"conversation-analytics/backend/pkg/config"
	"conversation-analytics/backend/pkg/di"
	"conversation-analytics/backend/pkg/health"
	"conversation-analytics/backend/pkg/logger"
	"conversation-analytics/backend/pkg/router"
	"conversation-analytics/backend/pkg/secrets"
	"conversation-analytics/backend/shared/observability"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.New()

	// Initialize structured logger
	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"

	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("Starting application", "version", os.Getenv("APP_VERSION"), "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Secrets from Vault override the environment when enabled
	if err := secrets.Init(log); err != nil {
		log.LogError(err, "Failed to initialize secrets manager")
		os.Exit(1)
	}
	secrets.Resolve(ctx, map[string]*string{
		"jwt_secret":  &cfg.JWT.Secret,
		"db_password": &cfg.Database.Password,
	})
	if err := cfg.Validate(); err != nil {
		log.LogError(err, "Invalid configuration", "env", cfg.Server.Env)
		os.Exit(1)
	}

	storage, err := di.Open(ctx, cfg, log)
	if err != nil {
		log.LogError(err, "Failed to connect to database")
		os.Exit(1)
	}

	container, err := di.New(cfg, log, storage)
	if err != nil {
		log.LogError(err, "Failed to initialize dependency container")
		os.Exit(1)
	}
	defer container.Close()

	providers, err := observability.Setup(observability.Options{
		ServiceName:  "conversation-analytics",
		TracesStdout: cfg.Observability.TracesStdout,
		Registerer:   container.Registry,
	})
	if err != nil {
		log.LogError(err, "Failed to initialize telemetry")
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.LogError(err, "Failed to flush telemetry")
		}
	}()

	container.Health.Start(ctx)
	if cfg.Server.GRPCHealthPort != "" {
		go func() {
			if err := health.ServeGRPC(ctx, ":"+cfg.Server.GRPCHealthPort, container.Health, log); err != nil {
				log.LogError(err, "gRPC health server failed")
			}
		}()
	}

	r := router.New(container)
	// Validation must be installed before routes are registered
	if cfg.Observability.OpenAPISchemaPath != "" {
		r.AddOpenAPIValidation(cfg.Observability.OpenAPISchemaPath)
	}
	r.SetupRoutes()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r.Engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		IdleTimeout:       2 * cfg.Server.Timeout,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.LogError(err, "Server failed to start")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}

	log.Info("Server exited gracefully")
}
