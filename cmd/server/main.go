package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/imapex/tacbot-go/internal/caseapi"
	"github.com/imapex/tacbot-go/internal/config"
	"github.com/imapex/tacbot-go/internal/logger"
	"github.com/imapex/tacbot-go/internal/metrics"
	"github.com/imapex/tacbot-go/internal/sentry"
	"github.com/imapex/tacbot-go/internal/webhook"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel)
	log.WithField("app_name", cfg.BotAppName).Info("Starting TAC bot server")

	// Initialize Sentry (no-op without a DSN)
	if err := sentry.Initialize(sentry.Config{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
	}); err != nil {
		log.WithError(err).Warn("Failed to initialize Sentry")
	}
	defer sentry.Flush(2 * time.Second)

	// Create Prometheus registry with runtime collectors
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := metrics.New(registry)
	log.Info("Metrics initialized")

	// Case API client; the OAuth2 token exchange happens lazily on the
	// first case lookup.
	cases := caseapi.NewClient(caseapi.Config{
		BaseURL:      cfg.CaseAPIBaseURL,
		TokenURL:     cfg.CaseAPITokenURL,
		ClientID:     cfg.CaseAPIClientID,
		ClientSecret: cfg.CaseAPIClientSecret,
		Timeout:      cfg.CaseAPITimeout,
		Recorder:     m,
	})

	application := newApp(cfg, cases, m, log)
	if creds := cfg.Credentials(); creds != nil {
		startupCtx, cancel := context.WithTimeout(context.Background(), cfg.SparkAPITimeout)
		application.applyCredentials(startupCtx, creds)
		cancel()
	} else {
		log.Warn("Spark credentials not set; bot is idle until POST /config")
	}

	// Webhook processing spans one Spark fetch, one case lookup and one
	// Spark send.
	webhookTimeout := cfg.SparkAPITimeout + cfg.CaseAPITimeout
	webhookHandler := webhook.NewHandler(application.currentRuntime, m, log, webhookTimeout)

	// Set Gin mode based on log level
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware(log))
	if sentry.IsEnabled() {
		router.Use(sentryMiddleware())
	}

	setupRoutes(router, application, webhookHandler, registry)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: webhookTimeout + 5*time.Second,
		IdleTimeout:  90 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithField("port", cfg.Port).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	// In-flight webhook events finish with their requests; Shutdown
	// waits for them.
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server stopped")
}
