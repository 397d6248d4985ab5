package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kungukcm/Hospital-Booking-System/cmd/mainconfig"
	"github.com/kungukcm/Hospital-Booking-System/internal/api/router"
	"github.com/kungukcm/Hospital-Booking-System/internal/app/bootstrap"
	appconfig "github.com/kungukcm/Hospital-Booking-System/internal/config"
	"github.com/kungukcm/Hospital-Booking-System/internal/conversation"
	"github.com/kungukcm/Hospital-Booking-System/internal/http/handlers"
	"github.com/kungukcm/Hospital-Booking-System/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting hospital booking API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"hospital", cfg.HospitalName,
	)

	ctx := context.Background()
	var awsCfg *aws.Config
	if mainconfig.NeedsAWS(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		awsCfg = &loaded
	}

	metricsHandler, registry := setupMetrics()
	app, err := bootstrap.Build(ctx, cfg, bootstrap.Deps{AWS: awsCfg, Registerer: registry}, logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to release resources", "error", err)
		}
	}()

	srv := newServer(cfg, buildRouter(cfg, app, metricsHandler, logger))

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "chat_enabled", app.Conversation != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics returns a private registry with Go runtime collectors and the
// handler that exposes it.
func setupMetrics() (http.Handler, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), registry
}

func buildRouter(cfg *appconfig.Config, app *bootstrap.App, metricsHandler http.Handler, logger *logging.Logger) http.Handler {
	routerCfg := &router.Config{
		Logger:             logger,
		FormsHandler:       handlers.NewFormsHandler(app.Executor, logger),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	}
	if app.Conversation != nil {
		routerCfg.ConversationHandler = conversation.NewHandler(app.Conversation, logger)
	}
	return router.New(routerCfg)
}

// newServer sizes the write timeout to outlast a full chat turn.
func newServer(cfg *appconfig.Config, handler http.Handler) *http.Server {
	writeTimeout := 15 * time.Second
	if cfg.TurnTimeout+5*time.Second > writeTimeout {
		writeTimeout = cfg.TurnTimeout + 5*time.Second
	}
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}
}
