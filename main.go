package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stock-dashboard/config"
	"stock-dashboard/internal/api"
	"stock-dashboard/internal/app"
	"stock-dashboard/observability"
	"stock-dashboard/services"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	observability.InitLoggerWithLevel(cfg.Log.Format == "json", observability.ParseLevel(cfg.Log.Level))
	observability.InitMetrics()
	if err := observability.InitTracing(cfg.Tracing.Enabled, version); err != nil {
		observability.Warn("tracing disabled", "error", err)
	}

	breakers := app.NewBreakers(cfg)
	services.SetGlobalRegistry(breakers)

	application, err := app.Build(cfg, breakers)
	if err != nil {
		observability.Fatal("failed to initialize dashboard", "error", err)
	}

	ctx := context.Background()
	application.Startup(ctx)

	handler := api.NewHandler(application, cfg)
	router := api.NewRouter(handler, cfg)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		observability.Info("starting stock dashboard",
			"addr", cfg.HTTP.Addr,
			"provider", cfg.MarketData.Provider,
			"symbols", cfg.Dashboard.Symbols,
			"version", version,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			observability.Fatal("server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	observability.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		observability.Error("server forced to shutdown", "error", err)
	}
	if err := application.Shutdown(shutdownCtx); err != nil {
		observability.Error("refresh loop did not stop cleanly", "error", err)
	}
	if err := observability.ShutdownTracing(shutdownCtx); err != nil {
		observability.Error("failed to flush traces", "error", err)
	}
	observability.Info("stock dashboard stopped")
}
