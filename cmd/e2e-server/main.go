// Package main provides a standalone HTTP server for E2E testing.
// This server runs the same routes and handlers as the dashboard but with
// deterministic quote and news sources, making it suitable for Playwright tests.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stock-dashboard/config"
	"stock-dashboard/internal/api"
	"stock-dashboard/internal/app"
	"stock-dashboard/internal/settings"
	"stock-dashboard/observability"
	"stock-dashboard/refresh"
)

func main() {
	// Initialize logger in development mode for tests
	observability.InitLogger(false)
	observability.InitMetrics()

	port := os.Getenv("E2E_SERVER_PORT")
	if port == "" {
		port = "9090"
	}

	cfg := config.NewTestConfig()
	cfg.HTTP.Addr = ":" + port
	if err := cfg.Validate(); err != nil {
		observability.Fatal("invalid e2e config", "error", err)
	}

	params, err := cfg.DashboardParameters()
	if err != nil {
		observability.Fatal("invalid dashboard parameters", "error", err)
	}
	session, err := refresh.NewSession(params)
	if err != nil {
		observability.Fatal("invalid dashboard parameters", "error", err)
	}

	loop := refresh.NewLoop(session, NewMockQuoteService(), NewMockNewsService(), app.LoopOptions(cfg))

	store := settings.NewStore()
	validator := settings.NewValidator(cfg.NewsAPI.BaseURL, cfg.AlphaVantage.BaseURL)
	breakers := app.NewBreakers(cfg)

	ctx := context.Background()
	application := app.New(cfg, loop, store, validator, breakers)
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
		observability.Info("starting E2E test server", "port", port, "url", fmt.Sprintf("http://localhost:%s", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			observability.Fatal("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	observability.Info("shutting down E2E test server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		observability.Fatal("server forced to shutdown", "error", err)
	}

	application.Shutdown(shutdownCtx)
	observability.Info("E2E test server stopped")
}
