package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RiddlenBaba/Riddlen-sub000/internal/app"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/config"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/observability"
)

const serviceName = "riddlen-frames-api"

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to the config file (default: config.yaml in ./config or .)")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Println("Loading configuration...")
	cfg := config.MustLoad(*configPath)

	log.Println("Building services...")
	a, err := app.New(ctx, cfg, serviceName, version)
	if err != nil {
		log.Fatalf("Failed to build services: %v", err)
	}
	logger := a.Logger

	warm(ctx, a)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           a.Server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.LogError(ctx, "HTTP server error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	// SIGHUP drops every cached dataset and refills it, e.g. after a new
	// riddle is published
	for running := true; running; {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				logger.Info("SIGHUP received, refreshing cached datasets")
				a.Service.InvalidateAll()
				warm(ctx, a)
				continue
			}
			logger.Info("shutdown signal received, gracefully stopping...")
			running = false
		case <-ctx.Done():
			running = false
		}
	}

	shutdown(server, a, logger)
	logger.Info("application stopped")
}

// warm fills the shared datasets; failures are retried on first request
func warm(ctx context.Context, a *app.App) {
	results := a.Warmup(ctx)
	if results.HasErrors() {
		a.Logger.LogWarn(ctx, "cache warmup incomplete",
			"providers", len(results.Results),
			"errors", results.Errors,
			"duration_ms", results.TotalTime.Milliseconds(),
		)
		return
	}
	a.Logger.Info("cache warmup complete",
		"providers", len(results.Results),
		"duration_ms", results.TotalTime.Milliseconds(),
	)
}

func shutdown(server *http.Server, a *app.App, logger *observability.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.LogError(ctx, "HTTP server shutdown failed", err)
	}
	a.Close(ctx)
}
