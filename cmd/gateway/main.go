package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/actionmesh/gateway/internal/actions/local"
	"github.com/actionmesh/gateway/internal/config"
	"github.com/actionmesh/gateway/internal/dispatch"
	"github.com/actionmesh/gateway/internal/route"
	"github.com/actionmesh/gateway/internal/server"
	"github.com/actionmesh/gateway/internal/storage/sqldb"
	"github.com/actionmesh/gateway/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to the gateway config file")
	flag.Parse()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Initialize OpenTelemetry
	shutdownTracer, err := telemetry.InitTracer("action-gateway", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// The route table is built once; misconfiguration fails here, not
	// per request.
	table, err := route.Build(cfg.Routes)
	if err != nil {
		log.Fatalf("Failed to build route table: %v", err)
	}

	var recorder dispatch.Recorder
	if cfg.Storage.Path != "" {
		store, err := sqldb.Open(cfg.Storage.Path)
		if err != nil {
			log.Fatalf("Failed to open request log: %v", err)
		}
		defer store.Close()
		recorder = store
	}

	// In-process runtime hosting the built-in actions. Remote action
	// runtimes plug in through the same actions.Runtime port.
	runtime := local.New()
	local.RegisterBuiltins(runtime)

	var assets http.Handler
	if cfg.Assets.Folder != "" {
		assets = http.FileServer(http.Dir(cfg.Assets.Folder))
	}

	handler := dispatch.New(dispatch.Config{
		Table:      table,
		Runtime:    runtime,
		AuthAction: cfg.Auth.Action,
		Assets:     assets,
		Logger:     logger,
		Recorder:   recorder,
	})

	srv := server.New(cfg.Server, handler, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Rebuild and swap the route table on config changes; a reload
	// that fails keeps the table already in effect.
	go func() {
		err := config.Watch(ctx, *configPath, logger, func(newCfg *config.Config) {
			newTable, err := route.Build(newCfg.Routes)
			if err != nil {
				logger.Error("failed to rebuild route table", slog.String("error", err.Error()))
				return
			}
			handler.SwapTable(newTable)
			logger.Info("route table reloaded", slog.Int("routes", newTable.Len()))
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("config watch failed", slog.String("error", err.Error()))
		}
	}()

	// A listener that fails to start leaves the gateway non-listening;
	// it is logged, never retried and never a panic.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.String("error", err.Error()))
		}
	}()

	logger.Info("gateway started",
		slog.Int("port", cfg.Server.Port),
		slog.Int("routes", table.Len()))

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping gateway")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("gateway shutdown complete")
}
