package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/watchlist/app/api"
	"github.com/lysyi3m/watchlist/app/catalog"
	"github.com/lysyi3m/watchlist/app/cfg"
	"github.com/lysyi3m/watchlist/app/database"
	"github.com/lysyi3m/watchlist/app/ratelimit"
	"github.com/lysyi3m/watchlist/app/realtime"
	"github.com/lysyi3m/watchlist/app/seed"
	"github.com/lysyi3m/watchlist/app/tasks"
	"github.com/lysyi3m/watchlist/app/watchlist"
)

func main() {
	appCfg, err := cfg.Load()
	if errors.Is(err, cfg.ErrHelp) {
		return
	}
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: appCfg.LogLevel()})))

	if err := run(appCfg); err != nil {
		slog.Error("Watchlist server failed", "error", err)
		os.Exit(1)
	}
}

func run(appCfg *cfg.Cfg) error {
	slog.Info("Starting Watchlist server", "version", appCfg.Version)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	slog.Info("Opening database", "path", appCfg.DBPath)
	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database schema ready", "version", version, "dirty", dirty)

	var (
		notifier database.ChangeNotifier
		events   http.Handler
	)
	if !appCfg.DisableRealtime {
		hub := realtime.NewHub(appCfg.AllowedOrigin)
		go hub.Run(ctx)
		notifier = hub
		events = hub
	} else {
		slog.Info("Realtime updates disabled")
	}

	itemRepo := database.NewItemRepository(db, notifier)
	rateLimitRepo := database.NewRateLimitRepository(db)
	limiter := ratelimit.NewLimiter(rateLimitRepo, appCfg.AddCooldown)

	catalogClient := catalog.NewClient(catalog.Options{
		Endpoint:          appCfg.CatalogURL,
		Timeout:           appCfg.CatalogTimeout,
		RequestsPerMinute: appCfg.CatalogRPM,
		UserAgent:         appCfg.UserAgent,
	})

	service := watchlist.NewService(catalogClient, itemRepo, limiter)

	var seedIDs []int64
	if appCfg.SeedFile != "" {
		seedIDs, err = seed.Load(appCfg.SeedFile)
		if err != nil {
			return fmt.Errorf("failed to load seed file: %w", err)
		}
		slog.Info("Loaded seed file", "path", appCfg.SeedFile, "items", len(seedIDs))
	}

	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount, "interval_seconds", appCfg.SchedulerInterval)
	scheduler := tasks.NewScheduler(tasks.Dependencies{
		Importer: service,
		Fetcher:  catalogClient,
		Store:    itemRepo,
		Pruner:   limiter,
	}, tasks.Options{
		Interval:    time.Duration(appCfg.SchedulerInterval) * time.Second,
		WorkerCount: appCfg.WorkerCount,
		SeedIDs:     seedIDs,
	})
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(service, itemRepo, events, appCfg.Version)
	engine, err := api.NewServer(handler, api.ServerOptions{
		AllowedOrigin:  appCfg.AllowedOrigin,
		TrustedProxies: appCfg.TrustedProxies,
		Debug:          appCfg.Debug,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port, "base_url", appCfg.BaseUrl)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case runErr = <-serverErrChan:
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown does not wait for hijacked websocket connections.
	stop()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return runErr
}
