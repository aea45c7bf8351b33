package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"valuestream/internal/config"
	"valuestream/internal/core/engine"
	"valuestream/internal/core/vsm"
	"valuestream/internal/handler"
	"valuestream/internal/hub"
	"valuestream/internal/repository/sqlite"
	"valuestream/internal/service"
	"valuestream/internal/telemetry"
	"valuestream/internal/watcher"
)

func main() {
	// Command line flags override the config file
	configPath := flag.String("config", "", "config file path (default: search standard locations)")
	addr := flag.String("addr", "", "HTTP listen address")
	dbPath := flag.String("db", "", "SQLite database path")
	watchDir := flag.String("watch", "", "directory of map documents to import")
	seed := flag.Bool("seed", false, "store the sample value stream map on startup")
	initConfig := flag.Bool("init-config", false, "write a default config file and exit")
	flag.Parse()

	if *initConfig {
		path := *configPath
		if path == "" {
			path = config.DefaultConfigPath()
		}
		if err := config.DefaultConfig().Save(path); err != nil {
			fmt.Fprintf(os.Stderr, "valuestream: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote default config to %s\n", path)
		return
	}

	if err := run(*configPath, *addr, *dbPath, *watchDir, *seed); err != nil {
		fmt.Fprintf(os.Stderr, "valuestream: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, addr, dbPath, watchDir string, seed bool) error {
	var (
		cfg    *config.Config
		loaded string
		err    error
	)
	if configPath != "" {
		cfg, loaded, err = config.LoadFromPath(configPath)
	} else {
		cfg, loaded, err = config.Load()
	}
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if watchDir != "" {
		cfg.Watch.Dir = watchDir
	}

	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	logger.Info("main: starting value stream server", "config", loaded)
	logger.Debug("main: configuration\n" + cfg.Summary())

	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer repo.Close()
	logger.Info("main: database opened", "path", cfg.Database.Path)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *telemetry.Registry
	if cfg.Telemetry.Enabled {
		metrics = telemetry.NewRegistry()
	}

	eventBus := service.NewEventBus()
	mutator := vsm.New(engine.Options{ExplicitReworkOnly: cfg.Engine.ExplicitReworkOnly})
	mapSvc := service.NewMapService(repo, eventBus, mutator).
		WithTelemetry(metrics).
		WithLogger(logger)

	if n, err := repo.CountMaps(ctx); err == nil {
		metrics.SetMapCount(n)
	}

	if seed {
		if _, err := mapSvc.SeedSample(ctx); err != nil {
			return fmt.Errorf("failed to seed sample map: %w", err)
		}
	}

	sseHub := hub.New(logger)
	go sseHub.Run(ctx)
	sseHub.Attach(ctx, eventBus)

	if cfg.Watch.Dir != "" {
		w := watcher.New(cfg.Watch.Dir, mapSvc).
			WithDebounce(cfg.Watch.Debounce.Duration()).
			WithLogger(logger)
		go func() {
			if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("main: watcher stopped", "err", err)
			}
		}()
	}

	// Setup routes
	mux := http.NewServeMux()
	handler.NewMapHandler(mapSvc, logger).Routes(mux)
	mux.Handle("GET /events", sseHub)
	if metrics != nil {
		mux.Handle("GET "+cfg.Telemetry.Path, metrics.Handler())
	}

	finalHandler := handler.Chain(mux,
		handler.Recover,
		handler.CORS,
		handler.Logger,
		handler.Metrics(metrics),
		handler.APIKey(cfg.Auth.APIKeyHash),
	)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      finalHandler,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:  cfg.Server.IdleTimeout.Duration(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("main: server listening", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("main: shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("main: server shutdown error", "err", err)
	}

	logger.Info("main: server stopped")
	return nil
}
