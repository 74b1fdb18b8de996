package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Harsh-eth/PostPilot/backend"
	"github.com/Harsh-eth/PostPilot/bridge"
	"github.com/Harsh-eth/PostPilot/broker"
	"github.com/Harsh-eth/PostPilot/cache"
	"github.com/Harsh-eth/PostPilot/config"
	"github.com/Harsh-eth/PostPilot/feed"
	"github.com/Harsh-eth/PostPilot/history"
	"github.com/Harsh-eth/PostPilot/observer"
	"github.com/Harsh-eth/PostPilot/panel"
	"github.com/Harsh-eth/PostPilot/scheduler"
)

func main() {
	// Load configuration first so the log level applies from the start.
	configPath := config.GetConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	slog.Info("starting PostPilot", "config", configPath)

	// Initialize history store
	store, err := history.Open(cfg.HistoryDBPath, history.WithLimit(cfg.HistoryLimit))
	if err != nil {
		slog.Error("failed to initialize history store", "path", cfg.HistoryDBPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("history store initialized", "path", cfg.HistoryDBPath, "limit", cfg.HistoryLimit)

	// Initialize backend client and broker
	client := backend.NewClient(
		backend.WithBaseURL(cfg.BackendURL),
		backend.WithAPIKey(cfg.APIKey),
		backend.WithMaxAttempts(cfg.MaxAttempts),
		backend.WithBaseDelay(cfg.BaseDelay()),
		backend.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout()}),
	)
	requestBroker := broker.New(client, cache.New[*backend.Result](cfg.CacheCapacity), store)

	extractor, err := feed.NewExtractor(cfg.Selectors)
	if err != nil {
		slog.Error("failed to compile feed selectors", "error", err)
		os.Exit(1)
	}

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Observe the feed document when one is configured
	if cfg.FeedPath != "" {
		if err := startObserver(ctx, cfg, extractor, requestBroker); err != nil {
			slog.Error("failed to start feed observer", "path", cfg.FeedPath, "error", err)
			os.Exit(1)
		}
	}

	// Periodic backend liveness probe
	sched := scheduler.New()
	if err := sched.Schedule(cfg.HealthInterval(), func() {
		probeCtx, probeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer probeCancel()
		if err := client.Health(probeCtx); err != nil {
			slog.Warn("backend health probe failed", "error", err)
		} else {
			slog.Debug("backend healthy")
		}
	}); err != nil {
		slog.Error("failed to schedule health probe", "error", err)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()
	slog.Info("health probe scheduled", "interval", cfg.HealthInterval())

	// Serve the message bridge
	bridgeServer := &http.Server{
		Addr:    cfg.BridgeAddr,
		Handler: bridge.New(requestBroker, store, client).Router(),
	}
	go func() {
		slog.Info("bridge listening", "addr", cfg.BridgeAddr)
		if err := bridgeServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("bridge server failed", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := bridgeServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("bridge shutdown failed", "error", err)
	}
	slog.Info("stopped")
}

// startObserver wires the watched feed document to the injector and a
// panel controller that logs bound items.
func startObserver(ctx context.Context, cfg *config.Config, extractor *feed.Extractor, requestBroker *broker.Broker) error {
	source, err := observer.NewFileSource(cfg.FeedPath, extractor)
	if err != nil {
		return err
	}

	doc, err := source.Load()
	if err != nil {
		source.Close()
		return err
	}

	panels := panel.NewController(doc, requestBroker)

	obs := observer.New(doc, extractor,
		observer.WithDebounce(cfg.Debounce()),
		observer.WithOnBind(func(b observer.Binding) {
			// The panel tracks the newest bound item until an
			// action on another item reopens it there.
			panels.Open(extractor.Extract(b.Item))
			slog.Info("feed item bound", "id", b.ID)
		}),
	)

	batches := make(chan observer.Batch, 16)
	go func() {
		defer source.Close()
		source.Run(ctx, batches)
	}()
	obs.Start(ctx, batches)

	slog.Info("feed observer started", "path", cfg.FeedPath, "items", obs.Count())
	return nil
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
