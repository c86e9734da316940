package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/promptdeck/prism/internal/archive"
	"github.com/promptdeck/prism/internal/config"
	"github.com/promptdeck/prism/internal/credential"
	"github.com/promptdeck/prism/internal/extract"
	"github.com/promptdeck/prism/internal/gateway"
	"github.com/promptdeck/prism/internal/normalize"
	"github.com/promptdeck/prism/internal/provider"
	"github.com/promptdeck/prism/internal/ratelimit"
	"github.com/promptdeck/prism/internal/session"
	"github.com/promptdeck/prism/internal/telemetry"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	envFile := flag.String("env", "", "optional .env file with provider API keys")
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load env file: %v\n", err)
			os.Exit(1)
		}
	} else {
		// Best effort: a .env in the working directory is picked up if present.
		_ = godotenv.Load()
	}

	bootstrapLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(bootstrapLogger)

	loader := config.NewLoader(*configDir, bootstrapLogger)
	if err := loader.Load(); err != nil {
		bootstrapLogger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg := loader.Config()

	logger := buildLogger(cfg.Telemetry)
	slog.SetDefault(logger)

	if err := loader.Watch(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}

	// Credentials load fail-fast: a provider configured without its key in
	// the environment stops startup immediately.
	creds, err := credential.LoadFromEnv(loader.Providers().Providers)
	if err != nil {
		logger.Error("credential load failed", "error", err)
		os.Exit(1)
	}
	for _, name := range creds.Providers() {
		cred, _ := creds.Get(name)
		logger.Info("credential loaded", "provider", name, "key", cred.Redacted())
	}

	registry, err := provider.BuildFromConfig(loader.Providers(), creds)
	if err != nil {
		logger.Error("provider setup failed", "error", err)
		os.Exit(1)
	}

	// Probe each provider once before serving. A rejected key is a
	// configuration error, not something to discover on the first user
	// request.
	probeCtx, probeCancel := context.WithTimeout(context.Background(), cfg.Server.ReadTimeout)
	defer probeCancel()
	for _, name := range registry.Names() {
		client, _ := registry.Get(name)
		if _, err := creds.Validate(probeCtx, name, client); err != nil {
			logger.Error("credential probe failed", "provider", name, "error", err)
			os.Exit(1)
		}
		logger.Info("credential validated", "provider", name)
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable (rate limiting fails open, sessions fall back to memory)", "error", err)
			rdb = nil
		} else {
			logger.Info("redis connected", "addr", cfg.Redis.Addr)
		}
	}

	var store session.Store
	if cfg.Session.Backend == "redis" && rdb != nil {
		store = session.NewRedisStore(rdb, cfg.Session.TTL)
	} else {
		store = session.NewMemoryStore(cfg.Session.TTL)
	}
	sessions := session.NewManager(store, cfg.Session.WindowCap)

	metrics := telemetry.NewMetrics()

	handler := gateway.NewHandler(gateway.HandlerOptions{
		Registry:   registry,
		Health:     provider.NewHealthTracker(cfg.Limits.FailureThreshold, cfg.Limits.RecoveryProbeInterval),
		ModelsCfg:  loader.Models,
		Cfg:        loader.Config,
		Sessions:   sessions,
		Normalizer: normalize.New(func() map[string]config.PriceEntry { return loader.Models().Pricing }),
		Limiter:    ratelimit.NewLimiter(rdb),
		Spend:      ratelimit.NewSpendTracker(rdb),
		Posts:      archive.New(cfg.Archive.Path),
		Extractor:  extract.New(cfg.Limits.SummarizeMaxPages),
		Metrics:    metrics,
	})

	// Metrics on a separate listener so the public surface stays clean.
	if cfg.Telemetry.MetricsPort > 0 {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Telemetry.MetricsPort)
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("metrics listening", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("prism starting", "addr", addr, "version", version, "providers", registry.Names())
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("prism stopped")
}

func buildLogger(cfg config.TelemetryConfig) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAgeDays,
			Compress:   true,
		})
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(out, opts))
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}
