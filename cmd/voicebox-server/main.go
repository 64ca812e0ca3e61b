package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/apresai/voicebox/internal/config"
	"github.com/apresai/voicebox/internal/observability"
	"github.com/apresai/voicebox/internal/secrets"
	"github.com/apresai/voicebox/internal/server"
	"github.com/apresai/voicebox/internal/studio"
	"github.com/apresai/voicebox/internal/tts"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		observability.InitLogger(os.Stderr, slog.LevelInfo).Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	level, err := observability.ParseLevel(cfg.LogLevel)
	logger := observability.InitLogger(os.Stderr, level)
	if err != nil {
		logger.Warn("Unknown log level, using info", "level", cfg.LogLevel)
	}

	logger.Info("Voicebox server starting...", "version", version, "provider", cfg.Provider)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.TracingEnabled {
		tp, err := observability.InitTracer(ctx, "voicebox-server", version, cfg.Environment)
		if err != nil {
			logger.Warn("Failed to init tracer, continuing without tracing", "error", err)
		} else {
			defer func() {
				if err := tp.Shutdown(context.Background()); err != nil {
					logger.Error("Tracer shutdown error", "error", err)
				}
			}()
		}
	}

	key, err := secrets.NewResolver(cfg, logger).APIKey(ctx, cfg.Provider, "", cfg.APIKey)
	if err != nil {
		logger.Error("Missing credentials", "error", err)
		os.Exit(1)
	}

	provider, err := tts.NewProvider(ctx, cfg.Provider, cfg.ProviderConfig(key, logger))
	if err != nil {
		logger.Error("Failed to create TTS provider", "error", err)
		os.Exit(1)
	}
	svc := tts.NewService(provider, logger)
	defer svc.Close()

	gen, err := studio.New(svc, studio.Options{
		Provider:  cfg.Provider,
		CacheSize: cfg.CacheSize,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("Failed to create generator", "error", err)
		os.Exit(1)
	}

	srv := server.New(server.Config{Port: cfg.Port, Provider: cfg.Provider, Version: version}, gen, logger)
	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
