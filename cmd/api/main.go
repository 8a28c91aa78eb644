package main

import (
	"context"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/api"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/config"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/pricing"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/storage/sqlstore"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/tracker"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("Starting application",
		slog.String("env", cfg.Env),
		slog.String("host", cfg.ApiHost),
		slog.Int("port", cfg.ApiPort),
		slog.String("driver", cfg.Storage.Driver),
	)

	storage, err := sqlstore.New(cfg.Storage, log)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := storage.Stop(); err != nil {
			log.Error("Failed to close database", "error", err)
		}
	}()

	source := pricing.NewEODHD(cfg.Pricing, log)
	service := tracker.New(storage, source, cfg.Seed, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := service.Initialize(ctx)
	if err != nil {
		log.Error("Failed to initialize storage", "error", err)
		_ = storage.Stop()
		os.Exit(1)
	}
	for _, f := range report.Failed {
		log.Warn("Ticker left unpriced", slog.String("symbol", f.Symbol), slog.String("error", f.Error))
	}

	apiServer := api.New(cfg, log, service)

	go func() {
		apiServer.MustStart()
	}()

	<-ctx.Done()
	log.Info("Got signal to shutdown server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error("Stopping server error", "error", err)
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
	return log
}
