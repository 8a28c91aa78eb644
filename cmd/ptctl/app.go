package main

import (
	"flag"
	"fmt"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/config"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/pricing"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/storage/sqlstore"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/tracker"
	"log/slog"
	"os"
)

var (
	configPath = flag.String("config", "", "path to config file (defaults to $CONFIG_PATH)")
	verbose    = flag.Bool("v", false, "log at debug level")
)

// app bundles what every subcommand needs. close releases the store.
type app struct {
	logger  *slog.Logger
	store   *sqlstore.Storage
	tracker *tracker.Tracker
}

// openApp loads the config, applies adjust to it and opens the store.
func openApp(adjust ...func(*config.Config)) (*app, error) {
	path := *configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		return nil, fmt.Errorf("no config file: use -config or set CONFIG_PATH")
	}
	cfg := config.MustLoadPath(path)
	for _, fn := range adjust {
		fn(cfg)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	store, err := sqlstore.New(cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	source := pricing.NewEODHD(cfg.Pricing, logger)

	return &app{
		logger:  logger,
		store:   store,
		tracker: tracker.New(store, source, cfg.Seed, logger),
	}, nil
}

func (a *app) close() {
	if err := a.store.Stop(); err != nil {
		a.logger.Error("Failed to close database", "error", err)
	}
}
