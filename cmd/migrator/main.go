package main

import (
	"context"
	"flag"
	"fmt"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/config"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/storage/sqlstore"
	"io"
	"log/slog"
	"os"
)

func main() {
	var down bool

	flag.BoolVar(&down, "down", false, "roll back every migration instead of applying them")

	// MustLoad parses the command line, so every flag is declared above.
	cfg := config.MustLoad()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if cfg.Env == "local" {
		log = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	storage, err := sqlstore.New(cfg.Storage, log)
	if err != nil {
		panic(err)
	}
	defer storage.Stop()

	ctx := context.Background()

	if down {
		if err := storage.MigrateDown(ctx); err != nil {
			panic(err)
		}
		fmt.Println("migrations rolled back successfully")
		return
	}

	if err := storage.Migrate(ctx); err != nil {
		panic(err)
	}

	fmt.Println("migrations applied successfully")
}
