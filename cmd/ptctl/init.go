package main

import (
	"context"
	"flag"
	"fmt"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/config"
	"github.com/google/subcommands"
	"os"
)

type initCmd struct {
	noPrices bool
}

func (*initCmd) Name() string     { return "init" }
func (*initCmd) Synopsis() string { return "create the schema and seed the ticker table" }
func (*initCmd) Usage() string {
	return `ptctl init [-no-prices]

  Creates the tables on a fresh store and seeds the tickers from the
  reference list. On an existing store only pending migrations run.
`
}

func (c *initCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.noPrices, "no-prices", false, "seed tickers without fetching their prices")
}

func (c *initCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "no arguments expected")
		return subcommands.ExitUsageError
	}

	a, err := openApp(func(cfg *config.Config) {
		if c.noPrices {
			cfg.Seed.FetchPrices = false
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.close()

	report, err := a.tracker.Initialize(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing store: %v\n", err)
		return subcommands.ExitFailure
	}

	printRefresh(os.Stdout, report)
	return subcommands.ExitSuccess
}
