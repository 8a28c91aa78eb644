package main

import (
	"context"
	"flag"
	"fmt"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/tracker"
	"github.com/google/subcommands"
	"io"
	"os"
)

type refreshCmd struct{}

func (*refreshCmd) Name() string     { return "refresh" }
func (*refreshCmd) Synopsis() string { return "fetch the latest prices of stored tickers" }
func (*refreshCmd) Usage() string {
	return `ptctl refresh [symbol...]

  Refreshes the given tickers, or every stored ticker when none is named.
  A ticker that fails keeps its previous price and is listed at the end.
`
}

func (c *refreshCmd) SetFlags(f *flag.FlagSet) {}

func (c *refreshCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.close()

	var report tracker.RefreshReport
	if f.NArg() == 0 {
		report, err = a.tracker.UpdateAllTickers(ctx)
	} else {
		report, err = a.tracker.UpdateTickers(ctx, f.Args())
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error refreshing tickers: %v\n", err)
		return subcommands.ExitFailure
	}

	printRefresh(os.Stdout, report)
	if len(report.Failed) > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func printRefresh(w io.Writer, report tracker.RefreshReport) {
	fmt.Fprintf(w, "updated %d ticker(s)\n", len(report.Updated))
	for _, f := range report.Failed {
		fmt.Fprintf(w, "failed  %s: %s\n", f.Symbol, f.Error)
	}
}
