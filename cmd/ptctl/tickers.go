package main

import (
	"context"
	"flag"
	"fmt"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/domain/models"
	"github.com/google/subcommands"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

type tickersCmd struct{}

func (*tickersCmd) Name() string     { return "tickers" }
func (*tickersCmd) Synopsis() string { return "list stored tickers with their cached prices" }
func (*tickersCmd) Usage() string    { return "ptctl tickers\n" }

func (c *tickersCmd) SetFlags(f *flag.FlagSet) {}

func (c *tickersCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "no arguments expected")
		return subcommands.ExitUsageError
	}

	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.close()

	tickers, err := a.tracker.Tickers(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing tickers: %v\n", err)
		return subcommands.ExitFailure
	}

	printTickers(os.Stdout, tickers)
	return subcommands.ExitSuccess
}

func printTickers(w io.Writer, tickers []models.TickerPrice) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "SYMBOL\tPRICE\t")
	for _, t := range tickers {
		price := "-"
		if t.Price.Valid {
			price = t.Price.Decimal.StringFixed(2)
		}
		fmt.Fprintf(tw, "%s\t%s\t\n", t.Symbol, price)
	}
	tw.Flush()
}

type addTickerCmd struct{}

func (*addTickerCmd) Name() string     { return "add-ticker" }
func (*addTickerCmd) Synopsis() string { return "store a new ticker and fetch its price" }
func (*addTickerCmd) Usage() string {
	return `ptctl add-ticker <symbol> [company name]

  Without a name, the provider is asked for one. A ticker whose price cannot
  be fetched is still stored, unpriced.
`
}

func (c *addTickerCmd) SetFlags(f *flag.FlagSet) {}

func (c *addTickerCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "a symbol is required")
		return subcommands.ExitUsageError
	}

	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.close()

	report, err := a.tracker.AddTicker(ctx, f.Arg(0), strings.Join(f.Args()[1:], " "))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error adding ticker: %v\n", err)
		return subcommands.ExitFailure
	}

	printRefresh(os.Stdout, report)
	return subcommands.ExitSuccess
}

type deleteTickerCmd struct{}

func (*deleteTickerCmd) Name() string     { return "delete-ticker" }
func (*deleteTickerCmd) Synopsis() string { return "remove a ticker and every position held in it" }
func (*deleteTickerCmd) Usage() string    { return "ptctl delete-ticker <symbol>\n" }

func (c *deleteTickerCmd) SetFlags(f *flag.FlagSet) {}

func (c *deleteTickerCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "exactly one symbol is required")
		return subcommands.ExitUsageError
	}

	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.close()

	if err := a.tracker.DeleteTicker(ctx, f.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error deleting ticker: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
