package main

import (
	"context"
	"flag"
	"fmt"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/domain/models"
	"github.com/google/subcommands"
	"io"
	"os"
	"text/tabwriter"
)

type lotsCmd struct {
	portfolio int64
}

func (*lotsCmd) Name() string     { return "lots" }
func (*lotsCmd) Synopsis() string { return "list the individual lots of a portfolio" }
func (*lotsCmd) Usage() string {
	return `ptctl lots -portfolio <id>

  Prints every lot in purchase order, which is the order sells consume them.
`
}

func (c *lotsCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.portfolio, "portfolio", 0, "id of the portfolio")
}

func (c *lotsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.portfolio <= 0 {
		fmt.Fprintln(os.Stderr, "-portfolio is required")
		return subcommands.ExitUsageError
	}

	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.close()

	lots, err := a.tracker.Lots(ctx, c.portfolio)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing lots: %v\n", err)
		return subcommands.ExitFailure
	}

	printLots(os.Stdout, lots)
	return subcommands.ExitSuccess
}

func printLots(w io.Writer, lots []models.Position) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "SYMBOL\tQTY\tPRICE\tCOST\tBOUGHT\t")
	for _, l := range lots {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t\n",
			l.Symbol,
			l.Quantity,
			l.PurchasePrice.StringFixed(2),
			l.CostBasis().StringFixed(2),
			l.PurchaseDate.Format("2006-01-02 15:04:05"),
		)
	}
	tw.Flush()
}
