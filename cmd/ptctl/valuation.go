package main

import (
	"context"
	"flag"
	"fmt"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/valuation"
	"github.com/google/subcommands"
	"io"
	"os"
	"text/tabwriter"
)

type valuationCmd struct {
	portfolio int64
}

func (*valuationCmd) Name() string     { return "valuation" }
func (*valuationCmd) Synopsis() string { return "value a portfolio at the cached prices" }
func (*valuationCmd) Usage() string {
	return `ptctl valuation -portfolio <id>

  Prints one row per held ticker and the portfolio totals.
`
}

func (c *valuationCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.portfolio, "portfolio", 0, "id of the portfolio to value")
}

func (c *valuationCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	report, err := a.tracker.Valuate(ctx, c.portfolio)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error valuing portfolio: %v\n", err)
		return subcommands.ExitFailure
	}

	printValuation(os.Stdout, report)
	return subcommands.ExitSuccess
}

func printValuation(w io.Writer, report valuation.Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "SYMBOL\tQTY\tAVG PRICE\tCOST\tPRICE\tVALUE\tP/L\t")
	for _, r := range report.Rows {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t\n",
			r.Symbol,
			r.Quantity,
			r.AveragePrice.StringFixed(2),
			r.CostBasis.StringFixed(2),
			r.CurrentPrice.StringFixed(2),
			r.CurrentValue.StringFixed(2),
			r.ProfitLoss.StringFixed(2),
		)
	}
	fmt.Fprintf(tw, "TOTAL\t\t\t%s\t\t%s\t%s\t\n",
		report.Totals.CostBasis.StringFixed(2),
		report.Totals.Value.StringFixed(2),
		report.Totals.ProfitLoss.StringFixed(2),
	)
	tw.Flush()
}
