// Command ptctl administers the portfolio store from the command line.
package main

import (
	"context"
	"flag"
	"github.com/google/subcommands"
	"os"
	"path"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))

	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&initCmd{}, "store")
	commander.Register(&refreshCmd{}, "tickers")
	commander.Register(&tickersCmd{}, "tickers")
	commander.Register(&addTickerCmd{}, "tickers")
	commander.Register(&deleteTickerCmd{}, "tickers")
	commander.Register(&valuationCmd{}, "portfolios")
	commander.Register(&lotsCmd{}, "portfolios")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
