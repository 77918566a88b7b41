package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/bobmcallan/folio/internal/services/journal"
)

type statusCmd struct {
	portfolio string
}

func (*statusCmd) Name() string     { return "status" }
func (*statusCmd) Synopsis() string { return "show cached holding values and sync state" }
func (*statusCmd) Usage() string {
	return `folio status [-p <portfolio>]

  Reads the cache only. Holdings whose value series is missing or dirty are
  shown as pending until the engine recomputes them. Without -p every
  portfolio is shown.
`
}

func (c *statusCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolio, "p", "", "Portfolio name (default: all)")
}

func (c *statusCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	names := []string{c.portfolio}
	if c.portfolio == "" {
		if names, err = a.PortfolioService.ListPortfolios(ctx); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
	}
	if len(names) == 0 {
		fmt.Println("no portfolios yet, record one with: folio add -p <name> -s <symbol> ...")
		return subcommands.ExitSuccess
	}

	for _, name := range names {
		st, err := a.PortfolioService.Status(ctx, name)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		fmt.Println(renderStatus(st))
	}
	return subcommands.ExitSuccess
}

type journalCmd struct {
	portfolio string
}

func (*journalCmd) Name() string     { return "journal" }
func (*journalCmd) Synopsis() string { return "write the cached daily journal as CSV" }
func (*journalCmd) Usage() string {
	return `folio journal [-p <portfolio>] > journal.csv

  One row per calendar day with each holding's market value, the total and
  an all-time-high marker, followed by a since_ath summary row. A warning
  goes to stderr when the journal is stale.
`
}

func (c *journalCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolio, "p", "main", "Portfolio name")
}

func (c *journalCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	j, stale, err := a.PortfolioService.Journal(ctx, c.portfolio)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if j == nil {
		fmt.Fprintf(os.Stderr, "journal for %s is pending, run the engine or folio sync\n", c.portfolio)
		return subcommands.ExitFailure
	}
	if stale {
		fmt.Fprintf(os.Stderr, "warning: journal for %s is stale (as of %s)\n", c.portfolio, j.AsOf.Format("2006-01-02"))
	}
	if err := journal.WriteCSV(os.Stdout, j); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
