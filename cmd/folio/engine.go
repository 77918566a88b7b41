package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"

	"github.com/bobmcallan/folio/internal/app"
	"github.com/bobmcallan/folio/internal/common"
)

// openApp initializes the shared app core from the global flags.
func openApp() (*app.App, error) {
	return app.NewApp(*configPath, *verbose)
}

type runCmd struct{}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "run the background sync engine until interrupted" }
func (*runCmd) Usage() string {
	return `folio run

  Starts the scheduler: a full sync cycle now and on the configured cadence,
  realtime snapshots in between, and dirty holdings drained as soon as they
  are marked. Stops gracefully on SIGINT or SIGTERM.
`
}
func (*runCmd) SetFlags(*flag.FlagSet) {}

func (*runCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	names, err := a.PortfolioService.ListPortfolios(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	common.PrintBanner(os.Stdout, a.Config, len(names), a.Logger)

	if err := a.StartScheduler(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start scheduler: %v\n", err)
		return subcommands.ExitFailure
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	common.PrintShutdownBanner(os.Stdout, a.Logger)
	return subcommands.ExitSuccess
}

type syncCmd struct{}

func (*syncCmd) Name() string     { return "sync" }
func (*syncCmd) Synopsis() string { return "run one full sync cycle and exit" }
func (*syncCmd) Usage() string {
	return `folio sync

  Prefetches missing market data, recomputes every dirty holding, rebuilds
  journals and refreshes realtime snapshots once.
`
}
func (*syncCmd) SetFlags(*flag.FlagSet) {}

func (*syncCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Scheduler.RunCycle(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Sync failed: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := a.Scheduler.RefreshRealtime(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Realtime refresh failed: %v\n", err)
	}

	pending, err := a.Tracker.Len(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("sync complete, %d holding(s) still pending\n", pending)
	return subcommands.ExitSuccess
}

type rebuildCmd struct{}

func (*rebuildCmd) Name() string     { return "rebuild" }
func (*rebuildCmd) Synopsis() string { return "discard derived data and recompute everything" }
func (*rebuildCmd) Usage() string {
	return `folio rebuild

  Deletes every value series, journal and the status file, then runs a full
  cycle. Cached price and dividend histories and portfolio files are kept.
`
}
func (*rebuildCmd) SetFlags(*flag.FlagSet) {}

func (*rebuildCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	counts, err := a.Rebuild(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Rebuild failed: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("rebuilt: %d value series and %d journal(s) recomputed\n", counts["values"], counts["journals"])
	return subcommands.ExitSuccess
}

type versionCmd struct{}

func (*versionCmd) Name() string           { return "version" }
func (*versionCmd) Synopsis() string       { return "print version information" }
func (*versionCmd) Usage() string          { return "folio version\n" }
func (*versionCmd) SetFlags(*flag.FlagSet) {}
func (*versionCmd) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	fmt.Println(common.GetFullVersion())
	return subcommands.ExitSuccess
}
