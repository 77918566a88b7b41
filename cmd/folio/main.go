// Command folio records portfolio events and keeps their valuation cache
// current with a background sync engine.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

// as a CLI application, it has a very short lived lifecycle, so global flags are fine.
var (
	configPath = flag.String("config", "", "Path to the folio.toml config file (defaults to FOLIO_CONFIG, then folio.toml beside the binary)")
	verbose    = flag.Bool("verbose", false, "Log debug output to stderr")
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&versionCmd{}, "")

	commander.Register(&runCmd{}, "engine")
	commander.Register(&syncCmd{}, "engine")
	commander.Register(&rebuildCmd{}, "engine")

	commander.Register(&addCmd{}, "events")
	commander.Register(&cashCmd{}, "events")
	commander.Register(&importCmd{}, "events")

	commander.Register(&statusCmd{}, "views")
	commander.Register(&journalCmd{}, "views")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
