package common

import "fmt"

// Version variables injected at build time via ldflags
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// GetVersion returns the semantic version string
func GetVersion() string {
	return Version
}

// GetFullVersion returns a formatted version string with all build info
func GetFullVersion() string {
	return fmt.Sprintf("%s (build: %s, commit: %s)", Version, Build, GitCommit)
}

// SchemaVersion identifies the layout and derivation rules of the cache tier.
// Bump it when a change would make existing value series or journals wrong;
// the app purges derived data on mismatch and everything is recomputed.
const SchemaVersion = "1"
