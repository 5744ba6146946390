// pushd - a local mock push service for testing Web Push clients.
package main

import "github.com/getpushd/pushd/pkg/cli"

// Build-time variables set via ldflags.
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.BuildDate = buildDate
	cli.Execute()
}
