// Package cli implements the pushd command-line interface: serving the mock
// push service in the foreground or as a background process, and stopping
// and inspecting a running instance.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build information injected via ldflags.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// childEnvVar marks a process re-executed by --detach.
const childEnvVar = "PUSHD_CHILD"

var rootCmd = &cobra.Command{
	Use:   "pushd",
	Short: "pushd is a local mock push service for testing Web Push clients",
	Long: `pushd mocks a browser push service endpoint on localhost. Clients subscribe
against it, send VAPID-authenticated encrypted notifications (aesgcm or
aes128gcm), and read the decrypted plaintext back to assert on it.

All state is in memory and lives for one server process.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
