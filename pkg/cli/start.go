package cli

import "github.com/spf13/cobra"

var startOpts serveFlags

// startCmd is serve with --detach on by default: it backgrounds the server
// and persists its PID for stop/status.
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the mock push service as a background process",
	Example: `  # Start in the background
  pushd start

  # Start on a custom port
  pushd start --port 3000

  # Start in the foreground instead
  pushd start --detach=false`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, &startOpts)
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
	registerServeFlags(startCmd, &startOpts, true)
}
