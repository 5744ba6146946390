package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	stopPidFile string
	stopForce   bool
	stopTimeout int
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running pushd server",
	Example: `  # Stop gracefully
  pushd stop

  # Force stop
  pushd stop --force

  # Custom PID file
  pushd stop --pid-file /tmp/pushd.pid`,
	RunE: runStop,
}

func init() {
	rootCmd.AddCommand(stopCmd)
	stopCmd.Flags().StringVar(&stopPidFile, "pid-file", DefaultPIDPath(), "Path to PID file")
	stopCmd.Flags().BoolVarP(&stopForce, "force", "f", false, "Send SIGKILL instead of SIGTERM")
	stopCmd.Flags().IntVar(&stopTimeout, "timeout", 10, "Seconds to wait for graceful shutdown")
}

func runStop(cmd *cobra.Command, args []string) error {
	info, err := ReadPIDFile(stopPidFile)
	if err != nil {
		return fmt.Errorf("pushd is not running (no PID file at %s)", stopPidFile)
	}

	if !info.IsRunning() {
		_ = RemovePIDFile(stopPidFile)
		return errors.New("pushd is not running (stale PID file removed)")
	}

	process, err := os.FindProcess(info.PID)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", info.PID, err)
	}

	sig, sigName := signalTerm, signalTermName()
	if stopForce {
		sig, sigName = signalKill, signalKillName()
	}

	fmt.Printf("Stopping pushd (PID %d) with %s... ", info.PID, sigName)
	if err := process.Signal(sig); err != nil {
		fmt.Println("failed")
		return fmt.Errorf("sending signal: %w", err)
	}

	if stopForce {
		fmt.Println("done")
		time.Sleep(100 * time.Millisecond)
		_ = RemovePIDFile(stopPidFile)
		return nil
	}

	deadline := time.Now().Add(time.Duration(stopTimeout) * time.Second)
	for time.Now().Before(deadline) {
		if !checkProcessRunning(info.PID) {
			fmt.Println("done")
			_ = RemovePIDFile(stopPidFile)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	fmt.Println("timeout")
	fmt.Printf("Process did not stop within %d seconds. Try: pushd stop --force\n", stopTimeout)
	return errors.New("timeout waiting for process to stop")
}
