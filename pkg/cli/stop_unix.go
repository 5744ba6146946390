//go:build !windows

package cli

import (
	"os"
	"syscall"
)

var (
	signalTerm = syscall.SIGTERM
	signalKill = syscall.SIGKILL
)

func signalTermName() string { return "SIGTERM" }
func signalKillName() string { return "SIGKILL" }

// checkProcessRunning probes a PID with signal 0.
func checkProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
