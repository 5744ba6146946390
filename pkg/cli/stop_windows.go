//go:build windows

package cli

import (
	"os"

	"golang.org/x/sys/windows"
)

// Windows has no SIGTERM; use os.Interrupt for graceful and os.Kill for
// force.
var (
	signalTerm = os.Interrupt
	signalKill = os.Kill
)

func signalTermName() string { return "interrupt" }
func signalKillName() string { return "kill" }

// checkProcessRunning checks whether a process is still running by waiting
// on its handle with a zero timeout.
func checkProcessRunning(pid int) bool {
	handle, err := windows.OpenProcess(windows.SYNCHRONIZE|windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(handle)

	event, err := windows.WaitForSingleObject(handle, 0)
	if err != nil {
		return false
	}
	return event == uint32(windows.WAIT_TIMEOUT)
}
