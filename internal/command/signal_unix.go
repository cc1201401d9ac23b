//go:build unix

package command

import (
	"os/exec"
	"syscall"
)

func signalNumber(exitErr *exec.ExitError) int {
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return int(status.Signal())
	}
	return 0
}
