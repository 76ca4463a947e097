//go:build !unix

package childproc

import (
	"os"
	"os/exec"
)

// setProcessGroup is a no-op on platforms without process groups.
func setProcessGroup(cmd *exec.Cmd) {}

// killProcessGroup signals the process directly on platforms without
// process groups.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

type decodedWaitStatus struct {
	signaled   bool
	signalName string
}

func waitStatus(state *os.ProcessState) (decodedWaitStatus, bool) {
	return decodedWaitStatus{}, false
}
