//go:build unix

package childproc

import (
	"os"
	"os/exec"
	"syscall"
)

// setProcessGroup is a no-op: children run in the caller's process group,
// the same as the process they were forked from.
func setProcessGroup(cmd *exec.Cmd) {}

// killProcessGroup sends SIGKILL to the child's own pid, the fatal
// termination signal used for both deadline expiry (§4.2 phase 4) and
// SIGINT propagation (§4.7).
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

// waitStatus decodes the platform wait status, reporting whether the child
// died from a signal and, if so, that signal's human-readable name (used in
// the "<name> terminated by signal: <signame>." appendix line, §4.5).
func waitStatus(state *os.ProcessState) (decodedWaitStatus, bool) {
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return decodedWaitStatus{}, false
	}
	return decodedWaitStatus{signaled: true, signalName: ws.Signal().String()}, true
}
