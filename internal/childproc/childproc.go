// Package childproc spawns one test as an isolated subprocess and merges
// its stdout/stderr into a single stream the scheduler can drain without
// blocking.
package childproc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/dkoosis/gtestisolate/internal/record"
)

// ReadBufferSize is the size of one non-blocking read chunk (§4.4).
const ReadBufferSize = 2048

// OutputMsg is one chunk of merged stdout/stderr output for a slot.
type OutputMsg struct {
	SlotIndex int
	Data      []byte
	EOF       bool
	Err       error
}

// ReapMsg reports that a child has exited.
type ReapMsg struct {
	SlotIndex int
	Pid       int
	Signaled  bool
	SignalStr string
	ExitCode  int
}

// Child is a live spawned test process.
type Child struct {
	Cmd       *exec.Cmd
	SlotIndex int
	Pid       int

	readEnd *os.File
}

// Spawn starts cmdVector[0] with cmdVector[1:] plus a --gtest_filter for the
// given identity, merging its stdout and stderr into a pipe whose other end
// is read by a background goroutine feeding outputs/reaped.
//
// The child inherits no scheduler-controlled descriptor beyond the pipe
// write end: os/exec starts a fresh process image, so there are no parent
// signal-handler dispositions to unregister (§4.3) and no environment other
// than the one explicitly assigned below.
func Spawn(
	ctx context.Context,
	cmdVector []string,
	id record.Identity,
	slotIndex int,
	outputs chan<- OutputMsg,
	reaped chan<- ReapMsg,
) (*Child, error) {
	args := append(append([]string{}, cmdVector[1:]...), "--gtest_filter="+id.String())

	cmd := exec.CommandContext(ctx, cmdVector[0], args...)
	cmd.Env = scrubFilterEnv(os.Environ())
	setProcessGroup(cmd)

	readEnd, writeEnd, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating output pipe: %w", err)
	}
	cmd.Stdout = writeEnd
	cmd.Stderr = writeEnd

	if err := cmd.Start(); err != nil {
		_ = readEnd.Close()
		_ = writeEnd.Close()
		return nil, fmt.Errorf("spawning child: %w", err)
	}
	_ = writeEnd.Close()

	c := &Child{Cmd: cmd, SlotIndex: slotIndex, Pid: cmd.Process.Pid, readEnd: readEnd}

	go c.readLoop(outputs)
	go c.waitLoop(reaped)

	return c, nil
}

// readLoop is the reader goroutine standing in for the poll-driven
// non-blocking Read of §4.4: it performs blocking reads on its own end of
// the pipe, but the scheduler only ever consumes its results through a
// non-blocking channel receive, so the main loop never blocks on any one
// child (§5's suspension-point requirement).
func (c *Child) readLoop(outputs chan<- OutputMsg) {
	buf := make([]byte, ReadBufferSize)
	for {
		n, err := c.readEnd.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			outputs <- OutputMsg{SlotIndex: c.SlotIndex, Data: chunk}
		}
		if err != nil {
			eof := errors.Is(err, io.EOF) || n == 0
			outputs <- OutputMsg{SlotIndex: c.SlotIndex, EOF: eof, Err: nonEOFErr(err)}
			return
		}
	}
}

func nonEOFErr(err error) error {
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// waitLoop reaps the child without blocking the main loop: it runs in its
// own goroutine and reports through a channel, matching §4.2 phase 3's
// requirement of a non-hanging wait.
func (c *Child) waitLoop(reaped chan<- ReapMsg) {
	err := c.Cmd.Wait()
	_ = c.readEnd.Close()

	msg := ReapMsg{SlotIndex: c.SlotIndex, Pid: c.Pid}
	state := c.Cmd.ProcessState

	if state != nil {
		if ws, ok := waitStatus(state); ok && ws.signaled {
			msg.Signaled = true
			msg.SignalStr = ws.signalName
		} else {
			msg.ExitCode = state.ExitCode()
		}
	} else if err != nil {
		msg.ExitCode = 1
	}

	reaped <- msg
}

// Kill sends the fatal termination signal to the child's own pid; children
// share the scheduler's process group, so descendants are not signaled.
func (c *Child) Kill() error {
	return killProcessGroup(c.Cmd)
}

// scrubFilterEnv removes GTEST_FILTER so only the explicit command-line
// filter this dispatch appends is honored (§4.3).
func scrubFilterEnv(env []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		if strings.HasPrefix(kv, "GTEST_FILTER=") {
			continue
		}
		out = append(out, kv)
	}
	return out
}
