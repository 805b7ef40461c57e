// Package process runs external programs to completion and reports how they exited.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// DefaultGracePeriod is how long a cancelled process group gets between
// SIGTERM and SIGKILL.
const DefaultGracePeriod = 5 * time.Second

// Command describes a single program invocation.
type Command struct {
	Program string
	Args    []string
	// Env is appended to the environment inherited from the runner.
	Env []string
	Dir string

	// Stdout and Stderr default to the null device when nil.
	Stdout io.Writer
	Stderr io.Writer

	// GracePeriod overrides DefaultGracePeriod when positive.
	GracePeriod time.Duration
}

// String renders the command line for diagnostics.
func (c Command) String() string {
	return strings.Join(append([]string{c.Program}, c.Args...), " ")
}

// Run starts the command, waits for it and returns its exit code.
//
// A non-nil error means the program could not be spawned at all. A process
// killed by a signal reports -1. When ctx is cancelled the whole process
// group receives SIGTERM, and SIGKILL once the grace period has elapsed.
func Run(ctx context.Context, c Command) (int, error) {
	cmd := exec.CommandContext(ctx, c.Program, c.Args...)
	cmd.Dir = c.Dir

	cmd.Env = os.Environ()
	cmd.Env = append(cmd.Env, c.Env...)

	// Own process group so the terminal's SIGINT reaches the runner only,
	// and cancellation can take down everything the test spawned.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	cmd.Cancel = func() error {
		return signalGroup(cmd.Process, syscall.SIGTERM)
	}
	grace := c.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	cmd.WaitDelay = grace

	// exec.Cmd sends nil streams to the null device.
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("failed to start %s: %w", c.Program, err)
	}

	err := cmd.Wait()
	if cmd.ProcessState != nil {
		if ctx.Err() != nil {
			// WaitDelay only kills the direct child; make sure nothing
			// from the group outlives the run.
			signalGroup(cmd.Process, syscall.SIGKILL)
		}
		return cmd.ProcessState.ExitCode(), nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("failed to wait for %s: %w", c.Program, err)
}

// Succeeds runs the command and reports whether it exited with status zero.
// Spawn failures count as failure.
func Succeeds(ctx context.Context, c Command) bool {
	code, err := Run(ctx, c)
	return err == nil && code == 0
}

// signalGroup signals the group led by p. The child was started with
// Setpgid, so its pid is the group id even after it has been reaped.
func signalGroup(p *os.Process, sig syscall.Signal) error {
	if p == nil {
		return nil
	}
	err := syscall.Kill(-p.Pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}
