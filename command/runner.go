package command

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/grovetools/lookout/errors"
)

// DefaultTimeout bounds a single external command invocation.
const DefaultTimeout = 3 * time.Second

// killGrace is how long a command gets to exit after its context is
// cancelled before it is killed outright.
const killGrace = 500 * time.Millisecond

// Runner executes external commands with a hard timeout. A command that
// ignores cancellation is force-killed after a short grace period so a hung
// subprocess can never stall the caller.
type Runner struct {
	executor Executor
	timeout  time.Duration
}

// NewRunner returns a Runner using the real executor and DefaultTimeout.
func NewRunner() *Runner {
	return &Runner{executor: &RealExecutor{}, timeout: DefaultTimeout}
}

// NewRunnerWithExecutor returns a Runner with a custom executor and timeout.
// A zero timeout falls back to DefaultTimeout.
func NewRunnerWithExecutor(exec Executor, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{executor: exec, timeout: timeout}
}

// Output runs name with args in dir and returns trimmed stdout. The command
// is cancelled when the runner's timeout elapses or ctx is done, whichever
// comes first.
func (r *Runner) Output(ctx context.Context, dir, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := r.executor.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.WaitDelay = killGrace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return "", errors.CommandTimeout(name, r.timeout)
	}
	if err != nil {
		return "", errors.CommandFailed(name, stderr.String(), err)
	}
	return strings.TrimSpace(stdout.String()), nil
}
