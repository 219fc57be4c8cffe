// Package command wraps external process execution behind an injectable
// Executor so tests can substitute fake binaries or canned output.
package command

import (
	"context"
	"os/exec"
)

// Executor creates exec.Cmd instances. The indirection lets tests inject
// command creation logic without touching production call sites.
type Executor interface {
	// Command creates an exec.Cmd for the given command and arguments.
	Command(name string, args ...string) *exec.Cmd

	// CommandContext creates a context-aware exec.Cmd.
	CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd
}

// RealExecutor is the production Executor backed by os/exec.
type RealExecutor struct{}

func (e *RealExecutor) Command(name string, args ...string) *exec.Cmd {
	return exec.Command(name, args...)
}

func (e *RealExecutor) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, name, args...)
}
