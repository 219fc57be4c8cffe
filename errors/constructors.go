package errors

import (
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *LookoutError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *LookoutError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// CommandTimeout creates a command timeout error
func CommandTimeout(cmd string, timeout time.Duration) *LookoutError {
	return New(ErrCodeCommandTimeout,
		fmt.Sprintf("command '%s' did not finish within %s", cmd, timeout)).
		WithDetail("command", cmd).
		WithDetail("timeout", timeout.String())
}

// CommandFailed creates a command execution failure error
func CommandFailed(cmd, stderr string, err error) *LookoutError {
	le := Wrap(err, ErrCodeCommandFailed, fmt.Sprintf("command failed: %s", cmd)).
		WithDetail("command", cmd)

	if stderr = strings.TrimSpace(stderr); stderr != "" {
		le = le.WithDetail("stderr", stderr)
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		le = le.WithDetail("exitCode", exitErr.ExitCode())
	}

	return le
}

// WatchFailed creates a filesystem watch setup error
func WatchFailed(path string, err error) *LookoutError {
	return Wrap(err, ErrCodeWatchFailed, fmt.Sprintf("cannot watch %s", path)).
		WithDetail("path", path)
}

// SessionNotFound creates a session lookup error
func SessionNotFound(sessionID string) *LookoutError {
	return New(ErrCodeSessionNotFound, fmt.Sprintf("session '%s' not found", sessionID)).
		WithDetail("sessionId", sessionID)
}
