// Package paths provides XDG-compliant path resolution for lookout and the
// on-disk layout of the monitored agent's data directory.
//
// Resolution order for lookout's own directories:
//  1. LOOKOUT_HOME (portable root) → $LOOKOUT_HOME/{config,state}
//  2. XDG env vars → $XDG_*_HOME/lookout
//  3. Platform defaults → ~/.config/lookout, ~/.local/state/lookout
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

func getConfigHome() string {
	if home := os.Getenv("LOOKOUT_HOME"); home != "" {
		return filepath.Join(home, "config")
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return xdg
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config")
	}
	return ""
}

func getStateHome() string {
	if home := os.Getenv("LOOKOUT_HOME"); home != "" {
		return filepath.Join(home, "state")
	}
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return xdg
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "state")
	}
	return ""
}

// ConfigDir returns the lookout configuration directory.
func ConfigDir() string {
	base := getConfigHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "lookout")
}

// StateDir returns the lookout state directory. Used for logs, the
// selected-repository list, and the daemon socket fallback.
func StateDir() string {
	base := getStateHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "lookout")
}

// RuntimeDir returns the directory for the daemon's unix socket.
func RuntimeDir() string {
	if home := os.Getenv("LOOKOUT_HOME"); home != "" {
		return filepath.Join(home, "run")
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "lookout")
	}
	return StateDir()
}

// SocketPath returns the path to the lookout daemon unix socket.
func SocketPath() string {
	return filepath.Join(RuntimeDir(), "lookoutd.sock")
}

// PidFilePath returns the path to the lookout daemon pid file.
func PidFilePath() string {
	return filepath.Join(RuntimeDir(), "lookoutd.pid")
}

// EnsureDirs creates the lookout directories if they don't exist.
func EnsureDirs() error {
	for _, dir := range []string{ConfigDir(), StateDir(), RuntimeDir()} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// AgentDataRoot returns the root of the monitored agent's data directory,
// normally ~/.claude. LOOKOUT_DATA_ROOT overrides it for tests and
// non-standard installs.
func AgentDataRoot() string {
	if root := os.Getenv("LOOKOUT_DATA_ROOT"); root != "" {
		return root
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".claude")
	}
	return ""
}

// HistoryLogPath returns the agent's prompt history log under dataRoot.
func HistoryLogPath(dataRoot string) string {
	return filepath.Join(dataRoot, "history.jsonl")
}

// ProjectsDir returns the directory holding per-project transcript folders.
func ProjectsDir(dataRoot string) string {
	return filepath.Join(dataRoot, "projects")
}

// EncodeProjectPath converts a project path into the directory name the
// agent uses under projects/: slashes, underscores and dots all become
// hyphens, so /home/dev/my_proj maps to -home-dev-my-proj.
func EncodeProjectPath(projectPath string) string {
	clean := filepath.Clean(projectPath)
	r := strings.NewReplacer("/", "-", "_", "-", ".", "-")
	return r.Replace(clean)
}

// TranscriptPath returns the transcript file for a session of a project.
func TranscriptPath(dataRoot, projectPath, sessionID string) string {
	return filepath.Join(ProjectsDir(dataRoot), EncodeProjectPath(projectPath), sessionID+".jsonl")
}
