// Package testutil provides git and transcript fixtures for tests.
package testutil

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// RequireGit skips the test if git is not installed.
func RequireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

// InitGitRepo initializes a git repository with one commit on main.
func InitGitRepo(t *testing.T, dir string) {
	t.Helper()

	RunGitCommand(t, dir, "init")
	RunGitCommand(t, dir, "config", "user.name", "Test User")
	RunGitCommand(t, dir, "config", "user.email", "test@example.com")

	readme := filepath.Join(dir, "README.md")
	if err := os.WriteFile(readme, []byte("# Test Project\n"), 0644); err != nil {
		t.Fatalf("Failed to create README: %v", err)
	}

	RunGitCommand(t, dir, "add", ".")
	RunGitCommand(t, dir, "commit", "-m", "Initial commit")

	// Normalize the default branch name across git versions.
	RunGitCommand(t, dir, "branch", "-m", "main")
}

// CreateBranch creates and checks out a new branch.
func CreateBranch(t *testing.T, dir, branch string) {
	t.Helper()
	RunGitCommand(t, dir, "checkout", "-b", branch)
}

// AddWorktree adds a worktree on a new branch and returns its path.
func AddWorktree(t *testing.T, repoDir, name, branch string) string {
	t.Helper()
	worktreePath := filepath.Join(filepath.Dir(repoDir), name)
	RunGitCommand(t, repoDir, "worktree", "add", worktreePath, "-b", branch)
	return worktreePath
}

// RunGitCommand runs a git command in dir and fails the test on error.
func RunGitCommand(t *testing.T, dir string, args ...string) {
	t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
}

// AppendJSONL appends records to a JSONL file, one per line, creating the
// file and parent directories as needed.
func AppendJSONL(t *testing.T, path string, records ...interface{}) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir for %s: %v", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			t.Fatalf("Failed to encode record: %v", err)
		}
	}
}

// AppendRawLines appends raw lines verbatim, used for malformed input cases.
func AppendRawLines(t *testing.T, path string, lines ...string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir for %s: %v", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()

	for _, line := range lines {
		if _, err := f.WriteString(line + "\n"); err != nil {
			t.Fatalf("Failed to write line: %v", err)
		}
	}
}
