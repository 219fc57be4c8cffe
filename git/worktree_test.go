package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/lookout/command"
	"github.com/grovetools/lookout/testutil"
)

// cannedExecutor replaces every command with `cat` of a fixture file.
type cannedExecutor struct {
	path string
}

func (e *cannedExecutor) Command(name string, args ...string) *exec.Cmd {
	return exec.Command("cat", e.path)
}

func (e *cannedExecutor) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, "cat", e.path)
}

// slowExecutor replaces every command with one that outlives any timeout.
type slowExecutor struct{}

func (e *slowExecutor) Command(name string, args ...string) *exec.Cmd {
	return exec.Command("sleep", "30")
}

func (e *slowExecutor) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, "sleep", "30")
}

func TestParseWorktreeList(t *testing.T) {
	output := `worktree /path/to/main
HEAD abcdef1234567890
branch refs/heads/main

worktree /path/to/feature
HEAD 1234567890abcdef
branch refs/heads/feature-x

worktree /path/to/detached
HEAD fedcba0987654321
detached

`

	worktrees := parseWorktreeList(output)

	require.Len(t, worktrees, 3)
	assert.Equal(t, "/path/to/main", worktrees[0].Path)
	assert.Equal(t, "main", worktrees[0].Branch)
	assert.Equal(t, "abcdef1234567890", worktrees[0].Commit)

	assert.Equal(t, "/path/to/feature", worktrees[1].Path)
	assert.Equal(t, "feature-x", worktrees[1].Branch)

	assert.Equal(t, "/path/to/detached", worktrees[2].Path)
	assert.Empty(t, worktrees[2].Branch)
}

func TestParseWorktreeList_Bare(t *testing.T) {
	output := `worktree /path/to/repo.git
bare

worktree /path/to/checkout
HEAD abcdef1234567890
branch refs/heads/main
`

	worktrees := parseWorktreeList(output)

	require.Len(t, worktrees, 2)
	assert.True(t, worktrees[0].Bare)
	assert.False(t, worktrees[1].Bare)
}

func TestDetector_ListWorktrees(t *testing.T) {
	testutil.RequireGit(t)

	tmpDir := t.TempDir()
	testutil.InitGitRepo(t, tmpDir)
	testutil.AddWorktree(t, tmpDir, "feature-wt", "feature")

	detector := NewDetector()

	worktrees, err := detector.ListWorktrees(context.Background(), tmpDir)
	require.NoError(t, err)
	assert.Len(t, worktrees, 2)

	var found bool
	for _, wt := range worktrees {
		if wt.Branch == "feature" {
			found = true
			assert.Contains(t, wt.Path, "feature-wt")
			break
		}
	}
	assert.True(t, found, "feature worktree should be found")
}

func TestDetector_Detect_MarksMain(t *testing.T) {
	testutil.RequireGit(t)

	tmpDir := t.TempDir()
	testutil.InitGitRepo(t, tmpDir)
	testutil.AddWorktree(t, tmpDir, "other-wt", "other")

	detector := NewDetector()

	branches := detector.Detect(context.Background(), tmpDir)
	require.Len(t, branches, 2)
	assert.True(t, branches[0].IsMain)
	assert.Equal(t, "main", branches[0].Branch)
	assert.False(t, branches[1].IsMain)
}

func TestDetector_Detect_WithInjectedOutput(t *testing.T) {
	fixture := filepath.Join(t.TempDir(), "porcelain.txt")
	require.NoError(t, os.WriteFile(fixture, []byte(`worktree /repos/alpha
HEAD abcdef1234567890
branch refs/heads/main

worktree /repos/alpha-wt/feature
HEAD 1234567890abcdef
branch refs/heads/feature-x
`), 0644))

	runner := command.NewRunnerWithExecutor(&cannedExecutor{path: fixture}, time.Second)
	detector := NewDetectorWithRunner(runner)

	branches := detector.Detect(context.Background(), t.TempDir())
	require.Len(t, branches, 2)
	assert.True(t, branches[0].IsMain)
	assert.Equal(t, "main", branches[0].Branch)
	assert.Equal(t, "feature-x", branches[1].Branch)
	assert.False(t, branches[1].IsMain)
}

func TestDetector_Detect_TimeoutFallsBackToMain(t *testing.T) {
	runner := command.NewRunnerWithExecutor(&slowExecutor{}, 100*time.Millisecond)
	detector := NewDetectorWithRunner(runner)

	start := time.Now()
	branches := detector.Detect(context.Background(), t.TempDir())
	elapsed := time.Since(start)

	// Both the worktree listing and the branch query hit the timeout, so
	// detection degrades to a single synthetic main entry.
	require.Len(t, branches, 1)
	assert.True(t, branches[0].IsMain)
	assert.Equal(t, "main", branches[0].Branch)
	assert.Less(t, elapsed, 5*time.Second)
}

func TestDetector_Detect_NonRepoFallsBack(t *testing.T) {
	testutil.RequireGit(t)

	tmpDir := t.TempDir()

	detector := NewDetector()

	branches := detector.Detect(context.Background(), tmpDir)
	require.Len(t, branches, 1)
	assert.True(t, branches[0].IsMain)
	assert.Equal(t, "main", branches[0].Branch)
	assert.Equal(t, tmpDir, branches[0].Path)
}
