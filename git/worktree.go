// Package git detects repository structure for monitored projects.
//
// Detection is best effort: git may be missing, slow, or the path may not be
// a repository at all. Every entry point degrades to a usable fallback
// instead of failing the caller.
package git

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/lookout/command"
	"github.com/grovetools/lookout/logging"
	"github.com/grovetools/lookout/pkg/models"
)

// WorktreeInfo is one block of `git worktree list --porcelain` output.
type WorktreeInfo struct {
	Path   string
	Branch string
	Commit string
	Bare   bool
}

// Detector discovers the worktrees of a repository. Commands run under the
// runner's timeout; a hung git never blocks the caller.
type Detector struct {
	runner *command.Runner
	logger *logrus.Entry
}

// NewDetector creates a Detector with the default command timeout.
func NewDetector() *Detector {
	return &Detector{
		runner: command.NewRunner(),
		logger: logging.NewLogger("git"),
	}
}

// NewDetectorWithRunner creates a Detector with a custom runner, used by
// tests to inject fake git output or forced timeouts.
func NewDetectorWithRunner(r *command.Runner) *Detector {
	return &Detector{
		runner: r,
		logger: logging.NewLogger("git"),
	}
}

// Detect lists the worktree branches of the repository at repoPath. When git
// fails, times out, or the path is not a repository, it returns a single
// synthetic main entry so the caller always has somewhere to attach
// sessions.
func (d *Detector) Detect(ctx context.Context, repoPath string) []*models.WorktreeBranch {
	infos, err := d.ListWorktrees(ctx, repoPath)
	if err != nil || len(infos) == 0 {
		if err != nil {
			d.logger.WithField("repo", repoPath).WithError(err).Debug("worktree detection failed, falling back to single branch")
		}
		return []*models.WorktreeBranch{d.syntheticMain(ctx, repoPath)}
	}

	branches := make([]*models.WorktreeBranch, 0, len(infos))
	for i, info := range infos {
		if info.Bare {
			continue
		}
		branch := info.Branch
		if branch == "" {
			// Detached HEAD: show the abbreviated commit instead.
			branch = shortCommit(info.Commit)
		}
		branches = append(branches, &models.WorktreeBranch{
			Path:   info.Path,
			Branch: branch,
			IsMain: i == 0,
		})
	}
	if len(branches) == 0 {
		return []*models.WorktreeBranch{d.syntheticMain(ctx, repoPath)}
	}
	return branches
}

// ListWorktrees runs `git worktree list --porcelain` in repoPath.
func (d *Detector) ListWorktrees(ctx context.Context, repoPath string) ([]WorktreeInfo, error) {
	out, err := d.runner.Output(ctx, repoPath, "git", "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parseWorktreeList(out), nil
}

// CurrentBranch returns the checked-out branch of repoPath, or "" on
// detached HEAD or error.
func (d *Detector) CurrentBranch(ctx context.Context, repoPath string) string {
	out, err := d.runner.Output(ctx, repoPath, "git", "branch", "--show-current")
	if err != nil {
		return ""
	}
	return out
}

func (d *Detector) syntheticMain(ctx context.Context, repoPath string) *models.WorktreeBranch {
	branch := d.CurrentBranch(ctx, repoPath)
	if branch == "" {
		branch = "main"
	}
	return &models.WorktreeBranch{
		Path:   filepath.Clean(repoPath),
		Branch: branch,
		IsMain: true,
	}
}

// parseWorktreeList parses porcelain output. Blocks are separated by blank
// lines; the first block is the main worktree.
func parseWorktreeList(output string) []WorktreeInfo {
	var worktrees []WorktreeInfo

	var current WorktreeInfo
	flush := func() {
		if current.Path != "" {
			worktrees = append(worktrees, current)
		}
		current = WorktreeInfo{}
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			flush()
			continue
		}
		if line == "bare" {
			current.Bare = true
			continue
		}
		key, value, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		switch key {
		case "worktree":
			current.Path = value
		case "HEAD":
			current.Commit = value
		case "branch":
			current.Branch = strings.TrimPrefix(value, "refs/heads/")
		}
	}
	flush()

	return worktrees
}

func shortCommit(commit string) string {
	if len(commit) > 8 {
		return commit[:8]
	}
	return commit
}
