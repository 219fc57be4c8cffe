package monitor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/lookout/pkg/models"
	"github.com/grovetools/lookout/pkg/paths"
	"github.com/grovetools/lookout/pkg/watch"
	"github.com/grovetools/lookout/testutil"
)

func TestMergeWorktrees_PreservesExpansion(t *testing.T) {
	existing := []*models.WorktreeBranch{
		{Path: "/repo", Branch: "main", IsMain: true, IsExpanded: true},
		{Path: "/repo-wt/old", Branch: "old-branch"},
	}
	detected := []*models.WorktreeBranch{
		{Path: "/repo", Branch: "renamed", IsMain: true},
		{Path: "/repo-wt/new", Branch: "new-branch"},
	}

	merged := mergeWorktrees(existing, detected)

	require.Len(t, merged, 2)
	assert.Equal(t, "renamed", merged[0].Branch)
	assert.True(t, merged[0].IsExpanded, "expansion flag must survive re-detection")
	assert.Equal(t, "/repo-wt/new", merged[1].Path)
	assert.False(t, merged[1].IsExpanded)
}

func TestAssignSessions_ByBranch(t *testing.T) {
	repo := models.NewSelectedRepository("/repos/alpha")
	repo.Worktrees = []*models.WorktreeBranch{
		{Path: "/repos/alpha", Branch: "main", IsMain: true},
		{Path: "/repos/alpha-wt/feature-x", Branch: "feature-x"},
	}

	sessions := []*models.Session{
		{ID: "s1", ProjectPath: "/repos/alpha", Branch: "feature-x"},
		{ID: "s2", ProjectPath: "/repos/alpha", Branch: ""},
		{ID: "s3", ProjectPath: "/elsewhere", Branch: "feature-x"},
	}

	assignSessions(repo, sessions)

	main := repo.MainWorktree()
	feature := repo.FindWorktree("/repos/alpha-wt/feature-x")

	// Branch match wins over path prefix: s1 lands on feature-x, never main.
	require.Len(t, feature.Sessions, 1)
	assert.Equal(t, "s1", feature.Sessions[0].ID)
	assert.True(t, feature.Sessions[0].IsWorktree)

	require.Len(t, main.Sessions, 1)
	assert.Equal(t, "s2", main.Sessions[0].ID)

	for _, wt := range repo.Worktrees {
		for _, sess := range wt.Sessions {
			assert.NotEqual(t, "s3", sess.ID, "unmonitored path must be excluded")
		}
	}
}

func TestAssignSessions_UnknownBranchFallsBackToMain(t *testing.T) {
	repo := models.NewSelectedRepository("/repos/alpha")
	repo.Worktrees = []*models.WorktreeBranch{
		{Path: "/repos/alpha", Branch: "main", IsMain: true},
	}

	assignSessions(repo, []*models.Session{
		{ID: "s1", ProjectPath: "/repos/alpha", Branch: "deleted-branch"},
	})

	require.Len(t, repo.MainWorktree().Sessions, 1)
}

func TestService_RefreshEndToEnd(t *testing.T) {
	testutil.RequireGit(t)

	dataRoot := t.TempDir()
	repoDir := filepath.Join(t.TempDir(), "alpha")
	require.NoError(t, os.MkdirAll(repoDir, 0755))
	testutil.InitGitRepo(t, repoDir)
	testutil.AddWorktree(t, repoDir, "alpha-feature", "feature-x")

	// Two sessions: one on feature-x, one with no branch marker.
	testutil.AppendJSONL(t, paths.HistoryLogPath(dataRoot),
		models.HistoryEntry{Display: "build the parser", Timestamp: 1000, Project: repoDir, SessionID: "sess-feature"},
		models.HistoryEntry{Display: "old prompt", Timestamp: 2000, Project: repoDir, SessionID: "sess-legacy"},
		models.HistoryEntry{Display: "second prompt", Timestamp: 3000, Project: repoDir, SessionID: "sess-feature"},
	)
	testutil.AppendRawLines(t, paths.TranscriptPath(dataRoot, repoDir, "sess-feature"),
		`{"type":"user","gitBranch":"feature-x","message":{"content":"build the parser"}}`,
	)
	testutil.AppendRawLines(t, paths.TranscriptPath(dataRoot, repoDir, "sess-legacy"),
		`{"type":"user","message":{"content":"old prompt"}}`,
	)

	svc := NewService(ServiceOptions{
		DataRoot: dataRoot,
		Watcher:  watch.NewFakeWatcher(),
	})
	defer svc.Close()

	svc.AddRepository(context.Background(), repoDir)

	repos := svc.Repositories()
	require.Len(t, repos, 1)
	repo := repos[0]
	assert.Equal(t, "alpha", repo.Name)
	require.Len(t, repo.Worktrees, 2)

	main := repo.MainWorktree()
	require.NotNil(t, main)
	require.Len(t, main.Sessions, 1)
	legacy := main.Sessions[0]
	assert.Equal(t, "sess-legacy", legacy.ID)
	assert.True(t, legacy.IsActive)

	var feature *models.WorktreeBranch
	for _, wt := range repo.Worktrees {
		if wt.Branch == "feature-x" {
			feature = wt
		}
	}
	require.NotNil(t, feature)
	require.Len(t, feature.Sessions, 1)
	sess := feature.Sessions[0]
	assert.Equal(t, "sess-feature", sess.ID)
	assert.Equal(t, 2, sess.MessageCount)
	assert.Equal(t, "build the parser", sess.FirstMessage)
	assert.Equal(t, "second prompt", sess.LastMessage)
	assert.Equal(t, "build-the-parser", sess.Slug)
}

func TestService_RefreshIsIdempotent(t *testing.T) {
	testutil.RequireGit(t)

	dataRoot := t.TempDir()
	repoDir := filepath.Join(t.TempDir(), "alpha")
	require.NoError(t, os.MkdirAll(repoDir, 0755))
	testutil.InitGitRepo(t, repoDir)

	testutil.AppendJSONL(t, paths.HistoryLogPath(dataRoot),
		models.HistoryEntry{Display: "hello", Timestamp: 1000, Project: repoDir, SessionID: "s1"},
	)

	svc := NewService(ServiceOptions{
		DataRoot: dataRoot,
		Watcher:  watch.NewFakeWatcher(),
	})
	defer svc.Close()

	svc.AddRepository(context.Background(), repoDir)
	first := svc.Repositories()

	svc.RefreshSessions(context.Background())
	second := svc.Repositories()

	assert.Equal(t, first, second)
}

func TestService_ConcurrentRefreshes(t *testing.T) {
	testutil.RequireGit(t)

	dataRoot := t.TempDir()
	repoDir := filepath.Join(t.TempDir(), "alpha")
	require.NoError(t, os.MkdirAll(repoDir, 0755))
	testutil.InitGitRepo(t, repoDir)

	testutil.AppendJSONL(t, paths.HistoryLogPath(dataRoot),
		models.HistoryEntry{Display: "hello", Timestamp: 1000, Project: repoDir, SessionID: "s1"},
	)

	svc := NewService(ServiceOptions{
		DataRoot: dataRoot,
		Watcher:  watch.NewFakeWatcher(),
	})
	defer svc.Close()

	svc.AddRepository(context.Background(), repoDir)

	// Overlapping refreshes coalesce instead of interleaving; the tree must
	// come out whole no matter how many callers pile on.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.RefreshSessions(context.Background())
		}()
	}
	wg.Wait()

	repos := svc.Repositories()
	require.Len(t, repos, 1)
	main := repos[0].MainWorktree()
	require.NotNil(t, main)
	require.Len(t, main.Sessions, 1)
	assert.Equal(t, "s1", main.Sessions[0].ID)
}

func TestService_AddRepositoryIsIdempotent(t *testing.T) {
	testutil.RequireGit(t)

	dataRoot := t.TempDir()
	repoDir := filepath.Join(t.TempDir(), "alpha")
	require.NoError(t, os.MkdirAll(repoDir, 0755))
	testutil.InitGitRepo(t, repoDir)

	svc := NewService(ServiceOptions{
		DataRoot: dataRoot,
		Watcher:  watch.NewFakeWatcher(),
	})
	defer svc.Close()

	svc.AddRepository(context.Background(), repoDir)
	svc.AddRepository(context.Background(), repoDir)

	assert.Len(t, svc.Repositories(), 1)
}

func TestService_SetWorktreeExpanded(t *testing.T) {
	repoDir := t.TempDir()

	var published [][]*models.SelectedRepository
	svc := NewService(ServiceOptions{
		DataRoot: t.TempDir(),
		Watcher:  watch.NewFakeWatcher(),
		OnTree: func(tree []*models.SelectedRepository) {
			published = append(published, tree)
		},
	})
	defer svc.Close()

	// A plain directory detects as a single synthetic main worktree.
	svc.AddRepository(context.Background(), repoDir)

	assert.False(t, svc.SetWorktreeExpanded("/not/a/worktree", true))
	require.True(t, svc.SetWorktreeExpanded(repoDir, true))

	last := published[len(published)-1]
	require.Len(t, last, 1)
	require.Len(t, last[0].Worktrees, 1)
	assert.True(t, last[0].Worktrees[0].IsExpanded)

	// The flag survives a full refresh via the worktree merge.
	svc.RefreshSessions(context.Background())
	repos := svc.Repositories()
	require.Len(t, repos[0].Worktrees, 1)
	assert.True(t, repos[0].Worktrees[0].IsExpanded)
}

func TestService_RemoveRepositoryPublishes(t *testing.T) {
	var published [][]*models.SelectedRepository
	svc := NewService(ServiceOptions{
		DataRoot: t.TempDir(),
		Watcher:  watch.NewFakeWatcher(),
		OnTree: func(tree []*models.SelectedRepository) {
			published = append(published, tree)
		},
	})
	defer svc.Close()

	svc.RemoveRepository("/not/monitored")
	require.Len(t, published, 1)
	assert.Empty(t, published[0])
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "fix-the-flaky-test", slugify("Fix the flaky test in CI, please"))
	assert.Equal(t, "hello", slugify("hello"))
	assert.Equal(t, "", slugify("!!!"))
}
