package monitor

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/lookout/git"
	"github.com/grovetools/lookout/logging"
	"github.com/grovetools/lookout/pkg/history"
	"github.com/grovetools/lookout/pkg/models"
	"github.com/grovetools/lookout/pkg/paths"
	"github.com/grovetools/lookout/pkg/transcript"
	"github.com/grovetools/lookout/pkg/watch"
)

// activeWindow is how recently a transcript must have been written for its
// session to count as active.
const activeWindow = 5 * time.Minute

// Service is the coordinator. It owns the repository tree exclusively:
// callers request operations, subscribers receive complete snapshots. All
// tree mutations are serialized; detection and scanning I/O happens outside
// the lock so unrelated work is never stalled behind a slow git.
type Service struct {
	dataRoot string
	detector *git.Detector
	index    *history.Index
	watcher  watch.Watcher
	alert    time.Duration
	logger   *logrus.Entry

	onTree    func([]*models.SelectedRepository)
	onSession func(*models.SessionMonitorState)
	onAlert   func(sessionID string, pending models.PendingToolUse)

	mu            sync.Mutex
	repos         []*models.SelectedRepository
	tailers       map[string]*Tailer
	refreshing    bool
	refreshQueued bool
}

// ServiceOptions configures a Service. Zero-value callbacks are allowed;
// unset ones are simply not invoked.
type ServiceOptions struct {
	// DataRoot is the agent data directory. Empty means the default
	// resolution via paths.AgentDataRoot.
	DataRoot string
	Detector *git.Detector
	Watcher  watch.Watcher
	// AlertTimeout is passed to each session tailer.
	AlertTimeout time.Duration

	OnTree    func([]*models.SelectedRepository)
	OnSession func(*models.SessionMonitorState)
	OnAlert   func(sessionID string, pending models.PendingToolUse)
}

// NewService creates a Service.
func NewService(opts ServiceOptions) *Service {
	dataRoot := opts.DataRoot
	if dataRoot == "" {
		dataRoot = paths.AgentDataRoot()
	}
	detector := opts.Detector
	if detector == nil {
		detector = git.NewDetector()
	}
	watcher := opts.Watcher
	if watcher == nil {
		watcher = watch.NewFSWatcher()
	}
	return &Service{
		dataRoot:  dataRoot,
		detector:  detector,
		index:     history.NewIndex(paths.HistoryLogPath(dataRoot)),
		watcher:   watcher,
		alert:     opts.AlertTimeout,
		logger:    logging.NewLogger("monitor"),
		onTree:    opts.OnTree,
		onSession: opts.OnSession,
		onAlert:   opts.OnAlert,
		tailers:   make(map[string]*Tailer),
	}
}

// AddRepository starts monitoring the repository at path. Adding a path
// that is already monitored is a no-op.
func (s *Service) AddRepository(ctx context.Context, path string) {
	s.mu.Lock()
	for _, repo := range s.repos {
		if repo.Path == path {
			s.mu.Unlock()
			return
		}
	}
	s.repos = append(s.repos, models.NewSelectedRepository(path))
	s.mu.Unlock()

	s.RefreshSessions(ctx)
}

// RemoveRepository drops the repository and republishes the tree.
func (s *Service) RemoveRepository(path string) {
	s.mu.Lock()
	for i, repo := range s.repos {
		if repo.Path == path {
			s.repos = append(s.repos[:i], s.repos[i+1:]...)
			break
		}
	}
	snapshot := models.CloneRepositories(s.repos)
	cb := s.onTree
	s.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// Repositories returns a snapshot of the current tree.
func (s *Service) Repositories() []*models.SelectedRepository {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CloneRepositories(s.repos)
}

// RefreshSessions rebuilds the whole tree: re-detects worktrees, rescans
// history, regroups sessions and publishes one atomic snapshot. A refresh
// requested while one is in flight is coalesced into a single follow-up
// run, never interleaved. Failures degrade to empty results per repository;
// refresh never returns an error.
func (s *Service) RefreshSessions(ctx context.Context) {
	s.mu.Lock()
	if s.refreshing {
		s.refreshQueued = true
		s.mu.Unlock()
		return
	}
	s.refreshing = true
	s.mu.Unlock()

	for {
		s.refreshOnce(ctx)

		s.mu.Lock()
		if !s.refreshQueued {
			s.refreshing = false
			s.mu.Unlock()
			return
		}
		s.refreshQueued = false
		s.mu.Unlock()
	}
}

func (s *Service) refreshOnce(ctx context.Context) {
	// Snapshot the current tree; all I/O below works on the copy.
	s.mu.Lock()
	working := models.CloneRepositories(s.repos)
	s.mu.Unlock()

	for _, repo := range working {
		detected := s.detector.Detect(ctx, repo.Path)
		repo.Worktrees = mergeWorktrees(repo.Worktrees, detected)
	}

	prefixes := collectPrefixes(working)
	entries, err := s.index.Scan(prefixes)
	if err != nil {
		s.logger.WithError(err).Warn("history scan failed, continuing with no sessions")
		entries = nil
	}

	sessions := s.buildSessions(entries)
	for _, repo := range working {
		assignSessions(repo, sessions)
	}

	s.mu.Lock()
	// Keep entries for repositories added mid-refresh; the queued follow-up
	// run will fill them in.
	merged := make([]*models.SelectedRepository, 0, len(s.repos))
	byPath := make(map[string]*models.SelectedRepository, len(working))
	for _, repo := range working {
		byPath[repo.Path] = repo
	}
	for _, repo := range s.repos {
		if fresh, ok := byPath[repo.Path]; ok {
			merged = append(merged, fresh)
		} else {
			merged = append(merged, repo)
		}
	}
	s.repos = merged
	snapshot := models.CloneRepositories(s.repos)
	cb := s.onTree
	s.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// SetWorktreeExpanded flags the worktree at path as expanded or collapsed
// and republishes the tree. The flag survives later refreshes via the
// worktree merge. Returns false when no monitored worktree has that path.
func (s *Service) SetWorktreeExpanded(path string, expanded bool) bool {
	s.mu.Lock()
	found := false
	for _, repo := range s.repos {
		if wt := repo.FindWorktree(path); wt != nil {
			wt.IsExpanded = expanded
			found = true
		}
	}
	if !found {
		s.mu.Unlock()
		return false
	}
	snapshot := models.CloneRepositories(s.repos)
	cb := s.onTree
	s.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
	return true
}

// MonitorSession starts tailing the transcript of sessionID under
// projectPath. Monitoring an already-monitored session is a no-op.
func (s *Service) MonitorSession(sessionID, projectPath string) error {
	s.mu.Lock()
	if _, ok := s.tailers[sessionID]; ok {
		s.mu.Unlock()
		return nil
	}
	tailer := NewTailer(TailerOptions{
		SessionID:    sessionID,
		Path:         paths.TranscriptPath(s.dataRoot, projectPath, sessionID),
		Watcher:      s.watcher,
		AlertTimeout: s.alert,
		OnUpdate:     s.onSession,
		OnAlert:      s.onAlert,
	})
	s.tailers[sessionID] = tailer
	s.mu.Unlock()

	if err := tailer.Start(); err != nil {
		s.mu.Lock()
		delete(s.tailers, sessionID)
		s.mu.Unlock()
		return err
	}
	return nil
}

// StopMonitoring stops the tailer for sessionID. Unknown ids are no-ops.
func (s *Service) StopMonitoring(sessionID string) {
	s.mu.Lock()
	tailer := s.tailers[sessionID]
	delete(s.tailers, sessionID)
	s.mu.Unlock()

	if tailer != nil {
		tailer.Stop()
	}
}

// SessionState returns a snapshot of a monitored session's state, or nil
// if the session is not monitored.
func (s *Service) SessionState(sessionID string) *models.SessionMonitorState {
	s.mu.Lock()
	tailer := s.tailers[sessionID]
	s.mu.Unlock()

	if tailer == nil {
		return nil
	}
	return tailer.State()
}

// Close stops every tailer.
func (s *Service) Close() {
	s.mu.Lock()
	tailers := s.tailers
	s.tailers = make(map[string]*Tailer)
	s.mu.Unlock()

	for _, t := range tailers {
		t.Stop()
	}
}

// buildSessions groups history entries by session id and fills in the
// per-session fields that need transcript access.
func (s *Service) buildSessions(entries []models.HistoryEntry) []*models.Session {
	bySession := make(map[string]*models.Session)
	var order []string

	for _, e := range entries {
		sess, ok := bySession[e.SessionID]
		if !ok {
			sess = &models.Session{
				ID:           e.SessionID,
				ProjectPath:  e.Project,
				FirstMessage: e.Display,
				Slug:         slugify(e.Display),
			}
			bySession[e.SessionID] = sess
			order = append(order, e.SessionID)
		}
		sess.MessageCount++
		sess.LastMessage = e.Display
		if t := e.Time(); t.After(sess.LastActivity) {
			sess.LastActivity = t
		}
	}

	now := time.Now()
	sessions := make([]*models.Session, 0, len(order))
	for _, id := range order {
		sess := bySession[id]
		transcriptPath := paths.TranscriptPath(s.dataRoot, sess.ProjectPath, sess.ID)
		sess.Branch = transcript.ScanBranch(transcriptPath)
		if info, err := os.Stat(transcriptPath); err == nil {
			if mod := info.ModTime(); mod.After(sess.LastActivity) {
				sess.LastActivity = mod
			}
			sess.IsActive = now.Sub(info.ModTime()) < activeWindow
		}
		sessions = append(sessions, sess)
	}
	return sessions
}

// mergeWorktrees applies the merge rule: an existing entry matched by path
// keeps its expansion flag and takes the new branch; unseen paths are
// appended; paths no longer detected are dropped.
func mergeWorktrees(existing, detected []*models.WorktreeBranch) []*models.WorktreeBranch {
	expanded := make(map[string]bool, len(existing))
	for _, wt := range existing {
		expanded[wt.Path] = wt.IsExpanded
	}

	merged := make([]*models.WorktreeBranch, 0, len(detected))
	for _, wt := range detected {
		merged = append(merged, &models.WorktreeBranch{
			Path:       wt.Path,
			Branch:     wt.Branch,
			IsMain:     wt.IsMain,
			IsExpanded: expanded[wt.Path],
		})
	}
	return merged
}

// assignSessions distributes sessions across the repository's worktrees.
// A session goes to the worktree whose branch equals the session's recorded
// branch; sessions with no recorded branch go to the main entry only, which
// keeps legacy transcripts off feature worktrees.
func assignSessions(repo *models.SelectedRepository, sessions []*models.Session) {
	prefixes := repoPrefixes(repo)

	for _, wt := range repo.Worktrees {
		wt.Sessions = nil
	}
	main := repo.MainWorktree()

	for _, sess := range sessions {
		if !matchesAny(sess.ProjectPath, prefixes) {
			continue
		}

		target := main
		if sess.Branch != "" {
			target = nil
			for _, wt := range repo.Worktrees {
				if wt.Branch == sess.Branch {
					target = wt
					break
				}
			}
			if target == nil {
				// Branch no longer checked out anywhere; show it on main
				// rather than dropping the session.
				target = main
			}
		}
		if target == nil {
			continue
		}

		copied := sess.Clone()
		copied.IsWorktree = !target.IsMain
		target.Sessions = append(target.Sessions, copied)
	}

	for _, wt := range repo.Worktrees {
		sort.SliceStable(wt.Sessions, func(i, j int) bool {
			return wt.Sessions[i].LastActivity.After(wt.Sessions[j].LastActivity)
		})
	}
}

func collectPrefixes(repos []*models.SelectedRepository) []string {
	var prefixes []string
	for _, repo := range repos {
		prefixes = append(prefixes, repoPrefixes(repo)...)
	}
	return prefixes
}

func repoPrefixes(repo *models.SelectedRepository) []string {
	prefixes := []string{repo.Path}
	for _, wt := range repo.Worktrees {
		if wt.Path != repo.Path {
			prefixes = append(prefixes, wt.Path)
		}
	}
	return prefixes
}

func matchesAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// slugify turns the first words of a prompt into a short readable name.
func slugify(display string) string {
	display = strings.ToLower(display)
	var b strings.Builder
	lastHyphen := true
	words := 0
	for _, r := range display {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				words++
				if words >= 4 {
					return b.String()
				}
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
