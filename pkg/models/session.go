package models

import (
	"path/filepath"
	"time"
)

// Session represents one agent session discovered in the history log.
// The ID is the transcript file's UUID and is stable for the lifetime of
// that file. A session belongs to exactly one worktree at a time, chosen
// by branch match on each rescan.
type Session struct {
	ID           string    `json:"id"`
	ProjectPath  string    `json:"project_path"`
	Branch       string    `json:"branch,omitempty"`
	IsWorktree   bool      `json:"is_worktree"`
	LastActivity time.Time `json:"last_activity"`
	MessageCount int       `json:"message_count"`
	IsActive     bool      `json:"is_active"`
	FirstMessage string    `json:"first_message,omitempty"`
	LastMessage  string    `json:"last_message,omitempty"`
	Slug         string    `json:"slug,omitempty"`
}

// Clone returns a copy of the session.
func (s *Session) Clone() *Session {
	out := *s
	return &out
}

// WorktreeBranch is one working directory of a repository and the sessions
// currently assigned to it. Path is unique within a repository.
type WorktreeBranch struct {
	Path       string     `json:"path"`
	Branch     string     `json:"branch"`
	IsMain     bool       `json:"is_main"`
	IsExpanded bool       `json:"is_expanded"`
	Sessions   []*Session `json:"sessions"`
}

// SelectedRepository is a repository root the user chose to monitor.
type SelectedRepository struct {
	Path      string            `json:"path"`
	Name      string            `json:"name"`
	Worktrees []*WorktreeBranch `json:"worktrees"`
}

// NewSelectedRepository builds a repository entry for the given root path.
// The display name is the last path component.
func NewSelectedRepository(path string) *SelectedRepository {
	return &SelectedRepository{
		Path: path,
		Name: filepath.Base(path),
	}
}

// FindWorktree returns the worktree entry with the given path, or nil.
func (r *SelectedRepository) FindWorktree(path string) *WorktreeBranch {
	for _, wt := range r.Worktrees {
		if wt.Path == path {
			return wt
		}
	}
	return nil
}

// MainWorktree returns the repository's main (non-linked) worktree entry,
// or nil if detection has not produced one yet.
func (r *SelectedRepository) MainWorktree() *WorktreeBranch {
	for _, wt := range r.Worktrees {
		if wt.IsMain {
			return wt
		}
	}
	return nil
}

// Clone returns a deep copy of the repository tree. Published snapshots are
// clones so subscribers never share mutable state with the coordinator.
func (r *SelectedRepository) Clone() *SelectedRepository {
	out := &SelectedRepository{
		Path:      r.Path,
		Name:      r.Name,
		Worktrees: make([]*WorktreeBranch, 0, len(r.Worktrees)),
	}
	for _, wt := range r.Worktrees {
		wtCopy := &WorktreeBranch{
			Path:       wt.Path,
			Branch:     wt.Branch,
			IsMain:     wt.IsMain,
			IsExpanded: wt.IsExpanded,
			Sessions:   make([]*Session, 0, len(wt.Sessions)),
		}
		for _, s := range wt.Sessions {
			sCopy := *s
			wtCopy.Sessions = append(wtCopy.Sessions, &sCopy)
		}
		out.Worktrees = append(out.Worktrees, wtCopy)
	}
	return out
}

// CloneRepositories deep-copies a full repository list.
func CloneRepositories(repos []*SelectedRepository) []*SelectedRepository {
	out := make([]*SelectedRepository, 0, len(repos))
	for _, r := range repos {
		out = append(out, r.Clone())
	}
	return out
}
