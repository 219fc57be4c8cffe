// Package state persists the user's repository selection between runs.
package state

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/grovetools/lookout/pkg/paths"
)

// State is the persisted selection: which repositories are watched and
// which worktree branches are expanded in listings.
type State struct {
	// Repositories are the absolute paths of watched repositories, in
	// selection order.
	Repositories []string `yaml:"repositories"`
	// Expanded maps worktree path to its expansion flag.
	Expanded map[string]bool `yaml:"expanded,omitempty"`
}

func filePath() string {
	return filepath.Join(paths.StateDir(), "selected.yml")
}

// Load reads the persisted state. A missing file yields an empty state.
func Load() (*State, error) {
	data, err := os.ReadFile(filePath())
	if err != nil {
		if os.IsNotExist(err) {
			return &State{Expanded: make(map[string]bool)}, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	if st.Expanded == nil {
		st.Expanded = make(map[string]bool)
	}
	return &st, nil
}

// Save writes the state atomically via a temp file rename.
func Save(st *State) error {
	path := filePath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// AddPath appends a repository path if not already present. It returns true
// if the path was added.
func (s *State) AddPath(path string) bool {
	for _, p := range s.Repositories {
		if p == path {
			return false
		}
	}
	s.Repositories = append(s.Repositories, path)
	return true
}

// RemovePath removes a repository path. It returns true if the path was
// present.
func (s *State) RemovePath(path string) bool {
	for i, p := range s.Repositories {
		if p == path {
			s.Repositories = append(s.Repositories[:i], s.Repositories[i+1:]...)
			return true
		}
	}
	return false
}
