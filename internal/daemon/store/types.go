// Package store provides the in-memory state store for the lookout daemon.
package store

import (
	"github.com/grovetools/lookout/pkg/models"
)

// State represents the daemon's complete world view.
type State struct {
	Repositories []*models.SelectedRepository           `json:"repositories"`
	Sessions     map[string]*models.SessionMonitorState `json:"sessions"` // Keyed by session ID
}

// UpdateType defines what kind of data changed.
type UpdateType string

const (
	UpdateSnapshot UpdateType = "snapshot"
	UpdateTree     UpdateType = "tree"
	UpdateSession  UpdateType = "session"
	UpdateAlert    UpdateType = "alert"
)

// AlertPayload is the payload of an UpdateAlert update.
type AlertPayload struct {
	SessionID string                `json:"session_id"`
	Pending   models.PendingToolUse `json:"pending"`
}

// Update represents a change to the state.
type Update struct {
	Type    UpdateType  `json:"type"`
	Payload interface{} `json:"payload"`
}
