package models

import "time"

// HistoryEntry is one record of the agent's history log: a submitted
// prompt with the session and project it belongs to. Immutable once parsed.
type HistoryEntry struct {
	Display   string `json:"display"`
	Timestamp int64  `json:"timestamp"` // milliseconds since epoch
	Project   string `json:"project"`
	SessionID string `json:"sessionId"`
}

// Time converts the millisecond epoch timestamp.
func (h HistoryEntry) Time() time.Time {
	return time.UnixMilli(h.Timestamp)
}
