package models

import (
	"encoding/json"
	"time"
)

// SessionStatus describes what a monitored session appears to be doing,
// reconstructed from its transcript.
type SessionStatus string

const (
	StatusIdle             SessionStatus = "idle"
	StatusThinking         SessionStatus = "thinking"
	StatusExecutingTool    SessionStatus = "executing_tool"
	StatusAwaitingApproval SessionStatus = "awaiting_approval"
	StatusWaitingForUser   SessionStatus = "waiting_for_user"
)

// ApprovalThreshold is how long a tool use may sit without a result before
// we label it "likely awaiting approval". A genuinely slow tool looks the
// same; this is a heuristic, not a certainty.
const ApprovalThreshold = 2 * time.Second

// MaxRecentActivities bounds the per-session activity log. Oldest entries
// are evicted first.
const MaxRecentActivities = 50

// TokenUsage mirrors the usage block of an assistant transcript entry.
// Counters are additive across turns.
type TokenUsage struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	CacheReadTokens     int `json:"cache_read_input_tokens"`
	CacheCreationTokens int `json:"cache_creation_input_tokens"`
}

// Add accumulates another usage block into this one.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheReadTokens += other.CacheReadTokens
	u.CacheCreationTokens += other.CacheCreationTokens
}

// PendingToolUse is a tool invocation seen in the transcript with no
// matching result yet.
type PendingToolUse struct {
	ToolName  string          `json:"tool_name"`
	ToolUseID string          `json:"tool_use_id"`
	Timestamp time.Time       `json:"timestamp"`
	Input     json.RawMessage `json:"input,omitempty"`
}

// Elapsed returns how long the tool use has been pending as of now.
func (p *PendingToolUse) Elapsed(now time.Time) time.Duration {
	return now.Sub(p.Timestamp)
}

// IsLikelyAwaitingApproval reports whether the pending tool use has been
// open long enough that the agent is probably blocked on user approval.
func (p *PendingToolUse) IsLikelyAwaitingApproval(now time.Time) bool {
	return p.Elapsed(now) > ApprovalThreshold
}

// ActivityType tags an ActivityEntry.
type ActivityType string

const (
	ActivityToolUse          ActivityType = "tool_use"
	ActivityToolResult       ActivityType = "tool_result"
	ActivityUserMessage      ActivityType = "user_message"
	ActivityAssistantMessage ActivityType = "assistant_message"
	ActivityThinking         ActivityType = "thinking"
)

// EditOperation is one edit of a MultiEdit tool input.
type EditOperation struct {
	OldString  string `json:"old_string"`
	NewString  string `json:"new_string"`
	ReplaceAll bool   `json:"replace_all,omitempty"`
}

// CodeChangeInput captures the structured input of an Edit, Write or
// MultiEdit tool use so collaborators can reconstruct a diff.
type CodeChangeInput struct {
	ToolName   string          `json:"tool_name"`
	FilePath   string          `json:"file_path"`
	OldString  string          `json:"old_string,omitempty"`
	NewString  string          `json:"new_string,omitempty"`
	ReplaceAll bool            `json:"replace_all,omitempty"`
	Edits      []EditOperation `json:"edits,omitempty"`
}

// ActivityEntry is one item of a session's bounded recent-activity log.
// Success is only meaningful for tool results.
type ActivityEntry struct {
	Timestamp   time.Time        `json:"timestamp"`
	Type        ActivityType     `json:"type"`
	Success     bool             `json:"success,omitempty"`
	Description string           `json:"description"`
	CodeChange  *CodeChangeInput `json:"code_change,omitempty"`
}

// SessionMonitorState is the live-derived view of one monitored session.
// It is mutated only by the state machine fold, owned by a single tailer.
type SessionMonitorState struct {
	SessionID        string          `json:"session_id"`
	Status           SessionStatus   `json:"status"`
	CurrentTool      string          `json:"current_tool,omitempty"`
	LastActivity     time.Time       `json:"last_activity"`
	Tokens           TokenUsage      `json:"tokens"`
	MessageCount     int             `json:"message_count"`
	ToolCalls        map[string]int  `json:"tool_calls"`
	StartTime        time.Time       `json:"start_time"`
	Model            string          `json:"model,omitempty"`
	GitBranch        string          `json:"git_branch,omitempty"`
	Pending          *PendingToolUse `json:"pending_tool_use,omitempty"`
	RecentActivities []ActivityEntry `json:"recent_activities"`
}

// NewSessionMonitorState returns an empty state for a session id.
func NewSessionMonitorState(sessionID string) *SessionMonitorState {
	return &SessionMonitorState{
		SessionID: sessionID,
		Status:    StatusIdle,
		ToolCalls: make(map[string]int),
	}
}

// AppendActivity appends an entry and evicts the oldest beyond the cap.
func (s *SessionMonitorState) AppendActivity(e ActivityEntry) {
	s.RecentActivities = append(s.RecentActivities, e)
	if n := len(s.RecentActivities); n > MaxRecentActivities {
		s.RecentActivities = append(s.RecentActivities[:0:0], s.RecentActivities[n-MaxRecentActivities:]...)
	}
}

// Clone returns a deep copy safe to hand to subscribers.
func (s *SessionMonitorState) Clone() *SessionMonitorState {
	out := *s
	out.ToolCalls = make(map[string]int, len(s.ToolCalls))
	for k, v := range s.ToolCalls {
		out.ToolCalls[k] = v
	}
	out.RecentActivities = append([]ActivityEntry(nil), s.RecentActivities...)
	if s.Pending != nil {
		p := *s.Pending
		out.Pending = &p
	}
	return &out
}
