// Package transcript decodes agent transcript lines into typed events.
//
// A transcript is newline-delimited JSON written by the agent process.
// Parsing is pure: no I/O, no state. Unrecognized and malformed lines
// produce no events since partial writes are normal at the tail of a file
// that is still growing.
package transcript

import (
	"encoding/json"
	"time"

	"github.com/grovetools/lookout/pkg/models"
)

// EventKind discriminates Event.
type EventKind string

const (
	EventUserMessage      EventKind = "user_message"
	EventAssistantMessage EventKind = "assistant_message"
	EventThinking         EventKind = "thinking"
	EventToolUse          EventKind = "tool_use"
	EventToolResult       EventKind = "tool_result"
	EventMeta             EventKind = "meta"
)

// Event is one typed occurrence decoded from a transcript line. A single
// line can yield several events when its content array holds several
// blocks.
type Event struct {
	Kind      EventKind
	Timestamp time.Time

	// Text is the (possibly truncated) message or thinking text.
	Text string

	// Tool fields, set for tool_use and tool_result events.
	ToolName  string
	ToolUseID string
	ToolInput json.RawMessage
	IsError   bool

	// SoleToolResult marks a tool_result that was the only content of its
	// line. Such lines are plumbing, not a prompt the user typed.
	SoleToolResult bool

	// CodeChange is set for Edit, Write and MultiEdit tool uses.
	CodeChange *models.CodeChangeInput

	// Meta fields, carried on whichever lines include them.
	Usage     *models.TokenUsage
	Model     string
	GitBranch string
}
