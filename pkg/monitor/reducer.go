// Package monitor reconstructs live session state from transcript events
// and coordinates monitoring across repositories and worktrees.
package monitor

import (
	"fmt"
	"time"

	"github.com/grovetools/lookout/pkg/models"
	"github.com/grovetools/lookout/pkg/transcript"
)

// Fold applies events to the state in order. It is a pure reducer: no I/O,
// no timers. Time-based promotion to awaiting-approval is the tailer's job.
func Fold(st *models.SessionMonitorState, events []transcript.Event) {
	for _, ev := range events {
		foldOne(st, ev)
	}
}

func foldOne(st *models.SessionMonitorState, ev transcript.Event) {
	if !ev.Timestamp.IsZero() {
		if st.StartTime.IsZero() {
			st.StartTime = ev.Timestamp
		}
		if ev.Timestamp.After(st.LastActivity) {
			st.LastActivity = ev.Timestamp
		}
	}

	switch ev.Kind {
	case transcript.EventMeta:
		if ev.Usage != nil {
			st.Tokens.Add(*ev.Usage)
		}
		if ev.Model != "" {
			st.Model = ev.Model
		}
		if ev.GitBranch != "" {
			st.GitBranch = ev.GitBranch
		}

	case transcript.EventUserMessage:
		st.MessageCount++
		st.Status = models.StatusThinking
		st.AppendActivity(models.ActivityEntry{
			Timestamp:   ev.Timestamp,
			Type:        models.ActivityUserMessage,
			Description: describeText("User", ev.Text),
		})

	case transcript.EventAssistantMessage:
		st.MessageCount++
		st.Status = models.StatusWaitingForUser
		st.AppendActivity(models.ActivityEntry{
			Timestamp:   ev.Timestamp,
			Type:        models.ActivityAssistantMessage,
			Description: describeText("Assistant", ev.Text),
		})

	case transcript.EventThinking:
		st.Status = models.StatusThinking
		st.AppendActivity(models.ActivityEntry{
			Timestamp:   ev.Timestamp,
			Type:        models.ActivityThinking,
			Description: "Thinking",
		})

	case transcript.EventToolUse:
		st.Status = models.StatusExecutingTool
		st.CurrentTool = ev.ToolName
		st.ToolCalls[ev.ToolName]++
		st.Pending = &models.PendingToolUse{
			ToolName:  ev.ToolName,
			ToolUseID: ev.ToolUseID,
			Timestamp: pendingTime(ev.Timestamp),
			Input:     ev.ToolInput,
		}
		st.AppendActivity(models.ActivityEntry{
			Timestamp:   ev.Timestamp,
			Type:        models.ActivityToolUse,
			Description: describeToolUse(ev),
			CodeChange:  ev.CodeChange,
		})

	case transcript.EventToolResult:
		// Only a matching result clears the pending use; an unmatched one
		// is stale output from a use we never saw.
		if st.Pending != nil && st.Pending.ToolUseID == ev.ToolUseID {
			st.Pending = nil
			st.CurrentTool = ""
			st.Status = models.StatusIdle
		}
		st.AppendActivity(models.ActivityEntry{
			Timestamp:   ev.Timestamp,
			Type:        models.ActivityToolResult,
			Success:     !ev.IsError,
			Description: describeToolResult(ev),
		})
	}
}

// pendingTime anchors the approval heuristic. Transcript timestamps can be
// absent on some lines; fall back to observation time so the promotion
// timer still has a base.
func pendingTime(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now()
	}
	return ts
}

func describeText(who, text string) string {
	if text == "" {
		return who + " message"
	}
	return fmt.Sprintf("%s: %s", who, text)
}

func describeToolUse(ev transcript.Event) string {
	if ev.CodeChange != nil && ev.CodeChange.FilePath != "" {
		return fmt.Sprintf("%s %s", ev.ToolName, ev.CodeChange.FilePath)
	}
	return ev.ToolName
}

func describeToolResult(ev transcript.Event) string {
	if ev.IsError {
		return "Tool failed"
	}
	return "Tool completed"
}
