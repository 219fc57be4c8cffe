package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPendingToolUse_IsLikelyAwaitingApproval(t *testing.T) {
	start := time.Now()
	p := &PendingToolUse{ToolName: "Bash", ToolUseID: "toolu_01", Timestamp: start}

	assert.False(t, p.IsLikelyAwaitingApproval(start.Add(1900*time.Millisecond)))
	assert.True(t, p.IsLikelyAwaitingApproval(start.Add(2100*time.Millisecond)))
}

func TestSessionMonitorState_AppendActivityBounded(t *testing.T) {
	st := NewSessionMonitorState("s1")
	for i := 0; i < MaxRecentActivities+10; i++ {
		st.AppendActivity(ActivityEntry{Type: ActivityUserMessage})
	}
	assert.Len(t, st.RecentActivities, MaxRecentActivities)
}

func TestSessionMonitorState_CloneIsDeep(t *testing.T) {
	st := NewSessionMonitorState("s1")
	st.ToolCalls["Edit"] = 1
	st.Pending = &PendingToolUse{ToolUseID: "toolu_01"}
	st.AppendActivity(ActivityEntry{Type: ActivityToolUse, Description: "Edit"})

	clone := st.Clone()
	clone.ToolCalls["Edit"] = 99
	clone.Pending.ToolUseID = "changed"
	clone.RecentActivities[0].Description = "changed"

	assert.Equal(t, 1, st.ToolCalls["Edit"])
	assert.Equal(t, "toolu_01", st.Pending.ToolUseID)
	assert.Equal(t, "Edit", st.RecentActivities[0].Description)
}

func TestSelectedRepository_CloneIsDeep(t *testing.T) {
	repo := NewSelectedRepository("/home/dev/proj")
	repo.Worktrees = []*WorktreeBranch{
		{Path: "/home/dev/proj", Branch: "main", IsMain: true, Sessions: []*Session{{ID: "a"}}},
	}

	clone := repo.Clone()
	clone.Worktrees[0].Branch = "changed"
	clone.Worktrees[0].Sessions[0].ID = "changed"

	assert.Equal(t, "main", repo.Worktrees[0].Branch)
	assert.Equal(t, "a", repo.Worktrees[0].Sessions[0].ID)
	assert.Equal(t, "proj", repo.Name)
}
