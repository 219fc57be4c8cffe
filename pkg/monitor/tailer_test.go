package monitor

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/lookout/pkg/models"
	"github.com/grovetools/lookout/pkg/watch"
	"github.com/grovetools/lookout/testutil"
)

func userLine(sec int, text string) string {
	return fmt.Sprintf(`{"type":"user","timestamp":"2026-08-29T10:00:%02dZ","message":{"content":"%s"}}`, sec, text)
}

func toolUseLine(sec int, id string) string {
	return fmt.Sprintf(`{"type":"assistant","timestamp":"2026-08-29T10:00:%02dZ","message":{"content":[{"type":"tool_use","id":"%s","name":"Bash","input":{"command":"ls"}}]}}`, sec, id)
}

func toolResultLine(sec int, id string) string {
	return fmt.Sprintf(`{"type":"user","timestamp":"2026-08-29T10:00:%02dZ","message":{"content":[{"type":"tool_result","tool_use_id":"%s","content":"ok"}]}}`, sec, id)
}

func waitForUpdate(t *testing.T, updates <-chan *models.SessionMonitorState) *models.SessionMonitorState {
	t.Helper()
	select {
	case st := <-updates:
		return st
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a state update")
		return nil
	}
}

func waitForStatus(t *testing.T, updates <-chan *models.SessionMonitorState, want models.SessionStatus) *models.SessionMonitorState {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case st := <-updates:
			if st.Status == want {
				return st
			}
		case <-deadline:
			t.Fatalf("timed out waiting for status %q", want)
			return nil
		}
	}
}

func TestTailer_InitialReadAndAppend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s1.jsonl")
	testutil.AppendRawLines(t, path, userLine(0, "hello"))

	watcher := watch.NewFakeWatcher()
	updates := make(chan *models.SessionMonitorState, 16)

	tailer := NewTailer(TailerOptions{
		SessionID: "s1",
		Path:      path,
		Watcher:   watcher,
		OnUpdate:  func(st *models.SessionMonitorState) { updates <- st },
	})
	require.NoError(t, tailer.Start())
	defer tailer.Stop()

	st := waitForUpdate(t, updates)
	assert.Equal(t, 1, st.MessageCount)
	assert.Equal(t, models.StatusThinking, st.Status)

	testutil.AppendRawLines(t, path, toolUseLine(1, "toolu_01"))
	watcher.Trigger(path)

	st = waitForUpdate(t, updates)
	assert.Equal(t, models.StatusExecutingTool, st.Status)
	assert.Equal(t, "Bash", st.CurrentTool)
	require.NotNil(t, st.Pending)
}

func TestTailer_PromotionAndOneShotAlert(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s1.jsonl")
	// Timestamp far in the past: both timers are already due when the line
	// is folded.
	testutil.AppendRawLines(t, path, toolUseLine(0, "toolu_01"))

	watcher := watch.NewFakeWatcher()
	updates := make(chan *models.SessionMonitorState, 16)
	alerts := make(chan models.PendingToolUse, 16)

	tailer := NewTailer(TailerOptions{
		SessionID:    "s1",
		Path:         path,
		Watcher:      watcher,
		AlertTimeout: 10 * time.Millisecond,
		OnUpdate:     func(st *models.SessionMonitorState) { updates <- st },
		OnAlert:      func(_ string, p models.PendingToolUse) { alerts <- p },
	})
	require.NoError(t, tailer.Start())
	defer tailer.Stop()

	waitForStatus(t, updates, models.StatusAwaitingApproval)

	select {
	case p := <-alerts:
		assert.Equal(t, "toolu_01", p.ToolUseID)
	case <-time.After(2 * time.Second):
		t.Fatal("expected an alert for the stalled tool use")
	}

	// A refresh that leaves the same tool use pending must not re-alert.
	testutil.AppendRawLines(t, path, `{"type":"assistant","message":{"content":[{"type":"text","text":"still working"}]}}`)
	watcher.Trigger(path)
	waitForUpdate(t, updates)

	select {
	case <-alerts:
		t.Fatal("alert fired twice for the same pending tool use")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTailer_ResolvedToolUseCancelsAlert(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s1.jsonl")
	testutil.AppendRawLines(t, path, toolUseLine(0, "toolu_01"), toolResultLine(1, "toolu_01"))

	watcher := watch.NewFakeWatcher()
	alerts := make(chan models.PendingToolUse, 16)

	tailer := NewTailer(TailerOptions{
		SessionID:    "s1",
		Path:         path,
		Watcher:      watcher,
		AlertTimeout: 20 * time.Millisecond,
		OnAlert:      func(_ string, p models.PendingToolUse) { alerts <- p },
	})
	require.NoError(t, tailer.Start())
	defer tailer.Stop()

	select {
	case <-alerts:
		t.Fatal("alert fired for a tool use that already has a result")
	case <-time.After(150 * time.Millisecond):
	}

	assert.Equal(t, models.StatusIdle, tailer.State().Status)
}

func TestTailer_ShrunkFileResets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s1.jsonl")
	testutil.AppendRawLines(t, path, userLine(0, "first"), userLine(1, "second"))

	watcher := watch.NewFakeWatcher()
	updates := make(chan *models.SessionMonitorState, 16)

	tailer := NewTailer(TailerOptions{
		SessionID: "s1",
		Path:      path,
		Watcher:   watcher,
		OnUpdate:  func(st *models.SessionMonitorState) { updates <- st },
	})
	require.NoError(t, tailer.Start())
	defer tailer.Stop()

	st := waitForUpdate(t, updates)
	assert.Equal(t, 2, st.MessageCount)

	require.NoError(t, os.WriteFile(path, []byte(userLine(5, "fresh")+"\n"), 0644))
	watcher.Trigger(path)

	st = waitForUpdate(t, updates)
	assert.Equal(t, 1, st.MessageCount)
}

func TestTailer_StopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s1.jsonl")
	testutil.AppendRawLines(t, path, userLine(0, "hello"))

	watcher := watch.NewFakeWatcher()

	tailer := NewTailer(TailerOptions{
		SessionID: "s1",
		Path:      path,
		Watcher:   watcher,
	})
	require.NoError(t, tailer.Start())

	tailer.Stop()
	tailer.Stop()
}
