package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSWatcher_DeliversWriteEvents(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "session.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0644))

	w := NewFSWatcher()
	events, stop, err := w.Watch(path)
	require.NoError(t, err)
	defer stop()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("{\"type\":\"user\"}\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case _, ok := <-events:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a watch event for the appended write")
	}
}

func TestFSWatcher_IgnoresSiblingFiles(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "session.jsonl")
	other := filepath.Join(tmpDir, "other.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0644))

	w := NewFSWatcher()
	events, stop, err := w.Watch(path)
	require.NoError(t, err)
	defer stop()

	require.NoError(t, os.WriteFile(other, []byte("{}\n"), 0644))

	select {
	case <-events:
		t.Fatal("sibling file write should not produce an event")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestFSWatcher_StopClosesChannel(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "session.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0644))

	w := NewFSWatcher()
	events, stop, err := w.Watch(path)
	require.NoError(t, err)

	stop()
	stop() // idempotent

	select {
	case _, ok := <-events:
		assert.False(t, ok, "channel should be closed after stop")
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after stop")
	}
}

func TestFakeWatcher_Trigger(t *testing.T) {
	w := NewFakeWatcher()
	events, stop, err := w.Watch("/some/file")
	require.NoError(t, err)
	defer stop()

	w.Trigger("/some/file")
	w.Trigger("/unwatched/file")

	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatal("expected triggered event")
	}
}
