// Package watch abstracts filesystem change notification for single files.
//
// Transcript files are appended to by another process, so the watcher
// watches the containing directory and filters events down to the one file.
// Watching the file directly breaks on editors and tools that replace files
// via rename.
package watch

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/grovetools/lookout/errors"
)

// Event signals that the watched file changed. It carries no payload; the
// consumer re-reads the file from its own offset.
type Event struct{}

// Watcher delivers change events for a single file path.
type Watcher interface {
	// Watch starts watching path. It returns an event channel and a stop
	// function. The channel is closed when the stop function is called.
	Watch(path string) (<-chan Event, func(), error)
}

// FSWatcher is the production Watcher backed by fsnotify.
type FSWatcher struct{}

// NewFSWatcher returns a Watcher backed by fsnotify.
func NewFSWatcher() *FSWatcher {
	return &FSWatcher{}
}

func (w *FSWatcher) Watch(path string) (<-chan Event, func(), error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, errors.WatchFailed(path, err)
	}

	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, nil, errors.WatchFailed(dir, err)
	}

	events := make(chan Event, 1)
	done := make(chan struct{})

	go func() {
		defer close(events)
		for {
			select {
			case <-done:
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if ev.Name != path {
					continue
				}
				if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
					continue
				}
				// Coalesce: a pending event already covers this change.
				select {
				case events <- Event{}:
				default:
				}
			case _, ok := <-fsw.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			fsw.Close()
		})
	}
	return events, stop, nil
}

// FakeWatcher is a test double that delivers events on demand.
type FakeWatcher struct {
	mu    sync.Mutex
	chans map[string]chan Event
}

// NewFakeWatcher returns an empty FakeWatcher.
func NewFakeWatcher() *FakeWatcher {
	return &FakeWatcher{chans: make(map[string]chan Event)}
}

func (w *FakeWatcher) Watch(path string) (<-chan Event, func(), error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ch := make(chan Event, 8)
	w.chans[path] = ch

	var once sync.Once
	stop := func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			if w.chans[path] == ch {
				delete(w.chans, path)
			}
			close(ch)
		})
	}
	return ch, stop, nil
}

// Trigger delivers an event for path. It is a no-op if the path is not
// being watched.
func (w *FakeWatcher) Trigger(path string) {
	w.mu.Lock()
	ch := w.chans[path]
	w.mu.Unlock()
	if ch != nil {
		ch <- Event{}
	}
}
