package monitor

import (
	"bufio"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/lookout/logging"
	"github.com/grovetools/lookout/pkg/models"
	"github.com/grovetools/lookout/pkg/transcript"
	"github.com/grovetools/lookout/pkg/watch"
)

// Tailer follows one session's transcript file. Each change re-reads only
// the appended bytes, folds the new lines into the session state, and
// publishes a snapshot. It also owns the two per-session timers: the short
// promotion timer that relabels a stalled tool use as awaiting approval,
// and the one-shot alert timer.
type Tailer struct {
	sessionID string
	path      string
	watcher   watch.Watcher
	alertWait time.Duration
	logger    *logrus.Entry

	// onUpdate receives a snapshot after every state change. onAlert fires
	// at most once per pending tool use.
	onUpdate func(*models.SessionMonitorState)
	onAlert  func(sessionID string, pending models.PendingToolUse)

	mu      sync.Mutex
	state   *models.SessionMonitorState
	offset  int64
	stopped bool

	promoteTimer *time.Timer
	alertTimer   *time.Timer
	alertedIDs   map[string]bool

	stopWatch func()
	done      chan struct{}
}

// TailerOptions configures a Tailer.
type TailerOptions struct {
	SessionID string
	Path      string
	Watcher   watch.Watcher
	// AlertTimeout is how long a pending tool use may sit before the alert
	// callback fires once.
	AlertTimeout time.Duration
	OnUpdate     func(*models.SessionMonitorState)
	OnAlert      func(sessionID string, pending models.PendingToolUse)
}

// NewTailer creates a Tailer. Call Start to begin following the file.
func NewTailer(opts TailerOptions) *Tailer {
	return &Tailer{
		sessionID:  opts.SessionID,
		path:       opts.Path,
		watcher:    opts.Watcher,
		alertWait:  opts.AlertTimeout,
		onUpdate:   opts.OnUpdate,
		onAlert:    opts.OnAlert,
		state:      models.NewSessionMonitorState(opts.SessionID),
		alertedIDs: make(map[string]bool),
		logger:     logging.NewLogger("tailer"),
		done:       make(chan struct{}),
	}
}

// Start reads the existing transcript, publishes the initial state, and
// begins watching for appends.
func (t *Tailer) Start() error {
	events, stopWatch, err := t.watcher.Watch(t.path)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.stopWatch = stopWatch
	t.mu.Unlock()

	t.refresh()

	go func() {
		for {
			select {
			case <-t.done:
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				t.refresh()
			}
		}
	}()

	return nil
}

// Stop cancels the watch and both timers. Repeated calls are no-ops. After
// Stop returns no further updates or alerts are delivered.
func (t *Tailer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	t.stopped = true
	close(t.done)

	if t.stopWatch != nil {
		t.stopWatch()
	}
	t.cancelTimersLocked()
}

// State returns a snapshot of the current session state.
func (t *Tailer) State() *models.SessionMonitorState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Clone()
}

// refresh reads newly appended complete lines and folds them into state.
// The update callback runs outside the lock, after the fold completes.
func (t *Tailer) refresh() {
	t.mu.Lock()
	snapshot := t.refreshLocked()
	cb := t.onUpdate
	t.mu.Unlock()

	if snapshot != nil && cb != nil {
		cb(snapshot)
	}
}

func (t *Tailer) refreshLocked() *models.SessionMonitorState {
	if t.stopped {
		return nil
	}

	info, err := os.Stat(t.path)
	if err != nil {
		// Not created yet, or dropped out from under us. No data either way.
		return nil
	}

	if info.Size() < t.offset {
		// The log is append-only, so a shrink means rotation. Rebuild from
		// the start of the new file.
		t.logger.WithField("session", t.sessionID).Warn("transcript shrank, resetting")
		t.offset = 0
		t.state = models.NewSessionMonitorState(t.sessionID)
	}
	if info.Size() == t.offset {
		return nil
	}

	f, err := os.Open(t.path)
	if err != nil {
		return nil
	}
	defer f.Close()

	if t.offset > 0 {
		if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
			return nil
		}
	}

	reader := bufio.NewReaderSize(f, 64*1024)
	changed := false
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			break
		}
		if len(line) == 0 {
			break
		}
		if line[len(line)-1] != '\n' {
			// Incomplete tail, the writer is mid-line. Next event picks it up.
			break
		}

		t.offset += int64(len(line))
		if events := transcript.ParseLine(line[:len(line)-1]); len(events) > 0 {
			Fold(t.state, events)
			changed = true
		}
		if err == io.EOF {
			break
		}
	}

	if !changed {
		return nil
	}
	t.rescheduleTimersLocked()
	return t.state.Clone()
}

// rescheduleTimersLocked aligns the promotion and alert timers with the
// current pending tool use. Caller holds t.mu.
func (t *Tailer) rescheduleTimersLocked() {
	t.cancelTimersLocked()

	pending := t.state.Pending
	if pending == nil {
		return
	}

	pendingCopy := *pending
	now := time.Now()

	promoteIn := time.Until(pending.Timestamp.Add(models.ApprovalThreshold))
	if promoteIn < 0 {
		promoteIn = 0
	}
	t.promoteTimer = time.AfterFunc(promoteIn, func() {
		t.promote(pendingCopy.ToolUseID)
	})

	if t.alertWait > 0 && !t.alertedIDs[pending.ToolUseID] {
		alertIn := pending.Timestamp.Add(t.alertWait).Sub(now)
		if alertIn < 0 {
			alertIn = 0
		}
		t.alertTimer = time.AfterFunc(alertIn, func() {
			t.alert(pendingCopy)
		})
	}
}

func (t *Tailer) cancelTimersLocked() {
	if t.promoteTimer != nil {
		t.promoteTimer.Stop()
		t.promoteTimer = nil
	}
	if t.alertTimer != nil {
		t.alertTimer.Stop()
		t.alertTimer = nil
	}
}

// promote relabels the session awaiting-approval if the same tool use is
// still pending when the timer fires.
func (t *Tailer) promote(toolUseID string) {
	t.mu.Lock()
	if t.stopped || t.state.Pending == nil || t.state.Pending.ToolUseID != toolUseID ||
		t.state.Status == models.StatusAwaitingApproval {
		t.mu.Unlock()
		return
	}
	t.state.Status = models.StatusAwaitingApproval
	snapshot := t.state.Clone()
	cb := t.onUpdate
	t.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// alert fires the one-shot alert if the same tool use is still pending.
func (t *Tailer) alert(pending models.PendingToolUse) {
	t.mu.Lock()
	if t.stopped || t.state.Pending == nil || t.state.Pending.ToolUseID != pending.ToolUseID {
		t.mu.Unlock()
		return
	}
	if t.alertedIDs[pending.ToolUseID] {
		t.mu.Unlock()
		return
	}
	t.alertedIDs[pending.ToolUseID] = true
	cb := t.onAlert
	t.mu.Unlock()

	if cb != nil {
		cb(t.sessionID, pending)
	}
}
