// Package history reads the agent's prompt history log, which records one
// entry per submitted prompt across all sessions.
package history

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/lookout/logging"
	"github.com/grovetools/lookout/pkg/models"
)

// Index incrementally parses an append-only history log. The log's size is
// tracked between scans: unchanged size skips re-parsing, growth reads only
// the appended tail, shrinkage (rotation) triggers a full re-read.
type Index struct {
	path   string
	logger *logrus.Entry

	mu       sync.Mutex
	lastSize int64
	entries  []models.HistoryEntry
}

// NewIndex creates an Index over the history log at path.
func NewIndex(path string) *Index {
	return &Index{
		path:   path,
		logger: logging.NewLogger("history"),
	}
}

// Scan returns the history entries whose project path starts with any of
// the given prefixes, in file order. A missing log yields an empty result.
// With no prefixes, all entries are returned.
func (i *Index) Scan(prefixes []string) ([]models.HistoryEntry, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.refresh(); err != nil {
		return nil, err
	}

	var out []models.HistoryEntry
	for _, e := range i.entries {
		if matchesAny(e.Project, prefixes) {
			out = append(out, e)
		}
	}
	return out, nil
}

// refresh brings the cached entries up to date with the file on disk.
func (i *Index) refresh() error {
	info, err := os.Stat(i.path)
	if err != nil {
		if os.IsNotExist(err) {
			i.lastSize = 0
			i.entries = nil
			return nil
		}
		return err
	}

	size := info.Size()
	switch {
	case size == i.lastSize:
		return nil
	case size < i.lastSize:
		// Rotation or truncation: start over.
		i.logger.WithField("path", i.path).Debug("history log shrank, re-reading from scratch")
		i.lastSize = 0
		i.entries = nil
	}

	f, err := os.Open(i.path)
	if err != nil {
		return err
	}
	defer f.Close()

	if i.lastSize > 0 {
		if _, err := f.Seek(i.lastSize, io.SeekStart); err != nil {
			return err
		}
	}

	reader := bufio.NewReaderSize(f, 64*1024)
	offset := i.lastSize
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return err
		}
		if len(line) == 0 {
			break
		}
		if line[len(line)-1] != '\n' {
			// Incomplete tail line, leave it for the next scan.
			break
		}

		offset += int64(len(line))

		var entry models.HistoryEntry
		if jsonErr := json.Unmarshal(line[:len(line)-1], &entry); jsonErr != nil {
			// One bad line never fails the scan.
			continue
		}
		if entry.SessionID == "" {
			continue
		}
		i.entries = append(i.entries, entry)

		if err == io.EOF {
			break
		}
	}

	i.lastSize = offset
	return nil
}

func matchesAny(project string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(project, p) {
			return true
		}
	}
	return false
}
