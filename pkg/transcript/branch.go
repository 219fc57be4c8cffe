package transcript

import (
	"bufio"
	"encoding/json"
	"os"
)

// branchScanBufferSize must fit the longest transcript line; assistant
// messages with large tool inputs can run to hundreds of kilobytes.
const branchScanBufferSize = 1024 * 1024

// ScanBranch reads the transcript at path until the first line carrying a
// gitBranch field and returns its value. A missing file, malformed lines,
// or a transcript with no branch marker all yield "".
func ScanBranch(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), branchScanBufferSize)

	for scanner.Scan() {
		var marker struct {
			GitBranch string `json:"gitBranch"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &marker); err != nil {
			continue
		}
		if marker.GitBranch != "" {
			return marker.GitBranch
		}
	}
	return ""
}
