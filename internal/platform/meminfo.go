package platform

import (
	"fmt"
	"os"
	"strings"
)

// DefaultMeminfoPath is the procfs memory summary read by ReadMeminfo.
const DefaultMeminfoPath = "/proc/meminfo"

// MeminfoReader dumps a meminfo-style pseudo-file as text.
type MeminfoReader struct {
	path     string
	readFile func(string) ([]byte, error)
}

// NewMeminfoReader creates a reader for path (empty uses /proc/meminfo).
func NewMeminfoReader(path string) *MeminfoReader {
	if strings.TrimSpace(path) == "" {
		path = DefaultMeminfoPath
	}
	return &MeminfoReader{path: path, readFile: os.ReadFile}
}

// Read returns the whole file with trailing whitespace trimmed.
// Params: none.
// Returns: file text or read error.
func (r *MeminfoReader) Read() (string, error) {
	raw, err := r.readFile(r.path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", r.path, err)
	}
	return strings.TrimRight(string(raw), " \t\r\n"), nil
}
