// Package export dumps the counter catalogue to a text listing and a JSON document.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"perfhud/internal/profiler"
)

// ErrWrite reports that an export file could not be written.
var ErrWrite = errors.New("export write failed")

// Counter is one JSON catalogue entry.
type Counter struct {
	Name string `json:"name"`
	Unit string `json:"unit"`
}

// Export writes every available counter to textPath and jsonPath.
// Params: registry counter catalogue; textPath and jsonPath output files (overwritten).
// Returns: error wrapping ErrWrite.
func Export(registry *profiler.Registry, textPath, jsonPath string) error {
	return ExportFiltered(registry, textPath, jsonPath, nil)
}

// ExportFiltered writes the counters whose key matches include.
// Both files are staged before either is replaced, so a failure leaves the previous pair intact.
// Params: include "Category/Name" wildcard patterns (empty keeps all).
// Returns: error wrapping ErrWrite.
func ExportFiltered(registry *profiler.Registry, textPath, jsonPath string, include []string) error {
	counters := profiler.Filter(registry.Sorted(), include)

	var staged []stagedFile
	defer func() {
		for _, file := range staged {
			os.Remove(file.tmp)
		}
	}()

	if strings.TrimSpace(textPath) != "" {
		file, err := stage(textPath, Text(counters))
		if err != nil {
			return err
		}
		staged = append(staged, file)
	}
	if strings.TrimSpace(jsonPath) != "" {
		payload, err := JSON(profiler.SortedAndGrouped(counters))
		if err != nil {
			return fmt.Errorf("%w: encode %s: %v", ErrWrite, jsonPath, err)
		}
		file, err := stage(jsonPath, payload)
		if err != nil {
			return err
		}
		staged = append(staged, file)
	}

	for _, file := range staged {
		if err := os.Rename(file.tmp, file.path); err != nil {
			return fmt.Errorf("%w: rename %s: %v", ErrWrite, file.path, err)
		}
	}
	return nil
}

// Text renders the catalogue listing.
// Params: counters sorted by category, then name.
// Returns: "Available stats:" header followed by one tab-separated line per counter.
func Text(counters []profiler.Descriptor) []byte {
	var b strings.Builder
	b.WriteString("Available stats:\n")
	for _, c := range counters {
		b.WriteString(c.Category.String())
		b.WriteString("\t\t - ")
		b.WriteString(c.Name)
		b.WriteString("\t\t - ")
		b.WriteString(c.Unit.String())
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// JSON renders the catalogue as {"Category": [{"name": ..., "unit": ...}]}.
// Params: groups sorted counter groups.
// Returns: indented JSON document.
func JSON(groups profiler.Groups) ([]byte, error) {
	doc := make(map[string][]Counter, len(groups))
	for _, group := range groups {
		entries := make([]Counter, 0, len(group.Counters))
		for _, c := range group.Counters {
			entries = append(entries, Counter{Name: c.Name, Unit: c.Unit.String()})
		}
		doc[group.Category.String()] = entries
	}
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(payload, '\n'), nil
}

type stagedFile struct {
	path string
	tmp  string
}

// stage writes payload to a temp file next to path.
// Params: path final destination; payload file content.
// Returns: staged file to rename into place, or error wrapping ErrWrite.
func stage(path string, payload []byte) (stagedFile, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return stagedFile{}, fmt.Errorf("%w: create temp for %s: %v", ErrWrite, path, err)
	}
	file := stagedFile{path: path, tmp: tmp.Name()}

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(file.tmp)
		return stagedFile{}, fmt.Errorf("%w: write %s: %v", ErrWrite, path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(file.tmp)
		return stagedFile{}, fmt.Errorf("%w: close %s: %v", ErrWrite, path, err)
	}
	if err := os.Chmod(file.tmp, 0o644); err != nil {
		os.Remove(file.tmp)
		return stagedFile{}, fmt.Errorf("%w: chmod %s: %v", ErrWrite, path, err)
	}
	return file, nil
}
