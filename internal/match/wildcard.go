// Package match implements the '*' wildcard patterns used to select counters
// ("Memory/*", "*/Draw Calls Count") and remote-write metric names.
package match

import "strings"

// Pattern is a compiled '*' wildcard.
type Pattern struct {
	segments []string
	prefix   bool
	suffix   bool
	any      bool
}

// Compile parses one wildcard pattern.
// Params: pattern may contain any number of '*'.
// Returns: compiled pattern and false when pattern is blank.
func Compile(pattern string) (Pattern, bool) {
	p := strings.TrimSpace(pattern)
	switch {
	case p == "":
		return Pattern{}, false
	case strings.Trim(p, "*") == "":
		return Pattern{any: true}, true
	}

	return Pattern{
		segments: strings.Split(p, "*"),
		prefix:   !strings.HasPrefix(p, "*"),
		suffix:   !strings.HasSuffix(p, "*"),
	}, true
}

// CompileAll compiles a pattern list, skipping blank entries.
// Params: patterns raw wildcard strings.
// Returns: compiled patterns (nil when none are usable).
func CompileAll(patterns []string) []Pattern {
	var out []Pattern
	for _, raw := range patterns {
		if compiled, ok := Compile(raw); ok {
			out = append(out, compiled)
		}
	}
	return out
}

// Any reports whether value matches at least one pattern.
func Any(patterns []Pattern, value string) bool {
	for _, p := range patterns {
		if p.Match(value) {
			return true
		}
	}
	return false
}

// Match reports whether value matches the pattern.
// Params: value is the compared text.
// Returns: true on match.
func (p Pattern) Match(value string) bool {
	if p.any {
		return true
	}
	switch len(p.segments) {
	case 0:
		return false
	case 1:
		return value == p.segments[0]
	}

	first, last := 0, len(p.segments)-1
	rest := value

	if p.prefix {
		if !strings.HasPrefix(rest, p.segments[0]) {
			return false
		}
		rest = rest[len(p.segments[0]):]
		first = 1
	}

	end := len(p.segments)
	if p.suffix {
		end = last
	}

	for i := first; i < end; i++ {
		segment := p.segments[i]
		if segment == "" {
			continue
		}
		at := strings.Index(rest, segment)
		if at < 0 {
			return false
		}
		rest = rest[at+len(segment):]
	}

	if p.suffix {
		return strings.HasSuffix(rest, p.segments[last])
	}
	return true
}

// Wildcard matches value against a single uncompiled pattern.
func Wildcard(pattern, value string) bool {
	compiled, ok := Compile(pattern)
	return ok && compiled.Match(value)
}
