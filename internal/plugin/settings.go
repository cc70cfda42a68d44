package plugin

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Settings is a parsed set of "key=value" lines, the shape of
// ExportSettings/ImportSettings.
type Settings map[string]string

// ParseSettings parses exported settings lines. Blank lines are skipped; a
// line without '=' is an error.
func ParseSettings(lines []string) (Settings, error) {
	s := make(Settings, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("malformed settings line %q", line)
		}
		s[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return s, nil
}

// Lines renders the settings sorted by key.
func (s Settings) Lines() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+s[k])
	}
	return lines
}

// Int reads an integer setting, returning def when the key is absent.
func (s Settings) Int(key string, def int) (int, error) {
	v, ok := s[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("setting %q: %w", key, err)
	}
	return n, nil
}

// String reads a string setting, returning def when the key is absent.
func (s Settings) String(key, def string) string {
	if v, ok := s[key]; ok {
		return v
	}
	return def
}
