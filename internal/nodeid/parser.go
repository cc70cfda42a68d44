package nodeid

import (
	"fmt"
	"regexp"
	"strconv"
)

// nameRegex matches `base@vN` with an optional `[k]` clone suffix.
var nameRegex = regexp.MustCompile(`^([a-zA-Z0-9_.-]+)@v(\d+)(?:\[(\d+)\])?$`)

// isValidBase checks for undesirable but technically valid names.
func isValidBase(base string) bool {
	if base == "." || base == ".." || base == "-" {
		return false
	}
	return true
}

// Parse creates a Name by parsing its canonical string representation.
func Parse(raw string) (Name, error) {
	if raw == "" {
		return Name{}, fmt.Errorf("node name cannot be empty")
	}

	matches := nameRegex.FindStringSubmatch(raw)
	if matches == nil {
		return Name{}, fmt.Errorf("invalid node name format: %q", raw)
	}
	if !isValidBase(matches[1]) {
		return Name{}, fmt.Errorf("invalid node base name: %q", matches[1])
	}

	version, err := strconv.Atoi(matches[2])
	if err != nil {
		return Name{}, fmt.Errorf("parsing version of %q: %w", raw, err)
	}
	n := New(matches[1], version)
	if matches[3] != "" {
		k, err := strconv.Atoi(matches[3])
		if err != nil {
			return Name{}, fmt.Errorf("parsing clone index of %q: %w", raw, err)
		}
		n.Clone = k
	}
	return n, nil
}
