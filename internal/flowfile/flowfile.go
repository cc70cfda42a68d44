// Package flowfile saves a pipeline graph as a TOML flow description and
// replays such a description into a graph manager.
//
// The description has four parts: the main flow as ordered links from the
// root along the primary edges, one sub flow per branch (its first link is
// the branch edge itself, followed by the branch's own chain), the
// exported settings of every node, and the cadence entries.
package flowfile

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
)

// Link is one edge of a saved flow.
type Link struct {
	Node      string `toml:"node"`
	Clone     bool   `toml:"clone"`
	Next      string `toml:"next"`
	NextClone bool   `toml:"next_clone"`
}

// MainFlow is the chain starting at the root.
type MainFlow struct {
	Root      string `toml:"root"`
	RootClone bool   `toml:"root_clone,omitempty"`
	Links     []Link `toml:"links"`
}

// SubFlow is a branch: its branch edge followed by its chain.
type SubFlow struct {
	Links []Link `toml:"links"`
}

// NodeSettings holds the exported state of one node.
type NodeSettings struct {
	Name         string   `toml:"name"`
	Clone        bool     `toml:"clone,omitempty"`
	ActiveOutput string   `toml:"active_output,omitempty"`
	Lines        []string `toml:"lines"`
}

// Cycle is one cadence entry.
type Cycle struct {
	Src   string `toml:"src"`
	Dst   string `toml:"dst"`
	Every int    `toml:"every"`
}

// Flow is a complete saved flow.
type Flow struct {
	Main     MainFlow       `toml:"main_flow"`
	Sub      []SubFlow      `toml:"sub_flow"`
	Settings []NodeSettings `toml:"settings"`
	Cycles   []Cycle        `toml:"cycle"`
}

// Encode writes f as TOML.
func Encode(w io.Writer, f *Flow) error {
	if err := toml.NewEncoder(w).Encode(f); err != nil {
		return fmt.Errorf("encoding flow: %w", err)
	}
	return nil
}

// Decode reads a TOML flow. Unknown keys are an error.
func Decode(r io.Reader) (*Flow, error) {
	var f Flow
	md, err := toml.NewDecoder(r).Decode(&f)
	if err != nil {
		return nil, fmt.Errorf("decoding flow: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("decoding flow: unknown keys %v", undecoded)
	}
	return &f, nil
}

// WriteFile encodes f into path.
func WriteFile(path string, f *Flow) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating flow file: %w", err)
	}
	if err := Encode(file, f); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// ReadFile decodes the flow in path.
func ReadFile(path string) (*Flow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening flow file: %w", err)
	}
	defer file.Close()
	return Decode(file)
}
