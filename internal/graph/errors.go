package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vk/framegrid/internal/port"
)

// ErrUnknownNode is matched by errors naming a node the manager does not
// know.
var ErrUnknownNode = errors.New("unknown node")

// LoadReason classifies a LoadError.
type LoadReason string

const (
	LoadDuplicate          LoadReason = "duplicate node name"
	LoadUnsupportedVersion LoadReason = "unsupported interface version"
	LoadUnknownImpl        LoadReason = "unknown implementation"
	LoadCategoryMismatch   LoadReason = "category mismatch"
	LoadBadPorts           LoadReason = "ports do not fit category"
	LoadSettings           LoadReason = "settings rejected"
	LoadManifest           LoadReason = "unreadable manifest"
	LoadInvalidName        LoadReason = "invalid node name"
)

// LoadError is a per-plugin load failure. It is reported as a warning and
// the plugin is skipped.
type LoadError struct {
	Plugin string
	File   string
	Reason LoadReason
	Err    error
}

func (e *LoadError) Error() string {
	var sb strings.Builder
	sb.WriteString("load")
	if e.Plugin != "" {
		fmt.Fprintf(&sb, " %s", e.Plugin)
	}
	if e.File != "" {
		fmt.Fprintf(&sb, " (%s)", e.File)
	}
	fmt.Fprintf(&sb, ": %s", e.Reason)
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

func (e *LoadError) Unwrap() error { return e.Err }

// ConnectionReason classifies a ConnectionError.
type ConnectionReason string

const (
	ReasonUnknownNode           ConnectionReason = "unknown node"
	ReasonIncompatibleInput     ConnectionReason = "no output format accepted by target"
	ReasonIncompatibleSuccessor ConnectionReason = "no output format accepted by successor"
	ReasonNotSuccessor          ConnectionReason = "not a successor"
	ReasonCycle                 ConnectionReason = "edge would create a cycle"
	ReasonSourceInUse           ConnectionReason = "source node already attached"
	ReasonInUse                 ConnectionReason = "node already attached and not cloneable"
	ReasonTerminalNode          ConnectionReason = "node has no outputs"
	ReasonFormatMismatch        ConnectionReason = "active output format not accepted"
)

// ConnectionError is returned by graph edits that fail validation. The
// graph is left untouched.
type ConnectionError struct {
	From   string
	To     string
	Reason ConnectionReason
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s -> %s: %s", e.From, e.To, e.Reason)
}

// Is matches ErrUnknownNode for ReasonUnknownNode.
func (e *ConnectionError) Is(target error) bool {
	return target == ErrUnknownNode && e.Reason == ReasonUnknownNode
}

// PortAvailabilityConflict reports an edge whose target cannot settle on an
// available output for the format it receives.
type PortAvailabilityConflict struct {
	From       string
	To         string
	Format     port.Format
	Active     port.Format
	Candidates []port.Format
}

func (e *PortAvailabilityConflict) Error() string {
	return fmt.Sprintf("port availability conflict on %s -> %s: input %s, active output %s, candidates %v",
		e.From, e.To, e.Format, e.Active, e.Candidates)
}

// CloneError is returned when a node cannot be cloned or released.
type CloneError struct {
	Node   string
	Reason string
}

func (e *CloneError) Error() string {
	return fmt.Sprintf("clone %s: %s", e.Node, e.Reason)
}

func unknown(from, to string) *ConnectionError {
	return &ConnectionError{From: from, To: to, Reason: ReasonUnknownNode}
}
