package scheduler

import (
	"errors"
	"fmt"
)

// State is the lifecycle state of a scheduler.
type State int32

const (
	StateInit State = iota
	StateRunning
	StateStopping
	StatePausing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StatePausing:
		return "pausing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// EventKind classifies an Event.
type EventKind int

const (
	EventStarted EventKind = iota
	EventPaused
	EventStopped
	EventFatal
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventPaused:
		return "paused"
	case EventStopped:
		return "stopped"
	case EventFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Event notifies observers of run state changes. For EventFatal, Node
// names the failing node.
type Event struct {
	Kind   EventKind
	RunID  string
	Node   string
	Err    error
	Frames uint64
}

var (
	// ErrRunning is returned by Start while a run is in progress.
	ErrRunning = errors.New("pipeline is already running")
	// ErrNotRunning is returned by Pause when no run is in progress.
	ErrNotRunning = errors.New("pipeline is not running")
	// ErrNoRoot is returned by Start without a usable root node.
	ErrNoRoot = errors.New("pipeline has no root node")
)

// InitializationError reports a node whose Init failed. No frame ran.
type InitializationError struct {
	Node string
	Err  error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initializing %s: %v", e.Node, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// RuntimeProcessingError reports a node whose Process failed. It ends the
// run.
type RuntimeProcessingError struct {
	Node  string
	Frame uint64
	Err   error
}

func (e *RuntimeProcessingError) Error() string {
	return fmt.Sprintf("processing frame %d in %s: %v", e.Frame, e.Node, e.Err)
}

func (e *RuntimeProcessingError) Unwrap() error { return e.Err }

// failedNode extracts the node name from a fatal error.
func failedNode(err error) string {
	var ie *InitializationError
	if errors.As(err, &ie) {
		return ie.Node
	}
	var re *RuntimeProcessingError
	if errors.As(err, &re) {
		return re.Node
	}
	return ""
}
