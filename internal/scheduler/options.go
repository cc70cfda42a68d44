package scheduler

import (
	"time"

	"github.com/vk/framegrid/internal/frame"
	"github.com/vk/framegrid/internal/telemetry"
)

// Options tune a Scheduler.
type Options struct {
	// FramePeriod paces the main chain. Zero runs frames back to back.
	FramePeriod time.Duration
	// MaxFrames ends the run gracefully after that many main frames. Zero
	// runs until stopped.
	MaxFrames uint64
	// FirstNode and LastNode name the nodes whose output a pause captures.
	// They default to the root and to the last node of the main chain.
	FirstNode string
	LastNode  string
	// Geometry is the nominal frame geometry handed to sources.
	Geometry frame.Geometry
	// OnEvent receives lifecycle notifications. It is called synchronously
	// from scheduler goroutines and must not block.
	OnEvent func(Event)
	// Instruments records metrics and traces. Nil uses the global
	// OpenTelemetry providers.
	Instruments *telemetry.Instruments
}

// Snapshot holds the frames captured by the last pause.
type Snapshot struct {
	FirstNode string
	First     *frame.Frame
	LastNode  string
	Last      *frame.Frame
}

// BranchStats describes the traffic over one branch edge.
type BranchStats struct {
	Src      string
	Dst      string
	Every    int
	Released uint64
	Woken    uint64
}

// Stats is a point-in-time view of a run.
type Stats struct {
	Frames   uint64
	Branches []BranchStats
	// Nodes maps node names to their average processing time.
	Nodes map[string]time.Duration
}
