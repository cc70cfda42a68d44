// Package scheduler runs a pipeline graph frame by frame.
//
// # Task Tree
//
// At Start the graph is cut into chains. The main chain follows the
// primary edges from the root; every branch edge starts a child chain that
// follows primary edges from the branch target, and so on recursively:
//
//	main:     src ─► conv ─► invert ─► pngsink
//	                   │
//	branch:            └─► stats            (every 5th frame)
//
// Each chain runs on its own goroutine. A branch chain idles until its
// parent hands it a frame.
//
// # Frame Hand-off
//
// After a node runs, the frame it produced is copied into the inbox of
// every branch leaving that node whose cadence fires on the current frame
// number, followed by a non-blocking wake. The inbox holds one frame: a
// branch slower than its cadence skips frames instead of stalling the
// parent.
//
// Within a chain, a node that uses a destination buffer writes into a
// buffer owned by the chain for that node, reallocated only when its
// geometry changes. An in-place node mutates the buffer it receives, and
// the same buffer moves on to the next node.
//
// # Lifecycle
//
//	Init ─► Running ─► Stopping ─► Stopped
//	           └─────► Pausing ──┘
//
// Stop closes every chain's stop channel depth first. Each chain then
// waits for its children and finalizes its own nodes, so nodes are always
// finalized bottom-up. A failing node is fatal to the whole run.
package scheduler
