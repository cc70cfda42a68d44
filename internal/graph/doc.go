// Package graph owns the pipeline graph: the loaded plugin nodes, the
// typed edges between them and the cadence of every branch edge.
//
// # Shape
//
// Nodes form a tree rooted at the entry node. An attached node has exactly
// one predecessor; a node may have many successors. The successors of a
// node are ordered, and the first successor without a cadence entry
// carries the main flow. Every other successor starts a branch that the
// scheduler runs on its own goroutine:
//
//	testpattern@v2 ──► colorconv@v2 ──► invert@v2 ──► pngsink@v2
//	                        │
//	                        └──(every 5th)──► stats@v2
//
// # Types
//
// Every node declares its input and output formats. An edge u->v is valid
// when v accepts u's active output format. Format-converting nodes carry a
// relation table restricting which outputs follow from which input; the
// manager keeps every active output consistent with it. An output is
// available when some successor accepts it, or when the node has no
// successors at all.
//
// # Editing
//
// Connect, Replace, Disconnect and DisconnectAll edit the tree. Every edit
// validates first and mutates only when every check passed. A node that is
// already attached somewhere is transparently cloned when an edit attaches
// it a second time. Clones share the origin's implementation and settings
// and are named `base@vN[k]`.
//
// # Thread-Safety
//
// All Manager methods are safe to call concurrently. Structural edits must
// not happen while a scheduler is running the graph; the application
// rejects them before they get here.
package graph
