// Package port describes the data formats a pipeline node accepts and
// produces.
//
// Every node declares an ordered list of input candidates and an ordered
// list of output candidates. A candidate is a Spec: a Format tag plus an
// availability flag. Availability is owned by the graph manager, which
// recomputes it whenever the edges around a node change; nothing else
// should toggle it.
//
// Format-converting nodes additionally declare Relations, a static table
// saying which output formats can follow from which input format. Nodes
// without relations are assumed to be able to emit any of their outputs for
// any accepted input.
package port
