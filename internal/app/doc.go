// Package app wires framegrid together. It owns the plugin registry, the
// graph manager and the frame scheduler of one process, and drives them
// from a validated Config, decoupled from any specific entrypoint like a
// CLI.
//
// # Lifecycle
//
// NewApp registers the compiled-in modules. Load discovers the plugin
// manifests, replays the flow file when one is configured and creates a
// scheduler over the resulting graph. Run then works in one of two modes:
//
//   - Headless: the pipeline starts immediately and runs until the context
//     is cancelled, MaxFrames is reached, a node fails or a pause
//     completes. With Watch set, a change to the flow file stops the
//     pipeline, reloads everything and starts it again.
//   - Editor: the app connects to the editor over socket.io and waits.
//     The editor edits the graph and starts, pauses and stops runs.
//
// Whenever a pause completes and SnapshotPath is set, the captured frames
// are written there as msgpack.
package app
