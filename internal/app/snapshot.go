package app

import (
	"fmt"
	"os"
	"time"

	"github.com/vk/framegrid/internal/frame"
	"github.com/vk/framegrid/internal/scheduler"
	"github.com/vmihailenco/msgpack/v5"
)

// SnapshotFrame is one captured buffer in a snapshot file.
type SnapshotFrame struct {
	Node      string    `msgpack:"node"`
	Format    string    `msgpack:"format"`
	Width     int       `msgpack:"width"`
	Height    int       `msgpack:"height"`
	Seq       uint64    `msgpack:"seq"`
	Timestamp time.Time `msgpack:"timestamp"`
	Data      []byte    `msgpack:"data"`
}

// SnapshotFile is the msgpack document written after a pause. Frames that
// were not captured are nil.
type SnapshotFile struct {
	RunID  string         `msgpack:"run_id"`
	Frames uint64         `msgpack:"frames"`
	First  *SnapshotFrame `msgpack:"first"`
	Last   *SnapshotFrame `msgpack:"last"`
}

func snapshotFrame(node string, f *frame.Frame) *SnapshotFrame {
	if f.Empty() {
		return nil
	}
	return &SnapshotFrame{
		Node:      node,
		Format:    f.Format.String(),
		Width:     f.Width,
		Height:    f.Height,
		Seq:       f.Seq,
		Timestamp: f.Timestamp,
		Data:      f.Data,
	}
}

// EncodeSnapshot converts the snapshot of a paused run into its file form.
func EncodeSnapshot(runID string, frames uint64, snap scheduler.Snapshot) ([]byte, error) {
	doc := SnapshotFile{
		RunID:  runID,
		Frames: frames,
		First:  snapshotFrame(snap.FirstNode, snap.First),
		Last:   snapshotFrame(snap.LastNode, snap.Last),
	}
	b, err := msgpack.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return b, nil
}

// ReadSnapshot loads a snapshot file.
func ReadSnapshot(path string) (*SnapshotFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var doc SnapshotFile
	if err := msgpack.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot %s: %w", path, err)
	}
	return &doc, nil
}

// writeSnapshot stores the last pause's frames at SnapshotPath. Without a
// path it only logs.
func (a *App) writeSnapshot() error {
	s := a.Scheduler()
	if s == nil {
		return ErrNotLoaded
	}
	if a.config.SnapshotPath == "" {
		a.logger.Info("📸 Pipeline paused, no snapshot path configured.")
		return nil
	}
	b, err := EncodeSnapshot(s.RunID(), s.Frames(), s.Snapshot())
	if err != nil {
		return err
	}
	if err := os.WriteFile(a.config.SnapshotPath, b, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	a.logger.Info("📸 Snapshot written.", "path", a.config.SnapshotPath, "bytes", len(b), "run_id", s.RunID())
	return nil
}
