package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/framegrid/internal/frame"
	"github.com/vk/framegrid/internal/port"
	"github.com/vk/framegrid/internal/scheduler"
)

func TestEncodeSnapshot(t *testing.T) {
	first := frame.New(frame.Geometry{Width: 2, Height: 1, Format: port.Gray8})
	first.Data[0], first.Data[1] = 10, 20
	first.Seq = 7
	first.Timestamp = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	b, err := EncodeSnapshot("run-1", 7, scheduler.Snapshot{
		FirstNode: "cam@v2", First: first,
		LastNode: "sink@v2",
	})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "snap.msgpack")
	require.NoError(t, os.WriteFile(path, b, 0o644))

	doc, err := ReadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, "run-1", doc.RunID)
	assert.Equal(t, uint64(7), doc.Frames)
	require.NotNil(t, doc.First)
	assert.Equal(t, "cam@v2", doc.First.Node)
	assert.Equal(t, "gray8", doc.First.Format)
	assert.Equal(t, []byte{10, 20}, doc.First.Data)
	assert.Equal(t, uint64(7), doc.First.Seq)
	assert.True(t, first.Timestamp.Equal(doc.First.Timestamp))
	assert.Nil(t, doc.Last)
}

func TestReadSnapshot_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadSnapshot(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	garbage := filepath.Join(dir, "garbage")
	require.NoError(t, os.WriteFile(garbage, []byte{0xc1}, 0o644))
	_, err = ReadSnapshot(garbage)
	assert.Error(t, err)
}
