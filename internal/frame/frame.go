// Package frame defines the image buffer that travels through a pipeline.
//
// A Frame is owned by whoever allocated it. The scheduler allocates one
// destination buffer per node that asks for one and reuses it across
// frames; nodes that work in place mutate the rolling buffer they are
// handed. Branch tasks never share a Frame with their parent: the parent
// writes a full copy into the branch inbox.
package frame

import (
	"fmt"
	"time"

	"github.com/vk/framegrid/internal/port"
)

// bytesPerPixel lists the layouts of the formats framegrid knows about.
// Unknown formats are treated as one byte per pixel.
var bytesPerPixel = map[port.Format]int{
	port.Gray8:   1,
	port.Gray16:  2,
	port.RGB24:   3,
	port.BGR24:   3,
	port.RGBA32:  4,
	port.YUYV:    2,
	port.Bayer8:  1,
	port.Bayer16: 2,
}

// BytesPerPixel returns the packed pixel size of a format.
func BytesPerPixel(f port.Format) int {
	if n, ok := bytesPerPixel[f]; ok {
		return n
	}
	return 1
}

// Geometry is the shape of a frame.
type Geometry struct {
	Width  int
	Height int
	Format port.Format
}

// Stride returns the row length in bytes.
func (g Geometry) Stride() int {
	return g.Width * BytesPerPixel(g.Format)
}

// Size returns the buffer length in bytes.
func (g Geometry) Size() int {
	return g.Stride() * g.Height
}

// String implements fmt.Stringer.
func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d/%s", g.Width, g.Height, g.Format)
}

// Frame is a packed image buffer.
type Frame struct {
	Geometry

	// Data holds Stride()*Height bytes.
	Data []byte

	// Seq is the 1-based frame number of the chain that produced it.
	Seq uint64

	// Timestamp is set by sources; zero when unknown.
	Timestamp time.Time
}

// New allocates a zeroed frame of the given geometry.
func New(g Geometry) *Frame {
	return &Frame{Geometry: g, Data: make([]byte, g.Size())}
}

// Ensure makes f match g, reallocating Data only when the geometry changed.
// It reports whether a reallocation happened.
func (f *Frame) Ensure(g Geometry) bool {
	if f.Geometry == g && len(f.Data) == g.Size() {
		return false
	}
	f.Geometry = g
	size := g.Size()
	if cap(f.Data) >= size {
		f.Data = f.Data[:size]
		return true
	}
	f.Data = make([]byte, size)
	return true
}

// CopyFrom makes f a full copy of src, reusing f's storage when it is large
// enough.
func (f *Frame) CopyFrom(src *Frame) {
	if src == nil {
		return
	}
	if cap(f.Data) >= len(src.Data) {
		f.Data = f.Data[:len(src.Data)]
	} else {
		f.Data = make([]byte, len(src.Data))
	}
	copy(f.Data, src.Data)
	f.Geometry = src.Geometry
	f.Seq = src.Seq
	f.Timestamp = src.Timestamp
}

// Clone returns an independent copy of f.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	c := &Frame{}
	c.CopyFrom(f)
	return c
}

// Empty reports whether the frame carries no pixels yet.
func (f *Frame) Empty() bool {
	return f == nil || len(f.Data) == 0
}
