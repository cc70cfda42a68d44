// Package colorconv converts between pixel layouts.
package colorconv

import (
	"context"
	"fmt"
	"image/color"

	"github.com/vk/framegrid/internal/frame"
	"github.com/vk/framegrid/internal/plugin"
	"github.com/vk/framegrid/internal/port"
)

// Name is the implementation name manifests refer to.
const Name = "colorconv"

// Module implements the plugin.Module interface for this package.
type Module struct{}

// Register registers the colorconv factory.
func (m *Module) Register(r *plugin.Registry) {
	r.Register(&plugin.Factory{
		Name:      Name,
		Category:  plugin.Transform,
		Version:   plugin.APIVersion,
		New:       func() plugin.Plugin { return &Converter{} },
		Cloneable: true,
	})
}

type convertFunc func(in, out *frame.Frame)

var conversions = map[port.Relation]convertFunc{
	{Input: port.YUYV, Output: port.RGB24}:   yuyvToRGB,
	{Input: port.YUYV, Output: port.Gray8}:   yuyvToGray,
	{Input: port.RGB24, Output: port.Gray8}:  rgbToGray,
	{Input: port.Bayer8, Output: port.RGB24}: bayerToRGB,
}

// Converter is a destination-buffer transform whose output format follows
// from its input format.
type Converter struct {
	plugin.Base
}

var (
	_ plugin.Plugin  = (*Converter)(nil)
	_ plugin.Relator = (*Converter)(nil)
)

func (c *Converter) Process(_ context.Context, in, out *frame.Frame) error {
	fn, ok := conversions[port.Relation{Input: in.Format, Output: out.Format}]
	if !ok {
		return fmt.Errorf("no conversion from %s to %s", in.Format, out.Format)
	}
	if in.Width != out.Width || in.Height != out.Height {
		return fmt.Errorf("size mismatch: %s into %s", in.Geometry, out.Geometry)
	}
	if len(in.Data) < in.Size() {
		return fmt.Errorf("short input frame: %d of %d bytes", len(in.Data), in.Size())
	}
	fn(in, out)
	out.Timestamp = in.Timestamp
	return nil
}

func (c *Converter) InputFormats() []port.Format {
	return []port.Format{port.YUYV, port.RGB24, port.Bayer8}
}

func (c *Converter) OutputFormats() []port.Format {
	return []port.Format{port.RGB24, port.Gray8}
}

func (c *Converter) UsesDestinationBuffer() bool { return true }

func (c *Converter) Relations() port.Relations {
	return port.Relations{
		{Input: port.YUYV, Output: port.RGB24},
		{Input: port.YUYV, Output: port.Gray8},
		{Input: port.RGB24, Output: port.Gray8},
		{Input: port.Bayer8, Output: port.RGB24},
	}
}

func (c *Converter) Description() string { return "pixel format conversion" }

func yuyvToRGB(in, out *frame.Frame) {
	for y := 0; y < in.Height; y++ {
		src := in.Data[y*in.Stride() : (y+1)*in.Stride()]
		dst := out.Data[y*out.Stride() : (y+1)*out.Stride()]
		for x := 0; x+1 < in.Width; x += 2 {
			y0, u, y1, v := src[2*x], src[2*x+1], src[2*x+2], src[2*x+3]
			dst[3*x], dst[3*x+1], dst[3*x+2] = color.YCbCrToRGB(y0, u, v)
			dst[3*x+3], dst[3*x+4], dst[3*x+5] = color.YCbCrToRGB(y1, u, v)
		}
	}
}

func yuyvToGray(in, out *frame.Frame) {
	n := in.Width * in.Height
	for i := 0; i < n; i++ {
		out.Data[i] = in.Data[2*i]
	}
}

func rgbToGray(in, out *frame.Frame) {
	n := in.Width * in.Height
	for i := 0; i < n; i++ {
		out.Data[i] = luma(in.Data[3*i], in.Data[3*i+1], in.Data[3*i+2])
	}
}

// luma uses the same weights as color.GrayModel.
func luma(r, g, b byte) byte {
	return byte((19595*uint32(r) + 38470*uint32(g) + 7471*uint32(b) + 1<<15) >> 16)
}

// bayerToRGB demosaics an RGGB mosaic by giving every pixel the colours of
// the 2x2 cell it belongs to.
func bayerToRGB(in, out *frame.Frame) {
	w, h := in.Width, in.Height
	at := func(x, y int) uint16 {
		x, y = min(x, w-1), min(y, h-1)
		return uint16(in.Data[y*w+x])
	}
	for y := 0; y < h; y++ {
		cy := y &^ 1
		for x := 0; x < w; x++ {
			cx := x &^ 1
			i := 3 * (y*w + x)
			out.Data[i] = byte(at(cx, cy))
			out.Data[i+1] = byte((at(cx+1, cy) + at(cx, cy+1)) / 2)
			out.Data[i+2] = byte(at(cx+1, cy+1))
		}
	}
}
