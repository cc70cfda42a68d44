package port

import "strings"

// Format is a semantic colour / bit-depth descriptor such as "rgb24" or
// "bayer8". Formats are compared by exact tag.
type Format string

// Well-known formats understood by the built-in plugins and the frame
// package. Plugins are free to declare other tags.
const (
	Gray8   Format = "gray8"
	Gray16  Format = "gray16"
	RGB24   Format = "rgb24"
	BGR24   Format = "bgr24"
	RGBA32  Format = "rgba32"
	YUYV    Format = "yuyv"
	Bayer8  Format = "bayer8"
	Bayer16 Format = "bayer16"
)

// String implements fmt.Stringer.
func (f Format) String() string {
	return string(f)
}

// Spec is one declared data-format candidate of a node's input or output.
type Spec struct {
	format    Format
	available bool
}

// Declare registers a candidate. Newly declared candidates are available.
func Declare(format Format) *Spec {
	return &Spec{format: format, available: true}
}

// Format returns the declared format tag.
func (s *Spec) Format() Format {
	return s.format
}

// Available reports whether the candidate can currently be selected.
func (s *Spec) Available() bool {
	return s.available
}

// SetAvailable is called by the graph manager's availability pass only.
func (s *Spec) SetAvailable(v bool) {
	s.available = v
}

// Specs is an ordered candidate list.
type Specs []*Spec

// DeclareAll declares one Spec per format, preserving order.
func DeclareAll(formats []Format) Specs {
	specs := make(Specs, 0, len(formats))
	for _, f := range formats {
		specs = append(specs, Declare(f))
	}
	return specs
}

// Formats returns the declared formats in order.
func (s Specs) Formats() []Format {
	out := make([]Format, 0, len(s))
	for _, spec := range s {
		out = append(out, spec.format)
	}
	return out
}

// IndexOf returns the index of the first candidate with the given format,
// or -1.
func (s Specs) IndexOf(f Format) int {
	for i, spec := range s {
		if spec.format == f {
			return i
		}
	}
	return -1
}

// Has reports whether any candidate has the given format.
func (s Specs) Has(f Format) bool {
	return s.IndexOf(f) >= 0
}

// Intersects reports whether any candidate format appears in formats.
func (s Specs) Intersects(formats []Format) bool {
	for _, spec := range s {
		for _, f := range formats {
			if spec.format == f {
				return true
			}
		}
	}
	return false
}

// AvailableFormats returns the formats of the available candidates.
func (s Specs) AvailableFormats() []Format {
	var out []Format
	for _, spec := range s {
		if spec.available {
			out = append(out, spec.format)
		}
	}
	return out
}

// SetAll marks every candidate available or unavailable.
func (s Specs) SetAll(v bool) {
	for _, spec := range s {
		spec.available = v
	}
}

// String renders the list as "a,b*" where a trailing star marks an
// unavailable candidate.
func (s Specs) String() string {
	parts := make([]string, 0, len(s))
	for _, spec := range s {
		p := string(spec.format)
		if !spec.available {
			p += "*"
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, ",")
}

// Intersect returns the formats of a that also appear in b, keeping the
// order of a and dropping duplicates.
func Intersect(a, b []Format) []Format {
	var out []Format
	seen := make(map[Format]struct{}, len(a))
	for _, fa := range a {
		if _, dup := seen[fa]; dup {
			continue
		}
		for _, fb := range b {
			if fa == fb {
				out = append(out, fa)
				seen[fa] = struct{}{}
				break
			}
		}
	}
	return out
}

// Contains reports whether f is in formats.
func Contains(formats []Format, f Format) bool {
	for _, x := range formats {
		if x == f {
			return true
		}
	}
	return false
}
