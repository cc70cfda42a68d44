package nodeid

import (
	"strconv"
	"strings"
)

// String serializes the Name into its canonical representation.
func (n Name) String() string {
	var sb strings.Builder
	sb.WriteString(n.Base)
	sb.WriteString("@v")
	sb.WriteString(strconv.Itoa(n.Version))
	if n.IsClone() {
		sb.WriteRune('[')
		sb.WriteString(strconv.Itoa(n.Clone))
		sb.WriteRune(']')
	}
	return sb.String()
}

// OriginOf returns the canonical origin of a raw name, or the raw name
// itself when it does not parse.
func OriginOf(raw string) string {
	n, err := Parse(raw)
	if err != nil {
		return raw
	}
	return n.Origin().String()
}
