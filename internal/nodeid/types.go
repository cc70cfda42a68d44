package nodeid

// Name is the structured representation of a unique node name.
type Name struct {
	Base    string
	Version int
	Clone   int // -1 indicates the node is not a clone.
}

// New creates the name of a freshly loaded, non-clone node.
func New(base string, version int) Name {
	return Name{Base: base, Version: version, Clone: -1}
}

// WithClone returns the name of the k-th clone of n's origin.
func (n Name) WithClone(k int) Name {
	n.Clone = k
	return n
}

// IsClone returns true if the name carries a clone index.
func (n Name) IsClone() bool {
	return n.Clone != -1
}

// Origin strips the clone index.
func (n Name) Origin() Name {
	n.Clone = -1
	return n
}
