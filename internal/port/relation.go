package port

// Relation pairs an accepted input format with an output format that a
// converting node produces from it.
type Relation struct {
	Input  Format
	Output Format
}

// Relations is the static conversion table of a node. A nil table means
// "no constraint": every output may follow from every input.
type Relations []Relation

// Constrained reports whether the table restricts anything.
func (r Relations) Constrained() bool {
	return len(r) > 0
}

// OutputsFor returns the output formats reachable from input, in table
// order. For an unconstrained table it returns all of outputs.
func (r Relations) OutputsFor(input Format, outputs []Format) []Format {
	if !r.Constrained() {
		return outputs
	}
	var out []Format
	for _, rel := range r {
		if rel.Input == input && Contains(outputs, rel.Output) && !Contains(out, rel.Output) {
			out = append(out, rel.Output)
		}
	}
	return out
}

// Candidates returns the indexes into outputs that may be active when
// input arrives.
func (r Relations) Candidates(input Format, outputs Specs) []int {
	allowed := r.OutputsFor(input, outputs.Formats())
	var idx []int
	for i, spec := range outputs {
		if Contains(allowed, spec.format) {
			idx = append(idx, i)
		}
	}
	return idx
}

// Accepts reports whether some output follows from input. An unconstrained
// table accepts everything.
func (r Relations) Accepts(input Format) bool {
	if !r.Constrained() {
		return true
	}
	for _, rel := range r {
		if rel.Input == input {
			return true
		}
	}
	return false
}
