// Package analysis implements three dataflow analyses — definitely-
// initialized, live-variables and reaching-definitions — as
// dataflow.Analysis implementations, following the classic GEN/KILL-style
// formulation of liveness and reaching definitions.
package analysis

import "brilmid/internal/dataflow"

// StringSet is the lattice for definitely-initialized and live-variables:
// a set of variable names, compared by membership rather than identity.
type StringSet map[string]struct{}

func (s StringSet) Equal(other dataflow.Domain) bool {
	o, ok := other.(StringSet)
	if !ok {
		return false
	}
	if len(s) != len(o) {
		return false
	}
	for k := range s {
		if _, ok := o[k]; !ok {
			return false
		}
	}
	return true
}

func (s StringSet) Clone() StringSet {
	out := make(StringSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

func toStringSets(inputs []dataflow.Domain) []StringSet {
	out := make([]StringSet, len(inputs))
	for i, in := range inputs {
		out[i] = in.(StringSet)
	}
	return out
}

// Union computes the ∪ meet used by live-variables.
func Union(sets []StringSet) StringSet {
	out := StringSet{}
	for _, s := range sets {
		for k := range s {
			out[k] = struct{}{}
		}
	}
	return out
}

// Intersect computes the ∩ meet used by definitely-initialized.
func Intersect(sets []StringSet) StringSet {
	if len(sets) == 0 {
		return StringSet{}
	}
	out := sets[0].Clone()
	for _, s := range sets[1:] {
		for k := range out {
			if _, ok := s[k]; !ok {
				delete(out, k)
			}
		}
	}
	return out
}
