package analysis

import (
	"brilmid/internal/dataflow"
	"brilmid/internal/ir"
)

// DefSet maps a variable name to the set of block indices that may define
// it along some path reaching the current point — the reaching-definitions
// lattice, used in turn by LICM's invariant detection.
type DefSet map[string]map[int]struct{}

func (d DefSet) Equal(other dataflow.Domain) bool {
	o, ok := other.(DefSet)
	if !ok || len(d) != len(o) {
		return false
	}
	for v, blocks := range d {
		ob, ok := o[v]
		if !ok || len(ob) != len(blocks) {
			return false
		}
		for b := range blocks {
			if _, ok := ob[b]; !ok {
				return false
			}
		}
	}
	return true
}

func (d DefSet) Clone() DefSet {
	out := make(DefSet, len(d))
	for v, blocks := range d {
		nb := make(map[int]struct{}, len(blocks))
		for b := range blocks {
			nb[b] = struct{}{}
		}
		out[v] = nb
	}
	return out
}

func unionDefSets(sets []DefSet) DefSet {
	out := DefSet{}
	for _, s := range sets {
		for v, blocks := range s {
			dst, ok := out[v]
			if !ok {
				dst = map[int]struct{}{}
				out[v] = dst
			}
			for b := range blocks {
				dst[b] = struct{}{}
			}
		}
	}
	return out
}

// ReachingDefinitions is a forward, meet-∪ analysis over DefSet.
type ReachingDefinitions struct{}

func (ReachingDefinitions) Init(blockIdx int, fn *ir.Function) dataflow.Domain {
	d := DefSet{}
	if blockIdx == 0 {
		for _, p := range fn.Params {
			d[p.Name] = map[int]struct{}{0: {}}
		}
	}
	return d
}

func (ReachingDefinitions) IsForward() bool { return true }

func (ReachingDefinitions) Merge(inputs []dataflow.Domain) dataflow.Domain {
	sets := make([]DefSet, len(inputs))
	for i, in := range inputs {
		sets[i] = in.(DefSet)
	}
	return unionDefSets(sets)
}

// Transfer seeds a phi's destination with the blocks named by its incoming
// labels, and has every ordinary destination replace its defining set with
// {blockIdx}.
func (ReachingDefinitions) Transfer(in dataflow.Domain, blockIdx int, cfg *ir.ControlFlowGraph, block *ir.BasicBlock) (dataflow.Domain, error) {
	out := in.(DefSet).Clone()

	for _, phi := range block.Phis {
		sources := map[int]struct{}{}
		for _, arg := range phi.Args {
			if idx, ok := cfg.LabelIndex[arg.Label]; ok {
				sources[idx] = struct{}{}
			}
		}
		out[phi.Dest] = sources
	}

	for _, instr := range block.Instrs {
		if d, ok := instr.Dest(); ok {
			out[d] = map[int]struct{}{blockIdx: {}}
		}
	}

	return out, nil
}
