package optimize

import (
	"brilmid/internal/analysis"
	"brilmid/internal/dataflow"
	"brilmid/internal/ir"
)

// DCE is a backward, liveness-driven dead-code pass: it drops
// any destination not in the live set, except instructions with side
// effects, which are never removed.
type DCE struct{}

func (DCE) Name() string { return "dce" }
func (DCE) Description() string {
	return "backward liveness-driven elimination of dead defs and phis"
}

func (DCE) Apply(fn *ir.Function, cfg *ir.ControlFlowGraph) (bool, error) {
	before := instrCount(fn)
	a := newDCEAnalysis(fn)
	if _, err := dataflow.Run(a, fn, cfg); err != nil {
		return false, err
	}
	return instrCount(fn) != before, nil
}

func instrCount(fn *ir.Function) int {
	n := 0
	for _, b := range fn.Blocks {
		n += len(b.Instrs) + len(b.Phis)
	}
	return n
}

// dceAnalysis seeds every block with ⊤ = every destination defined
// anywhere in the function plus parameters, then narrows via the usual
// backward meet-∪ worklist, dropping instructions as it mutates each
// block in Transfer. A block with no successors starts its walk from the
// empty set, since nothing is read after it.
type dceAnalysis struct {
	top analysis.StringSet
}

func newDCEAnalysis(fn *ir.Function) *dceAnalysis {
	top := analysis.StringSet{}
	for _, p := range fn.Params {
		top[p.Name] = struct{}{}
	}
	for _, b := range fn.Blocks {
		for _, phi := range b.Phis {
			top[phi.Dest] = struct{}{}
		}
		for _, instr := range b.Instrs {
			if d, ok := instr.Dest(); ok {
				top[d] = struct{}{}
			}
		}
	}
	return &dceAnalysis{top: top}
}

func (d *dceAnalysis) Init(blockIdx int, fn *ir.Function) dataflow.Domain {
	return d.top.Clone()
}

func (d *dceAnalysis) IsForward() bool { return false }

func (d *dceAnalysis) Merge(inputs []dataflow.Domain) dataflow.Domain {
	sets := make([]analysis.StringSet, len(inputs))
	for i, in := range inputs {
		sets[i] = in.(analysis.StringSet)
	}
	return analysis.Union(sets)
}

func (d *dceAnalysis) Transfer(in dataflow.Domain, blockIdx int, cfg *ir.ControlFlowGraph, block *ir.BasicBlock) (dataflow.Domain, error) {
	live := analysis.StringSet{}
	if len(cfg.Successors[blockIdx]) > 0 {
		live = in.(analysis.StringSet).Clone()
	}

	if block.Term.Control != nil {
		for _, a := range block.Term.Control.Args() {
			live[a] = struct{}{}
		}
	}

	kept := make([]ir.Instruction, 0, len(block.Instrs))
	for i := len(block.Instrs) - 1; i >= 0; i-- {
		instr := block.Instrs[i]
		dest, hasDest := instr.Dest()
		sideEffect := ir.HasSideEffects(instr)

		if hasDest && !sideEffect {
			if _, ok := live[dest]; !ok {
				continue // dead: drop
			}
		}
		if hasDest {
			delete(live, dest)
		}
		for _, a := range instr.Args() {
			live[a] = struct{}{}
		}
		kept = append(kept, instr)
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	block.Instrs = kept

	var keptPhis []*ir.PhiNode
	for _, phi := range block.Phis {
		if _, ok := live[phi.Dest]; !ok {
			continue
		}
		delete(live, phi.Dest)
		for _, arg := range phi.Args {
			live[arg.Var] = struct{}{}
		}
		keptPhis = append(keptPhis, phi)
	}
	block.Phis = keptPhis

	return live, nil
}
