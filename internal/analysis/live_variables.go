package analysis

import (
	"brilmid/internal/dataflow"
	"brilmid/internal/ir"
)

// LiveVariables is a backward, meet-∪ analysis: a variable is live at a
// point if some path forward reads it before redefining it. Used standalone
// and to drive pruned phi placement.
type LiveVariables struct{}

func (LiveVariables) Init(blockIdx int, fn *ir.Function) dataflow.Domain {
	return StringSet{}
}

func (LiveVariables) IsForward() bool { return false }

func (LiveVariables) Merge(inputs []dataflow.Domain) dataflow.Domain {
	return Union(toStringSets(inputs))
}

// Transfer walks the block back to front: the terminator's args are read
// first, then each instruction kills its destination and generates its
// arguments, and finally each phi kills its destination (a phi's own
// arguments are predecessor-scoped and do not feed this block's liveness).
func (LiveVariables) Transfer(in dataflow.Domain, blockIdx int, cfg *ir.ControlFlowGraph, block *ir.BasicBlock) (dataflow.Domain, error) {
	live := in.(StringSet).Clone()

	if block.Term.Control != nil {
		for _, a := range block.Term.Control.Args() {
			live[a] = struct{}{}
		}
	}

	for i := len(block.Instrs) - 1; i >= 0; i-- {
		instr := block.Instrs[i]
		if d, ok := instr.Dest(); ok {
			delete(live, d)
		}
		for _, a := range instr.Args() {
			live[a] = struct{}{}
		}
	}

	for _, phi := range block.Phis {
		delete(live, phi.Dest)
	}

	return live, nil
}
