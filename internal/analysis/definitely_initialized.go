package analysis

import (
	"fmt"

	"brilmid/internal/dataflow"
	"brilmid/internal/diag"
	"brilmid/internal/ir"
)

// DefinitelyInitialized is a forward, meet-∩ analysis: a variable is
// definitely initialized at a program point if every path from entry
// defines it first. Its FinalCheck surfaces the "uninitialized use"
// semantic error.
type DefinitelyInitialized struct {
	allDefs StringSet // ⊤: every variable defined anywhere in the function
	params  StringSet
}

// NewDefinitelyInitialized scans fn once to build the ⊤ set (every
// variable defined anywhere) used to seed non-entry blocks before the
// fixpoint narrows them.
func NewDefinitelyInitialized(fn *ir.Function) *DefinitelyInitialized {
	allDefs := StringSet{}
	for _, b := range fn.Blocks {
		for _, phi := range b.Phis {
			allDefs[phi.Dest] = struct{}{}
		}
		for _, instr := range b.Instrs {
			if d, ok := instr.Dest(); ok {
				allDefs[d] = struct{}{}
			}
		}
	}
	params := StringSet{}
	for _, p := range fn.Params {
		params[p.Name] = struct{}{}
	}
	return &DefinitelyInitialized{allDefs: allDefs, params: params}
}

func (a *DefinitelyInitialized) Init(blockIdx int, fn *ir.Function) dataflow.Domain {
	if blockIdx == 0 {
		return a.params.Clone()
	}
	return a.allDefs.Clone()
}

func (a *DefinitelyInitialized) IsForward() bool { return true }

func (a *DefinitelyInitialized) Merge(inputs []dataflow.Domain) dataflow.Domain {
	return Intersect(toStringSets(inputs))
}

func (a *DefinitelyInitialized) Transfer(in dataflow.Domain, blockIdx int, cfg *ir.ControlFlowGraph, block *ir.BasicBlock) (dataflow.Domain, error) {
	out := in.(StringSet).Clone()
	for _, phi := range block.Phis {
		out[phi.Dest] = struct{}{}
	}
	for _, instr := range block.Instrs {
		if d, ok := instr.Dest(); ok {
			out[d] = struct{}{}
		}
	}
	return out, nil
}

// FinalCheck walks the block in order, maintaining a running copy of the
// converged entry set, and reports the first argument read before its
// definition.
func (a *DefinitelyInitialized) FinalCheck(in dataflow.Domain, blockIdx int, block *ir.BasicBlock) error {
	running := in.(StringSet).Clone()
	for _, phi := range block.Phis {
		running[phi.Dest] = struct{}{}
	}

	check := func(args []string, pos ir.Position) error {
		for _, arg := range args {
			if _, ok := running[arg]; !ok {
				return diag.SemanticError(
					diag.ErrUninitializedUse,
					fmt.Sprintf("use of uninitialized variable %q", arg),
					pos,
				)
			}
		}
		return nil
	}

	for _, instr := range block.Instrs {
		if err := check(instr.Args(), instr.Pos()); err != nil {
			return err
		}
		if d, ok := instr.Dest(); ok {
			running[d] = struct{}{}
		}
	}
	if block.Term.Control != nil {
		if err := check(block.Term.Control.Args(), block.Term.Control.Pos()); err != nil {
			return err
		}
	}
	return nil
}
