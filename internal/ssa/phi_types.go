package ssa

import (
	"fmt"

	"brilmid/internal/dataflow"
	"brilmid/internal/diag"
	"brilmid/internal/ir"
)

// typeFact is a known-or-not type binding, carrying the position of the
// instruction that produced it so a later conflict can be reported
// precisely.
type typeFact struct {
	typ   ir.Type
	pos   ir.Position
	known bool
}

// TypeEnv is the phi-type-inference lattice: a partial map from variable
// to its currently known type. Merge is last-writer-wins rather than a
// mathematical meet; correctness relies on Transfer's conflict check.
type TypeEnv map[string]typeFact

func (e TypeEnv) Equal(other dataflow.Domain) bool {
	o, ok := other.(TypeEnv)
	if !ok || len(e) != len(o) {
		return false
	}
	for k, v := range e {
		ov, ok := o[k]
		if !ok || v.known != ov.known {
			return false
		}
		if v.known && !v.typ.Equal(ov.typ) {
			return false
		}
	}
	return true
}

func (e TypeEnv) clone() TypeEnv {
	out := make(TypeEnv, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// PhiTypes infers each phi's result type from its incoming arguments,
// propagating known variable types forward across the CFG.
type PhiTypes struct{}

func (PhiTypes) Init(blockIdx int, fn *ir.Function) dataflow.Domain {
	env := TypeEnv{}
	if blockIdx == 0 {
		for _, p := range fn.Params {
			env[p.Name] = typeFact{typ: p.Type, known: true}
		}
	}
	return env
}

func (PhiTypes) IsForward() bool { return true }

// Merge is right-biased last-writer-wins: later inputs in iteration order
// overwrite earlier ones for the same variable.
func (PhiTypes) Merge(inputs []dataflow.Domain) dataflow.Domain {
	out := TypeEnv{}
	for _, in := range inputs {
		for k, v := range in.(TypeEnv) {
			out[k] = v
		}
	}
	return out
}

func (PhiTypes) Transfer(in dataflow.Domain, blockIdx int, cfg *ir.ControlFlowGraph, block *ir.BasicBlock) (dataflow.Domain, error) {
	env := in.(TypeEnv).clone()

	for _, phi := range block.Phis {
		var resolved ir.Type
		var conflictPos ir.Position
		have := false
		conflict := false

		for _, arg := range phi.Args {
			fact, ok := env[arg.Var]
			if !ok || !fact.known {
				continue
			}
			if !have {
				resolved = fact.typ
				have = true
				continue
			}
			if !resolved.Equal(fact.typ) && !conflict {
				conflict = true
				conflictPos = fact.pos
			}
		}

		if conflict {
			return nil, diag.SemanticError(
				diag.ErrPhiTypeConflict,
				fmt.Sprintf("phi %q has conflicting incoming types", phi.Dest),
				conflictPos,
			)
		}
		if have {
			phi.Type = resolved
			env[phi.Dest] = typeFact{typ: resolved, known: true}
		}
	}

	for _, instr := range block.Instrs {
		if d, ok := instr.Dest(); ok {
			env[d] = typeFact{typ: instr.ResultType(), pos: instr.Pos(), known: true}
		}
	}

	return env, nil
}
