package ssa

import (
	"brilmid/internal/dataflow"
	"brilmid/internal/dom"
	"brilmid/internal/ir"
)

// Build converts fn to pruned SSA form in place: phi insertion, dominator-
// tree renaming, then forward phi-type inference to fixpoint. cfg must
// already have unreachable blocks pruned; info is its dominance
// information.
func Build(fn *ir.Function, cfg *ir.ControlFlowGraph, info *dom.Info) error {
	if err := InsertPhis(fn, cfg, info); err != nil {
		return err
	}

	Rename(fn, cfg, info)

	if _, err := dataflow.Run(PhiTypes{}, fn, cfg); err != nil {
		return err
	}

	return nil
}
