// Package ssa converts a function to and from static single assignment
// form: pruned phi insertion via live-variable analysis and dominance
// frontiers, dominator-tree-recursive renaming, forward phi type inference,
// and out-of-SSA lowering that turns phis back into predecessor-block
// copies.
package ssa

import (
	"brilmid/internal/analysis"
	"brilmid/internal/dataflow"
	"brilmid/internal/dom"
	"brilmid/internal/ir"
)

type defSite struct {
	block    int
	variable string
}

// InsertPhis places a phi for variable v in block f whenever f is in the
// dominance frontier of some block defining v and v is live on entry to f
// (pruned SSA; for the backward live-variables run that is Out[f]). Parameters are first given a canonical
// id(v) -> v definition at the top of the entry block so they count as
// "defined in block 0" for the purposes of frontier propagation.
func InsertPhis(fn *ir.Function, cfg *ir.ControlFlowGraph, info *dom.Info) error {
	live, err := dataflow.Run(analysis.LiveVariables{}, fn, cfg)
	if err != nil {
		return err
	}

	if len(cfg.Blocks) > 0 && len(fn.Params) > 0 {
		entry := cfg.Blocks[0]
		seed := make([]ir.Instruction, 0, len(fn.Params))
		for _, p := range fn.Params {
			seed = append(seed, &ir.ValueInstr{
				Op:        ir.OpId,
				DestName:  p.Name,
				Type:      p.Type,
				Arguments: []string{p.Name},
			})
		}
		entry.Instrs = append(seed, entry.Instrs...)
	}

	var queue []defSite
	for bi, b := range cfg.Blocks {
		for _, instr := range b.Instrs {
			if d, ok := instr.Dest(); ok {
				queue = append(queue, defSite{bi, d})
			}
		}
	}

	inserted := map[defSite]bool{}

	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]

		for _, f := range info.Frontier(d.block) {
			key := defSite{f, d.variable}
			if inserted[key] {
				continue
			}
			liveAtEntry := live.Out[f].(analysis.StringSet)
			if _, ok := liveAtEntry[d.variable]; !ok {
				continue
			}
			phi := ir.NewEmptyPhi(d.variable)
			cfg.Blocks[f].Phis = append(cfg.Blocks[f].Phis, phi)
			inserted[key] = true
			queue = append(queue, defSite{f, d.variable})
		}
	}

	return nil
}
