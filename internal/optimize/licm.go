package optimize

import (
	"brilmid/internal/analysis"
	"brilmid/internal/dataflow"
	"brilmid/internal/dom"
	"brilmid/internal/ir"
)

// NaturalLoop is a reducible loop: a single header dominating every other
// node in the loop body, discovered from one backedge.
type NaturalLoop struct {
	Header int
	Nodes  map[int]struct{}
}

// LICM hoists loop-invariant instructions into a synthesized preheader.
// Natural loops come from backedges (an edge whose target dominates its
// source); invariants are found via reaching definitions to a fixpoint;
// hoisted instructions accumulate in the header's Preheader buffer,
// materialized into a real block by internal/ssa's out-of-SSA lowering.
type LICM struct{}

func (LICM) Name() string { return "licm" }
func (LICM) Description() string {
	return "loop-invariant code motion via natural loops and reaching definitions"
}

func (LICM) Apply(fn *ir.Function, cfg *ir.ControlFlowGraph) (bool, error) {
	info := dom.Compute(cfg)

	type backedge struct{ header, source int }
	var backedges []backedge
	for src := range cfg.Blocks {
		for _, dst := range cfg.Successors[src] {
			if info.Dominates(dst, src) {
				backedges = append(backedges, backedge{header: dst, source: src})
			}
		}
	}
	if len(backedges) == 0 {
		return false, nil
	}

	reaching, err := dataflow.Run(analysis.ReachingDefinitions{}, fn, cfg)
	if err != nil {
		return false, err
	}

	changed := false
	for _, be := range backedges {
		loop := buildNaturalLoop(cfg, be.header, be.source)
		if loop == nil {
			continue // irreducible (multi-entry): not hoisted
		}
		invariant := identifyInvariants(cfg, loop, reaching)
		if len(invariant) == 0 {
			continue
		}
		if hoistInvariants(cfg, loop, invariant, be.source) {
			changed = true
		}
	}

	return changed, nil
}

// buildNaturalLoop expands {header, source} by walking predecessors up to
// but not including header, then validates that every non-header node's
// predecessors lie inside the set or are the header itself — rejecting
// irreducible (multi-entry) candidates.
func buildNaturalLoop(cfg *ir.ControlFlowGraph, header, source int) *NaturalLoop {
	nodes := map[int]struct{}{header: {}, source: {}}
	stack := []int{source}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, p := range cfg.Predecessors[n] {
			if p == header {
				continue
			}
			if _, ok := nodes[p]; !ok {
				nodes[p] = struct{}{}
				stack = append(stack, p)
			}
		}
	}

	for n := range nodes {
		if n == header {
			continue
		}
		for _, p := range cfg.Predecessors[n] {
			if p == header {
				continue
			}
			if _, ok := nodes[p]; !ok {
				return nil
			}
		}
	}

	return &NaturalLoop{Header: header, Nodes: nodes}
}

// identifyInvariants iterates to a fixpoint: an
// instruction is invariant if it has no side effects and is a constant, or
// every argument's reaching definitions lie entirely outside the loop, or
// an argument has exactly one reaching definition which is itself already
// marked invariant.
func identifyInvariants(cfg *ir.ControlFlowGraph, loop *NaturalLoop, reaching *dataflow.Result) map[ir.Instruction]bool {
	invariant := map[ir.Instruction]bool{}
	for changed := true; changed; {
		changed = false
		for node := range loop.Nodes {
			for _, instr := range cfg.Blocks[node].Instrs {
				if invariant[instr] || ir.HasSideEffects(instr) {
					continue
				}
				if _, ok := instr.Dest(); !ok {
					continue
				}
				if _, isConst := instr.(*ir.ConstantInstr); isConst {
					invariant[instr] = true
					changed = true
					continue
				}
				if argsInvariant(cfg, instr, loop, reaching, invariant) {
					invariant[instr] = true
					changed = true
				}
			}
		}
	}
	return invariant
}

func argsInvariant(cfg *ir.ControlFlowGraph, instr ir.Instruction, loop *NaturalLoop, reaching *dataflow.Result, invariant map[ir.Instruction]bool) bool {
	for _, arg := range instr.Args() {
		defBlocks, ok := argDefBlocks(reaching, instr, loop, arg)
		if !ok {
			continue // no known definition (e.g. a parameter): treated as outside the loop
		}
		if len(defBlocks) == 1 {
			var only int
			for b := range defBlocks {
				only = b
			}
			if _, inLoop := loop.Nodes[only]; !inLoop {
				continue
			}
			if defInstr := findDefInstr(cfg, only, arg); defInstr != nil && invariant[defInstr] {
				continue
			}
			return false
		}
		for b := range defBlocks {
			if _, inLoop := loop.Nodes[b]; inLoop {
				return false
			}
		}
	}
	return true
}

func argDefBlocks(reaching *dataflow.Result, instr ir.Instruction, loop *NaturalLoop, arg string) (map[int]struct{}, bool) {
	// Any block in the loop sees the same reaching-def exit set for a given
	// SSA name regardless of which instruction reads it, since a name is
	// defined at exactly one point; the first loop block (in map iteration
	// order) whose exit set binds the name is used.
	for node := range loop.Nodes {
		defs := reaching.Out[node].(analysis.DefSet)
		if blocks, ok := defs[arg]; ok {
			return blocks, true
		}
	}
	return nil, false
}

func findDefInstr(cfg *ir.ControlFlowGraph, blockIdx int, name string) ir.Instruction {
	for _, instr := range cfg.Blocks[blockIdx].Instrs {
		if d, ok := instr.Dest(); ok && d == name {
			return instr
		}
	}
	return nil
}

// hoistInvariants moves each invariant instruction into the header's
// Preheader buffer in original order, removing it from its source block,
// marks the backedge source so lowering keeps its direct edge to the
// header, and remaps phi sources for now-hoisted variables to
// pre_header_<header> except along the backedge.
func hoistInvariants(cfg *ir.ControlFlowGraph, loop *NaturalLoop, invariant map[ir.Instruction]bool, backedgeSource int) bool {
	header := cfg.Blocks[loop.Header]
	changed := false
	hoisted := map[string]bool{}

	nodes := make([]int, 0, len(loop.Nodes))
	for node := range loop.Nodes {
		nodes = append(nodes, node)
	}
	sortInts(nodes)

	for _, node := range nodes {
		block := cfg.Blocks[node]
		kept := make([]ir.Instruction, 0, len(block.Instrs))
		for _, instr := range block.Instrs {
			if invariant[instr] {
				header.Preheader = append(header.Preheader, instr)
				if d, ok := instr.Dest(); ok {
					hoisted[d] = true
				}
				changed = true
				continue
			}
			kept = append(kept, instr)
		}
		block.Instrs = kept
	}

	if !changed {
		return false
	}

	cfg.Blocks[backedgeSource].NaturalLoopReturn = true

	preLabel := "pre_header_" + header.Label
	backedgeLabel := cfg.Blocks[backedgeSource].Label
	for _, b := range cfg.Blocks {
		for _, phi := range b.Phis {
			for i := range phi.Args {
				if phi.Args[i].Label == backedgeLabel {
					continue
				}
				if hoisted[phi.Args[i].Var] {
					phi.Args[i].Label = preLabel
				}
			}
		}
	}

	return true
}
