package ir

import (
	"fmt"

	"brilmid/internal/diag"
)

// ControlFlowGraph indexes a function's basic blocks and the successor and
// predecessor sets derived from their terminators. Sets are
// represented as duplicate-free slices in a deterministic order: a block's
// successors follow its terminator's label order, and its predecessors
// ascend by block index.
type ControlFlowGraph struct {
	Blocks       []*BasicBlock
	LabelIndex   map[string]int
	Successors   [][]int
	Predecessors [][]int
}

func appendUnique(xs []int, v int) []int {
	for _, x := range xs {
		if x == v {
			return xs
		}
	}
	return append(xs, v)
}

// BuildCFG derives label→index, successors and predecessors from blocks'
// terminators. A terminator naming a label with no matching block is a
// structural error.
func BuildCFG(blocks []*BasicBlock) (*ControlFlowGraph, error) {
	labelIndex := make(map[string]int, len(blocks))
	for i, b := range blocks {
		labelIndex[b.Label] = i
		for _, alias := range b.Aliases {
			labelIndex[alias] = i
		}
	}

	successors := make([][]int, len(blocks))
	for i, b := range blocks {
		switch b.Term.Kind {
		case TermPassthrough:
			if i+1 < len(blocks) {
				successors[i] = appendUnique(successors[i], i+1)
			}
		case TermRet:
			// no successors
		case TermJmp, TermBr:
			for _, l := range b.Term.TargetLabels() {
				idx, ok := labelIndex[l]
				if !ok {
					return nil, diag.StructuralErrorAt(
						diag.ErrUnknownLabel,
						fmt.Sprintf("terminator in block %q references unknown label %q", b.Label, l),
						diag.Position{}, i,
					)
				}
				successors[i] = appendUnique(successors[i], idx)
			}
		}
	}

	predecessors := make([][]int, len(blocks))
	for i, succs := range successors {
		for _, s := range succs {
			predecessors[s] = appendUnique(predecessors[s], i)
		}
	}

	return &ControlFlowGraph{
		Blocks:       blocks,
		LabelIndex:   labelIndex,
		Successors:   successors,
		Predecessors: predecessors,
	}, nil
}

// PruneUnreachable drops every block not reachable from block 0, compacts
// ids so they stay contiguous, and rebuilds the CFG so successors,
// predecessors and the label index reflect the new numbering.
func PruneUnreachable(cfg *ControlFlowGraph) (*ControlFlowGraph, error) {
	if len(cfg.Blocks) == 0 {
		return cfg, nil
	}

	reachable := make([]bool, len(cfg.Blocks))
	stack := []int{0}
	reachable[0] = true
	for len(stack) > 0 {
		n := len(stack) - 1
		b := stack[n]
		stack = stack[:n]
		for _, s := range cfg.Successors[b] {
			if !reachable[s] {
				reachable[s] = true
				stack = append(stack, s)
			}
		}
	}

	kept := make([]*BasicBlock, 0, len(cfg.Blocks))
	for i, b := range cfg.Blocks {
		if reachable[i] {
			b.ID = len(kept)
			kept = append(kept, b)
		}
	}

	return BuildCFG(kept)
}
