// Package dataflow implements the generic forward/backward fixed-point
// worklist engine that every analysis and several optimization passes in
// this module are built on: a FIFO worklist over block ids, a small
// init/direction/merge/transfer/optional-final-check contract, and a hard
// iteration cap that surfaces as an engine error instead of spinning
// forever.
package dataflow

import (
	"fmt"

	"brilmid/internal/diag"
	"brilmid/internal/ir"
)

// MaxIterations bounds worklist convergence; exceeding it
// means a transfer or merge function is not monotone, never a property of
// the input program.
const MaxIterations = 10000

// Domain is the lattice value an Analysis computes per block. Equal must
// hold for values representing the same abstract state so the engine can
// detect a fixpoint.
type Domain interface {
	Equal(other Domain) bool
}

// Analysis is the five-operation contract any concrete type must satisfy
// to be driven by Run, dispatching over a small interface rather than a
// sealed enum of analysis kinds.
type Analysis interface {
	Init(blockIdx int, fn *ir.Function) Domain
	IsForward() bool
	Merge(inputs []Domain) Domain
	Transfer(in Domain, blockIdx int, cfg *ir.ControlFlowGraph, block *ir.BasicBlock) (Domain, error)
}

// FinalCheck is implemented by analyses that validate converged state once
// the fixpoint is reached (definitely-initialized's uninitialized-use
// check).
type FinalCheck interface {
	FinalCheck(in Domain, blockIdx int, block *ir.BasicBlock) error
}

// Result holds the converged In and Out value per block. In is the merged
// input and Out is Transfer's result, so for a forward analysis In is the
// block's entry value and Out its exit value; for a backward analysis it is
// the other way round.
type Result struct {
	In  []Domain
	Out []Domain
}

// Run drives a to a fixpoint over cfg:
//  1. every block starts at (in, out) = (init, init) and is queued;
//  2. popping b, inputs are the Out values of b's predecessors (forward) or
//     successors (backward); in = merge(inputs), or init when b has no such
//     neighbors, and out = transfer(in, b, …);
//  3. if out changed, the opposite-direction neighbors of b are re-queued;
//  4. if a implements FinalCheck, it runs per block against the converged In.
func Run(a Analysis, fn *ir.Function, cfg *ir.ControlFlowGraph) (*Result, error) {
	n := len(cfg.Blocks)
	in := make([]Domain, n)
	out := make([]Domain, n)
	for i := 0; i < n; i++ {
		d := a.Init(i, fn)
		in[i] = d
		out[i] = d
	}

	forward := a.IsForward()
	queue := make([]int, n)
	queued := make([]bool, n)
	for i := 0; i < n; i++ {
		queue[i] = i
		queued[i] = true
	}

	iterations := 0
	for len(queue) > 0 {
		iterations++
		if iterations > MaxIterations {
			return nil, diag.EngineError(
				diag.ErrWorklistDivergence,
				fmt.Sprintf("worklist failed to converge within %d iterations", MaxIterations),
			)
		}

		b := queue[0]
		queue = queue[1:]
		queued[b] = false

		inputSrc := cfg.Successors[b]
		if forward {
			inputSrc = cfg.Predecessors[b]
		}

		var inVal Domain
		if len(inputSrc) == 0 {
			inVal = a.Init(b, fn)
		} else {
			inputs := make([]Domain, len(inputSrc))
			for i, nb := range inputSrc {
				inputs[i] = out[nb]
			}
			inVal = a.Merge(inputs)
		}

		outVal, err := a.Transfer(inVal, b, cfg, cfg.Blocks[b])
		if err != nil {
			return nil, err
		}

		changed := out[b] == nil || !out[b].Equal(outVal)
		in[b] = inVal
		out[b] = outVal

		if changed {
			neighbors := cfg.Predecessors[b]
			if forward {
				neighbors = cfg.Successors[b]
			}
			for _, nb := range neighbors {
				if !queued[nb] {
					queue = append(queue, nb)
					queued[nb] = true
				}
			}
		}
	}

	if checker, ok := a.(FinalCheck); ok {
		for b := 0; b < n; b++ {
			if err := checker.FinalCheck(in[b], b, cfg.Blocks[b]); err != nil {
				return nil, err
			}
		}
	}

	return &Result{In: in, Out: out}, nil
}
