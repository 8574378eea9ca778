// Package driver sequences the pipeline end to end for one function — block
// construction, CFG, dominance, SSA, optimization, out-of-SSA lowering —
// and exposes a sequential Run plus a bounded-worker RunConcurrent across a
// program's functions, using a job-channel/WaitGroup worker pool since each
// function's pipeline mutates only its own Function/CFG and the sole
// process-wide state (GVN's value-number counter) is already atomic.
package driver

import (
	"fmt"
	"runtime"
	"sync"

	"brilmid/internal/analysis"
	"brilmid/internal/dataflow"
	"brilmid/internal/dom"
	"brilmid/internal/ir"
	"brilmid/internal/optimize"
	"brilmid/internal/ssa"
)

// Options configures which passes run and whether SSA form is preserved on
// output.
type Options struct {
	DCE         bool
	LVN         bool
	Loops       bool
	PreserveSSA bool
	Repeat      bool
	Log         optimize.Logger
}

// RunFunction carries fn through block construction, CFG/dominance,
// pruned-SSA construction, the optimization pipeline, and (unless
// PreserveSSA) out-of-SSA lowering. It mutates fn in place.
func RunFunction(fn *ir.Function, opts Options) error {
	blocks := ir.BuildBlocks(fn)
	cfg, err := ir.BuildCFG(blocks)
	if err != nil {
		return err
	}
	cfg, err = ir.PruneUnreachable(cfg)
	if err != nil {
		return err
	}
	fn.Blocks = cfg.Blocks
	fn.CFG = cfg

	info := dom.Compute(cfg)

	if err := ssa.Build(fn, cfg, info); err != nil {
		return err
	}

	if _, err := dataflow.Run(analysis.NewDefinitelyInitialized(fn), fn, cfg); err != nil {
		return err
	}

	pipeline := optimize.NewPipeline(opts.Log)
	if opts.DCE {
		pipeline.AddPass(optimize.DCE{})
	}
	if opts.LVN {
		pipeline.AddPass(optimize.GVN{})
	}
	if opts.Loops {
		pipeline.AddPass(optimize.LICM{})
	}
	pipeline.Repeat(opts.Repeat)
	if _, err := pipeline.Run(fn, cfg); err != nil {
		return err
	}

	if !opts.PreserveSSA {
		outCFG, err := ssa.LowerOutOfSSA(fn)
		if err != nil {
			return err
		}
		fn.CFG = outCFG
		fn.Blocks = outCFG.Blocks
	}

	return nil
}

// Run processes every function in prog sequentially.
func Run(prog *ir.Program, opts Options) error {
	for _, fn := range prog.Functions {
		if err := RunFunction(fn, opts); err != nil {
			return fmt.Errorf("function %q: %w", fn.Name, err)
		}
	}
	return nil
}

// RunConcurrent processes prog's functions across a bounded worker pool:
// per-function parallelism is safe since each function's pipeline state is
// private and the GVN counter is atomic. workers <= 0 defaults to
// runtime.NumCPU(), capped at the function count.
func RunConcurrent(prog *ir.Program, opts Options, workers int) error {
	n := len(prog.Functions)
	if n == 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}

	jobs := make(chan int, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				fn := prog.Functions[idx]
				if err := RunFunction(fn, opts); err != nil {
					errs[idx] = fmt.Errorf("function %q: %w", fn.Name, err)
				}
			}
		}()
	}

	for i := range prog.Functions {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
