// Package optimize implements the three mid-end transforms that run over
// SSA form: dead code elimination, global value numbering with copy
// propagation and constant folding, and loop-invariant code motion. Each
// is a Pass sequenced by a small Pipeline that runs transforms over a
// function against the dominance and dataflow machinery, re-running to a
// fixpoint when a pass reports it changed something.
package optimize

import "brilmid/internal/ir"

// Pass is a single named transform over one function's CFG. Apply reports
// whether it changed anything, so a driver can decide whether to re-run
// the pipeline to a fixpoint.
type Pass interface {
	Name() string
	Description() string
	Apply(fn *ir.Function, cfg *ir.ControlFlowGraph) (bool, error)
}

// Logger is the narrow interface Pipeline needs for progress reporting;
// internal/driverlog's wrapper satisfies it without optimize importing it.
type Logger interface {
	Infof(format string, args ...interface{})
}

// Pipeline runs a sequence of passes over a function, optionally looping
// each to a local fixpoint.
type Pipeline struct {
	passes []Pass
	log    Logger
	repeat bool
}

// NewPipeline builds an empty pipeline; log may be nil to run silently.
func NewPipeline(log Logger) *Pipeline {
	return &Pipeline{log: log}
}

func (p *Pipeline) AddPass(pass Pass) {
	p.passes = append(p.passes, pass)
}

// Repeat controls whether each pass re-runs until it reports no change
// (useful for GVN followed by DCE exposing further dead code).
func (p *Pipeline) Repeat(repeat bool) {
	p.repeat = repeat
}

// Run executes every pass over fn/cfg in order, returning whether any pass
// changed anything.
func (p *Pipeline) Run(fn *ir.Function, cfg *ir.ControlFlowGraph) (bool, error) {
	anyChanged := false
	for _, pass := range p.passes {
		for {
			changed, err := pass.Apply(fn, cfg)
			if err != nil {
				return anyChanged, err
			}
			if p.log != nil {
				p.log.Infof("pass %s (%s): changed=%t", pass.Name(), pass.Description(), changed)
			}
			if changed {
				anyChanged = true
			}
			if !changed || !p.repeat {
				break
			}
		}
	}
	return anyChanged, nil
}
