package ssa

import (
	"fmt"

	"brilmid/internal/diag"
	"brilmid/internal/ir"
)

// LowerOutOfSSA clears every block's phi list, turning each phi into an id
// copy pushed into the predecessor block named by its source label, and
// materializes any LICM preheader buffer into a real labeled block that
// executes the hoisted code and jumps into the original header. The
// returned CFG reflects the rebuilt block list.
func LowerOutOfSSA(fn *ir.Function) (*ir.ControlFlowGraph, error) {
	materializePreheaders(fn)

	cfg, err := ir.BuildCFG(fn.Blocks)
	if err != nil {
		return nil, err
	}

	for _, b := range fn.Blocks {
		for _, phi := range b.Phis {
			for _, arg := range phi.Args {
				idx, ok := cfg.LabelIndex[arg.Label]
				if !ok {
					return nil, diag.StructuralError(
						diag.ErrPhiPredecessorSet,
						fmt.Sprintf("phi %q source label %q does not resolve to a block", phi.Dest, arg.Label),
						ir.Position{},
					)
				}
				pred := cfg.Blocks[idx]
				pred.Instrs = append(pred.Instrs, &ir.ValueInstr{
					Op:        ir.OpId,
					DestName:  phi.Dest,
					Type:      phi.Type,
					Arguments: []string{arg.Var},
				})
			}
		}
		b.Phis = nil
	}

	return ir.BuildCFG(fn.Blocks)
}

// materializePreheaders turns each header's accumulated Preheader
// instruction buffer into a real "pre_header_<label>" block, and redirects
// every non-backedge predecessor that targeted the header to target the
// preheader instead. The backedge-source block (NaturalLoopReturn) keeps
// its direct edge to the header.
func materializePreheaders(fn *ir.Function) {
	var extra []*ir.BasicBlock

	for hi, h := range fn.Blocks {
		if len(h.Preheader) == 0 {
			continue
		}
		preLabel := "pre_header_" + h.Label
		pre := &ir.BasicBlock{
			Label:  preLabel,
			Instrs: h.Preheader,
			Term: ir.Terminator{
				Kind:      ir.TermJmp,
				TrueLabel: h.Label,
				Control:   &ir.EffectInstr{Op: ir.OpJmp, LabelList: []string{h.Label}},
			},
		}
		h.Preheader = nil
		extra = append(extra, pre)

		for pi, p := range fn.Blocks {
			if p == h || p.NaturalLoopReturn {
				continue
			}
			switch p.Term.Kind {
			case ir.TermJmp:
				if p.Term.TrueLabel != h.Label {
					continue
				}
				p.Term.TrueLabel = preLabel
				if p.Term.Control != nil {
					p.Term.Control.SetLabels([]string{preLabel})
				}
			case ir.TermBr:
				redirected := false
				if p.Term.TrueLabel == h.Label {
					p.Term.TrueLabel = preLabel
					redirected = true
				}
				if p.Term.FalseLabel == h.Label {
					p.Term.FalseLabel = preLabel
					redirected = true
				}
				if redirected && p.Term.Control != nil {
					p.Term.Control.SetLabels([]string{p.Term.TrueLabel, p.Term.FalseLabel})
				}
			case ir.TermPassthrough:
				// A passthrough predecessor falls into whatever block sits
				// next in fn.Blocks; if that's the header, it now needs an
				// explicit jump to the preheader instead, since the
				// preheader is appended at the end of the block list.
				if pi+1 == hi {
					p.Term = ir.Terminator{
						Kind:      ir.TermJmp,
						TrueLabel: preLabel,
						Control:   &ir.EffectInstr{Op: ir.OpJmp, LabelList: []string{preLabel}},
					}
				}
			}
		}
	}

	if len(extra) > 0 {
		fn.Blocks = append(fn.Blocks, extra...)
		for i, b := range fn.Blocks {
			b.ID = i
		}
	}
}
