package ir

import "fmt"

// labelGen mints block labels that cannot collide with a label already
// written in the function's instruction stream, for a block that starts
// with no user label.
type labelGen struct {
	used map[string]bool
	next int
}

func newLabelGen(fn *Function) *labelGen {
	used := make(map[string]bool)
	for _, instr := range fn.Instrs {
		if l, ok := instr.(*LabelInstr); ok {
			used[l.Name] = true
		}
	}
	return &labelGen{used: used}
}

func (g *labelGen) fresh() string {
	for {
		name := fmt.Sprintf("__block_%d", g.next)
		g.next++
		if !g.used[name] {
			g.used[name] = true
			return name
		}
	}
}

// terminatorFor builds the terminator a control-flow effect instruction
// closes its block with: jmp carries one label, br carries two
// with the first as the true branch, ret carries none.
func terminatorFor(e *EffectInstr) Terminator {
	switch e.Op {
	case OpJmp:
		return Terminator{Kind: TermJmp, TrueLabel: e.LabelList[0], Control: e}
	case OpBr:
		return Terminator{Kind: TermBr, TrueLabel: e.LabelList[0], FalseLabel: e.LabelList[1], Control: e}
	case OpRet:
		return Terminator{Kind: TermRet, Control: e}
	default:
		panic(fmt.Sprintf("ir: terminatorFor called on non-control-flow op %q", e.Op))
	}
}

// BuildBlocks partitions fn's flat instruction stream into basic blocks.
// A block is emitted whenever a label starts a new one or a
// control-flow effect (jmp/br/ret) closes the current one; everything else
// accumulates. Consecutive labels with nothing between them all resolve to
// the same block: the first becomes its Label, the rest its Aliases. A
// function with no trailing explicit return gets a synthetic Ret close.
func BuildBlocks(fn *Function) []*BasicBlock {
	gen := newLabelGen(fn)

	var blocks []*BasicBlock
	label := gen.fresh()
	var hasUserLabel bool
	var aliases []string
	var cur []Instruction

	emit := func(term Terminator) {
		blocks = append(blocks, &BasicBlock{
			ID:      len(blocks),
			Label:   label,
			Aliases: aliases,
			Instrs:  cur,
			Term:    term,
		})
		cur = nil
		aliases = nil
		label = gen.fresh()
		hasUserLabel = false
	}

	for _, instr := range fn.Instrs {
		switch v := instr.(type) {
		case *LabelInstr:
			if len(cur) == 0 {
				if !hasUserLabel {
					label = v.Name
					hasUserLabel = true
				} else {
					aliases = append(aliases, v.Name)
				}
				continue
			}
			emit(Terminator{Kind: TermPassthrough})
			label = v.Name
			hasUserLabel = true
		case *EffectInstr:
			if IsControlFlow(v.Op) {
				emit(terminatorFor(v))
				continue
			}
			cur = append(cur, instr)
		default:
			cur = append(cur, instr)
		}
	}

	if len(cur) > 0 || hasUserLabel || len(blocks) == 0 {
		emit(Terminator{Kind: TermRet})
	}

	return blocks
}
