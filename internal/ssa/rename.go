package ssa

import (
	"fmt"

	"brilmid/internal/dom"
	"brilmid/internal/ir"
)

// renamer recurses the dominator tree assigning fresh SSA names. stacks
// holds, per original variable name, the live chain of renamed
// definitions visible at the current point of the recursion.
type renamer struct {
	cfg      *ir.ControlFlowGraph
	info     *dom.Info
	counters map[string]int
	stacks   map[string][]string
}

// Rename performs dominator-tree-recursive SSA renaming starting at the
// entry block.
func Rename(fn *ir.Function, cfg *ir.ControlFlowGraph, info *dom.Info) {
	r := &renamer{cfg: cfg, info: info, counters: map[string]int{}, stacks: map[string][]string{}}
	if len(cfg.Blocks) > 0 {
		r.renameBlock(0)
	}
}

func (r *renamer) fresh(v string) string {
	n := r.counters[v]
	r.counters[v] = n + 1
	return fmt.Sprintf("%s_%d", v, n)
}

func (r *renamer) top(v string) string {
	st := r.stacks[v]
	if len(st) == 0 {
		return v
	}
	return st[len(st)-1]
}

func (r *renamer) push(v, renamed string) {
	r.stacks[v] = append(r.stacks[v], renamed)
}

func (r *renamer) renameBlock(bi int) {
	block := r.cfg.Blocks[bi]

	saved := make(map[string]int, len(r.stacks))
	for v, st := range r.stacks {
		saved[v] = len(st)
	}

	for _, phi := range block.Phis {
		newName := r.fresh(phi.OriginalName)
		phi.Dest = newName
		r.push(phi.OriginalName, newName)
	}

	for _, instr := range block.Instrs {
		args := instr.Args()
		if len(args) > 0 {
			renamed := make([]string, len(args))
			for i, a := range args {
				renamed[i] = r.top(a)
			}
			instr.SetArgs(renamed)
		}
		if d, ok := instr.Dest(); ok {
			newName := r.fresh(d)
			instr.SetDest(newName)
			r.push(d, newName)
		}
	}

	if block.Term.Control != nil {
		args := block.Term.Control.Args()
		if len(args) > 0 {
			renamed := make([]string, len(args))
			for i, a := range args {
				renamed[i] = r.top(a)
			}
			block.Term.Control.SetArgs(renamed)
		}
	}

	for _, s := range r.cfg.Successors[bi] {
		succ := r.cfg.Blocks[s]
		for _, phi := range succ.Phis {
			phi.AddArg(r.top(phi.OriginalName), block.Label)
		}
	}

	for _, child := range r.info.IdomChildren(bi) {
		r.renameBlock(child)
	}

	for v, st := range r.stacks {
		if n, ok := saved[v]; ok {
			r.stacks[v] = st[:n]
		} else {
			r.stacks[v] = st[:0]
		}
	}
}
