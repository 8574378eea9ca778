// Package dom computes dominance information over a control-flow graph:
// dominator sets, the immediate-dominator tree, and dominance frontiers,
// via reverse post-order, an iterative intersection fixpoint, and a
// frontier computed by a predecessor dominator-set scan.
package dom

import "brilmid/internal/ir"

// Info is the result of Compute: dominator sets, the immediate-dominator
// tree (as parent links and children lists) and dominance frontiers, all
// indexed by block id.
type Info struct {
	RPO      []int
	dom      []map[int]struct{}
	Idom     []int // -1 for the entry block
	Children [][]int
	df       [][]int
}

// Dominates reports whether a dominates b (reflexive: a block dominates
// itself).
func (info *Info) Dominates(a, b int) bool {
	_, ok := info.dom[b][a]
	return ok
}

// StrictDominators returns the blocks that strictly dominate b, i.e.
// dom[b] \ {b}.
func (info *Info) StrictDominators(b int) []int {
	out := make([]int, 0, len(info.dom[b]))
	for a := range info.dom[b] {
		if a != b {
			out = append(out, a)
		}
	}
	return out
}

// Frontier returns the dominance frontier of b: blocks b does not strictly
// dominate but that have a predecessor b does dominate.
func (info *Info) Frontier(b int) []int {
	return info.df[b]
}

// IdomChildren returns the blocks whose immediate dominator is b.
func (info *Info) IdomChildren(b int) []int {
	return info.Children[b]
}

// Compute builds dominance Info for cfg, whose entry is block 0. cfg must
// already have unreachable blocks pruned: every block other than the entry
// is assumed to have at least one predecessor.
func Compute(cfg *ir.ControlFlowGraph) *Info {
	n := len(cfg.Blocks)
	rpo := reversePostOrder(cfg)

	full := make(map[int]struct{}, n)
	for i := 0; i < n; i++ {
		full[i] = struct{}{}
	}

	domSets := make([]map[int]struct{}, n)
	if n > 0 {
		domSets[0] = map[int]struct{}{0: {}}
	}
	for i := 1; i < n; i++ {
		domSets[i] = cloneSet(full)
	}

	for changed := true; changed; {
		changed = false
		for _, b := range rpo {
			if b == 0 {
				continue
			}
			inter := intersectPreds(domSets, cfg.Predecessors[b])
			inter[b] = struct{}{}
			if !setEqual(inter, domSets[b]) {
				domSets[b] = inter
				changed = true
			}
		}
	}

	idom := computeIdom(domSets, n)
	children := computeChildren(idom, n)
	df := computeFrontier(cfg, domSets, n)

	return &Info{RPO: rpo, dom: domSets, Idom: idom, Children: children, df: df}
}

func reversePostOrder(cfg *ir.ControlFlowGraph) []int {
	n := len(cfg.Blocks)
	if n == 0 {
		return nil
	}
	visited := make([]bool, n)
	var post []int

	var visit func(b int)
	visit = func(b int) {
		visited[b] = true
		for _, s := range cfg.Successors[b] {
			if !visited[s] {
				visit(s)
			}
		}
		post = append(post, b)
	}
	visit(0)

	rpo := make([]int, len(post))
	for i, b := range post {
		rpo[len(post)-1-i] = b
	}
	return rpo
}

func cloneSet(s map[int]struct{}) map[int]struct{} {
	out := make(map[int]struct{}, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

func intersectPreds(domSets []map[int]struct{}, preds []int) map[int]struct{} {
	if len(preds) == 0 {
		return map[int]struct{}{}
	}
	out := cloneSet(domSets[preds[0]])
	for _, p := range preds[1:] {
		for k := range out {
			if _, ok := domSets[p][k]; !ok {
				delete(out, k)
			}
		}
	}
	return out
}

func setEqual(a, b map[int]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// computeIdom picks, for each non-entry block, the strict dominator that
// does not itself strictly dominate any other strict dominator of b: the
// canonical (Cooper/Muchnick) characterization of the immediate dominator,
// the closest strict dominator in the chain from entry to b.
func computeIdom(domSets []map[int]struct{}, n int) []int {
	idom := make([]int, n)
	if n > 0 {
		idom[0] = -1
	}
	for b := 1; b < n; b++ {
		found := -1
		for d := range domSets[b] {
			if d == b {
				continue
			}
			dominatesAnotherStrictDom := false
			for d2 := range domSets[b] {
				if d2 == b || d2 == d {
					continue
				}
				if _, ok := domSets[d2][d]; ok {
					dominatesAnotherStrictDom = true
					break
				}
			}
			if !dominatesAnotherStrictDom {
				found = d
				break
			}
		}
		idom[b] = found
	}
	return idom
}

func computeChildren(idom []int, n int) [][]int {
	children := make([][]int, n)
	for b := 1; b < n; b++ {
		if idom[b] >= 0 {
			children[idom[b]] = append(children[idom[b]], b)
		}
	}
	return children
}

// computeFrontier computes the dominance frontier directly: for every
// block b, every predecessor p of b, every a in dom[p], b joins DF(a)
// unless a strictly dominates b.
func computeFrontier(cfg *ir.ControlFlowGraph, domSets []map[int]struct{}, n int) [][]int {
	dfSets := make([]map[int]struct{}, n)
	for i := range dfSets {
		dfSets[i] = map[int]struct{}{}
	}
	for b := 0; b < n; b++ {
		for _, p := range cfg.Predecessors[b] {
			for a := range domSets[p] {
				_, aInDomB := domSets[b][a]
				strictlyDominates := aInDomB && a != b
				if !strictlyDominates {
					dfSets[a][b] = struct{}{}
				}
			}
		}
	}

	df := make([][]int, n)
	for i, s := range dfSets {
		out := make([]int, 0, len(s))
		for k := range s {
			out = append(out, k)
		}
		df[i] = sortInts(out)
	}
	return df
}

func sortInts(xs []int) []int {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
	return xs
}
