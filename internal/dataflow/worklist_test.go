package dataflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brilmid/internal/ir"
)

// intSet is a minimal Domain used to exercise the engine independent of
// any real analysis.
type intSet map[int]struct{}

func (s intSet) Equal(other Domain) bool {
	o, ok := other.(intSet)
	if !ok || len(s) != len(o) {
		return false
	}
	for k := range s {
		if _, ok := o[k]; !ok {
			return false
		}
	}
	return true
}

// reachingBlocksAnalysis is a forward meet-∪ analysis whose exit value at
// block b is simply {b} unioned with its inputs: after running it over a
// diamond CFG, block 3's Out should contain every block index.
type reachingBlocksAnalysis struct{}

func (reachingBlocksAnalysis) Init(blockIdx int, fn *ir.Function) Domain { return intSet{} }
func (reachingBlocksAnalysis) IsForward() bool                          { return true }
func (reachingBlocksAnalysis) Merge(inputs []Domain) Domain {
	out := intSet{}
	for _, in := range inputs {
		for k := range in.(intSet) {
			out[k] = struct{}{}
		}
	}
	return out
}
func (reachingBlocksAnalysis) Transfer(in Domain, blockIdx int, cfg *ir.ControlFlowGraph, block *ir.BasicBlock) (Domain, error) {
	out := intSet{}
	for k := range in.(intSet) {
		out[k] = struct{}{}
	}
	out[blockIdx] = struct{}{}
	return out, nil
}

func diamondCFG(t *testing.T) *ir.ControlFlowGraph {
	fn := &ir.Function{
		Instrs: []ir.Instruction{
			&ir.EffectInstr{Op: ir.OpBr, Arguments: []string{"c"}, LabelList: []string{"then", "else"}},
			&ir.LabelInstr{Name: "then"},
			&ir.EffectInstr{Op: ir.OpJmp, LabelList: []string{"join"}},
			&ir.LabelInstr{Name: "else"},
			&ir.EffectInstr{Op: ir.OpJmp, LabelList: []string{"join"}},
			&ir.LabelInstr{Name: "join"},
			&ir.EffectInstr{Op: ir.OpRet},
		},
	}
	blocks := ir.BuildBlocks(fn)
	cfg, err := ir.BuildCFG(blocks)
	require.NoError(t, err)
	return cfg
}

func TestRun_ForwardConverges(t *testing.T) {
	cfg := diamondCFG(t)
	fn := &ir.Function{}

	res, err := Run(reachingBlocksAnalysis{}, fn, cfg)
	require.NoError(t, err)

	join := res.Out[3].(intSet)
	for i := 0; i < 4; i++ {
		_, ok := join[i]
		assert.True(t, ok, "block %d should have reached the join", i)
	}
}

// divergentAnalysis never reaches a fixpoint: Transfer always returns a
// distinct value, forcing the engine's iteration cap to trip.
type divergentAnalysis struct{ counter *int }

func (d divergentAnalysis) Init(blockIdx int, fn *ir.Function) Domain { return intSet{} }
func (d divergentAnalysis) IsForward() bool                          { return true }
func (d divergentAnalysis) Merge(inputs []Domain) Domain             { return intSet{} }
func (d divergentAnalysis) Transfer(in Domain, blockIdx int, cfg *ir.ControlFlowGraph, block *ir.BasicBlock) (Domain, error) {
	*d.counter++
	out := intSet{*d.counter: {}}
	return out, nil
}

func TestRun_EngineErrorOnDivergence(t *testing.T) {
	// A block that jumps to itself is re-queued every time its output
	// changes, so only the iteration cap can stop the engine.
	blocks := ir.BuildBlocks(&ir.Function{
		Instrs: []ir.Instruction{
			&ir.LabelInstr{Name: "loop"},
			&ir.EffectInstr{Op: ir.OpJmp, LabelList: []string{"loop"}},
		},
	})
	cfg, err := ir.BuildCFG(blocks)
	require.NoError(t, err)
	fn := &ir.Function{}
	counter := 0

	_, err = Run(divergentAnalysis{counter: &counter}, fn, cfg)
	require.Error(t, err)
}

func TestRun_EmptyCFG(t *testing.T) {
	cfg := &ir.ControlFlowGraph{}
	fn := &ir.Function{}
	res, err := Run(reachingBlocksAnalysis{}, fn, cfg)
	require.NoError(t, err)
	assert.Empty(t, res.In)
}
