package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brilmid/internal/dataflow"
	"brilmid/internal/ir"
)

func TestReachingDefinitions_ParamsSeedBlockZero(t *testing.T) {
	fn, cfg := buildFn(
		&ir.EffectInstr{Op: ir.OpRet},
	)
	fn.Params = []ir.Parameter{{Name: "a", Type: ir.Int}}

	res, err := dataflow.Run(ReachingDefinitions{}, fn, cfg)
	require.NoError(t, err)

	out := res.Out[0].(DefSet)
	blocks, ok := out["a"]
	require.True(t, ok)
	_, inBlock0 := blocks[0]
	assert.True(t, inBlock0)
}

// TestReachingDefinitions_LoopBackedgeReplacesDef exercises the forward
// meet-∪ rule over a simple loop: inside the loop header, x's reaching
// definitions come from both the initial constant and the body's
// redefinition once the loop has iterated once.
func TestReachingDefinitions_LoopBackedgeReplacesDef(t *testing.T) {
	fn, cfg := buildFn(
		&ir.ConstantInstr{DestName: "x", Type: ir.Int, Value: ir.IntLiteral(0)},
		&ir.EffectInstr{Op: ir.OpJmp, LabelList: []string{"header"}},
		&ir.LabelInstr{Name: "header"},
		&ir.EffectInstr{Op: ir.OpBr, Arguments: []string{"cond"}, LabelList: []string{"body", "exit"}},
		&ir.LabelInstr{Name: "body"},
		&ir.ValueInstr{Op: ir.OpAdd, DestName: "x", Type: ir.Int, Arguments: []string{"x", "one"}},
		&ir.EffectInstr{Op: ir.OpJmp, LabelList: []string{"header"}},
		&ir.LabelInstr{Name: "exit"},
		&ir.EffectInstr{Op: ir.OpRet},
	)
	fn.Params = []ir.Parameter{{Name: "cond", Type: ir.Bool}, {Name: "one", Type: ir.Int}}

	res, err := dataflow.Run(ReachingDefinitions{}, fn, cfg)
	require.NoError(t, err)

	headerIdx := cfg.LabelIndex["header"]
	bodyIdx := cfg.LabelIndex["body"]
	headerIn := res.In[headerIdx].(DefSet)

	defs, ok := headerIn["x"]
	require.True(t, ok)
	_, fromEntry := defs[0]
	_, fromBody := defs[bodyIdx]
	assert.True(t, fromEntry)
	assert.True(t, fromBody)
}
