package optimize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brilmid/internal/ir"
)

// loopFn builds a simple while loop entry -> header -> body -> header |
// exit, with an invariant t = add one two computed in the body, expected
// to hoist to the header's preheader.
func loopFn() *ir.Function {
	return &ir.Function{
		Params: []ir.Parameter{{Name: "n", Type: ir.Int}},
		Instrs: []ir.Instruction{
			&ir.ConstantInstr{DestName: "i", Type: ir.Int, Value: ir.IntLiteral(0)},
			&ir.EffectInstr{Op: ir.OpJmp, LabelList: []string{"header"}},
			&ir.LabelInstr{Name: "header"},
			&ir.ValueInstr{Op: ir.OpLt, DestName: "cond", Type: ir.Bool, Arguments: []string{"i", "n"}},
			&ir.EffectInstr{Op: ir.OpBr, Arguments: []string{"cond"}, LabelList: []string{"body", "exit"}},
			&ir.LabelInstr{Name: "body"},
			&ir.ConstantInstr{DestName: "one", Type: ir.Int, Value: ir.IntLiteral(1)},
			&ir.ConstantInstr{DestName: "two", Type: ir.Int, Value: ir.IntLiteral(2)},
			&ir.ValueInstr{Op: ir.OpAdd, DestName: "t", Type: ir.Int, Arguments: []string{"one", "two"}},
			&ir.ValueInstr{Op: ir.OpAdd, DestName: "i", Type: ir.Int, Arguments: []string{"i", "t"}},
			&ir.EffectInstr{Op: ir.OpJmp, LabelList: []string{"header"}},
			&ir.LabelInstr{Name: "exit"},
			&ir.EffectInstr{Op: ir.OpRet},
		},
	}
}

func TestLICM_HoistsLoopInvariantConstant(t *testing.T) {
	fn, cfg := buildFn(loopFn().Instrs...)
	fn.Params = loopFn().Params

	changed, err := LICM{}.Apply(fn, cfg)
	require.NoError(t, err)
	require.True(t, changed)

	headerIdx := cfg.LabelIndex["header"]
	header := cfg.Blocks[headerIdx]
	require.Len(t, header.Preheader, 3, "one, two, and the invariant t=add(one,two) should all hoist")

	bodyIdx := cfg.LabelIndex["body"]
	body := cfg.Blocks[bodyIdx]
	for _, instr := range body.Instrs {
		if vi, ok := instr.(*ir.ConstantInstr); ok {
			assert.Fail(t, "body should no longer define the hoisted constant", "found %q", vi.DestName)
		}
	}
}

func TestLICM_MarksBackedgeSourceNaturalLoopReturn(t *testing.T) {
	fn, cfg := buildFn(loopFn().Instrs...)
	fn.Params = loopFn().Params

	_, err := LICM{}.Apply(fn, cfg)
	require.NoError(t, err)

	bodyIdx := cfg.LabelIndex["body"]
	assert.True(t, cfg.Blocks[bodyIdx].NaturalLoopReturn)
}

// TestLICM_DoesNotHoistInductionVariable ensures `i` (which carries a
// loop-varying value across iterations) is never hoisted, since i's own
// reaching-definition set inside the loop includes the body's redefinition.
func TestLICM_DoesNotHoistInductionVariable(t *testing.T) {
	fn, cfg := buildFn(loopFn().Instrs...)
	fn.Params = loopFn().Params

	_, err := LICM{}.Apply(fn, cfg)
	require.NoError(t, err)

	bodyIdx := cfg.LabelIndex["body"]
	body := cfg.Blocks[bodyIdx]
	found := false
	for _, instr := range body.Instrs {
		if vi, ok := instr.(*ir.ValueInstr); ok && vi.DestName == "i" {
			found = true
		}
	}
	assert.True(t, found, "the induction variable update must stay in the loop body")
}

func TestLICM_NoBackedgeIsANoop(t *testing.T) {
	fn, cfg := buildFn(
		&ir.ConstantInstr{DestName: "a", Type: ir.Int, Value: ir.IntLiteral(1)},
		&ir.EffectInstr{Op: ir.OpPrint, Arguments: []string{"a"}},
	)
	changed, err := LICM{}.Apply(fn, cfg)
	require.NoError(t, err)
	assert.False(t, changed)
}
