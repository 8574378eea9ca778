package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brilmid/internal/dataflow"
	"brilmid/internal/diag"
	"brilmid/internal/ir"
)

// TestDefinitelyInitialized_UninitializedUse checks that
// main(){ a = add b c; ret; } reports an uninitialized-use error.
func TestDefinitelyInitialized_UninitializedUse(t *testing.T) {
	fn, cfg := buildFn(
		&ir.ValueInstr{Op: ir.OpAdd, DestName: "a", Type: ir.Int, Arguments: []string{"b", "c"}, Position: ir.Position{Row: 2, Col: 9}},
		&ir.EffectInstr{Op: ir.OpRet},
	)

	_, err := dataflow.Run(NewDefinitelyInitialized(fn), fn, cfg)
	require.Error(t, err)

	derr, ok := err.(*diag.Error)
	require.True(t, ok)
	assert.Equal(t, diag.Semantic, derr.Category)
	assert.Equal(t, diag.ErrUninitializedUse, derr.Code)
	assert.Equal(t, 2, derr.Position.Row)
}

func TestDefinitelyInitialized_ParamsAreInitialized(t *testing.T) {
	fn, cfg := buildFn(
		&ir.ValueInstr{Op: ir.OpAdd, DestName: "c", Type: ir.Int, Arguments: []string{"a", "b"}},
		&ir.EffectInstr{Op: ir.OpPrint, Arguments: []string{"c"}},
	)
	fn.Params = []ir.Parameter{{Name: "a", Type: ir.Int}, {Name: "b", Type: ir.Int}}

	_, err := dataflow.Run(NewDefinitelyInitialized(fn), fn, cfg)
	assert.NoError(t, err)
}

// TestDefinitelyInitialized_MeetIsIntersection checks that a variable
// defined on only one arm of a branch is not definitely initialized at
// the join.
func TestDefinitelyInitialized_MeetIsIntersection(t *testing.T) {
	fn, cfg := buildFn(
		&ir.EffectInstr{Op: ir.OpBr, Arguments: []string{"cond"}, LabelList: []string{"then", "else"}},
		&ir.LabelInstr{Name: "then"},
		&ir.ConstantInstr{DestName: "x", Type: ir.Int, Value: ir.IntLiteral(1)},
		&ir.EffectInstr{Op: ir.OpJmp, LabelList: []string{"join"}},
		&ir.LabelInstr{Name: "else"},
		&ir.EffectInstr{Op: ir.OpJmp, LabelList: []string{"join"}},
		&ir.LabelInstr{Name: "join"},
		&ir.EffectInstr{Op: ir.OpPrint, Arguments: []string{"x"}, Position: ir.Position{Row: 9, Col: 1}},
	)
	fn.Params = []ir.Parameter{{Name: "cond", Type: ir.Bool}}

	_, err := dataflow.Run(NewDefinitelyInitialized(fn), fn, cfg)
	require.Error(t, err)
	derr := err.(*diag.Error)
	assert.Equal(t, diag.ErrUninitializedUse, derr.Code)
}
