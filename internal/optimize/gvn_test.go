package optimize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brilmid/internal/dataflow"
	"brilmid/internal/ir"
)

// TestGVN_ConstantFold checks a=3; b=4; c=add a b; d=mul c c; print d:
// after GVN, c folds to 7 and d folds to 49.
func TestGVN_ConstantFold(t *testing.T) {
	fn, cfg := buildFn(
		&ir.ConstantInstr{DestName: "a", Type: ir.Int, Value: ir.IntLiteral(3)},
		&ir.ConstantInstr{DestName: "b", Type: ir.Int, Value: ir.IntLiteral(4)},
		&ir.ValueInstr{Op: ir.OpAdd, DestName: "c", Type: ir.Int, Arguments: []string{"a", "b"}},
		&ir.ValueInstr{Op: ir.OpMul, DestName: "d", Type: ir.Int, Arguments: []string{"c", "c"}},
		&ir.EffectInstr{Op: ir.OpPrint, Arguments: []string{"d"}},
	)

	changed, err := GVN{}.Apply(fn, cfg)
	require.NoError(t, err)
	assert.True(t, changed)

	cInstr, ok := fn.Blocks[0].Instrs[2].(*ir.ConstantInstr)
	require.True(t, ok, "c should have folded to a const")
	assert.Equal(t, int64(7), cInstr.Value.IntVal)

	dInstr, ok := fn.Blocks[0].Instrs[3].(*ir.ConstantInstr)
	require.True(t, ok, "d should have folded to a const")
	assert.Equal(t, int64(49), dInstr.Value.IntVal)
}

// TestGVN_CommutativeCSE checks t1 = add x y; t2 = add y x: t2 becomes an
// id copy of t1.
func TestGVN_CommutativeCSE(t *testing.T) {
	fn, cfg := buildFn(
		&ir.ValueInstr{Op: ir.OpAdd, DestName: "t1", Type: ir.Int, Arguments: []string{"x", "y"}},
		&ir.ValueInstr{Op: ir.OpAdd, DestName: "t2", Type: ir.Int, Arguments: []string{"y", "x"}},
		&ir.EffectInstr{Op: ir.OpPrint, Arguments: []string{"t2"}},
	)
	fn.Params = []ir.Parameter{{Name: "x", Type: ir.Int}, {Name: "y", Type: ir.Int}}

	_, err := GVN{}.Apply(fn, cfg)
	require.NoError(t, err)

	t2 := fn.Blocks[0].Instrs[1].(*ir.ValueInstr)
	assert.Equal(t, ir.OpId, t2.Op)
	assert.Equal(t, []string{"t1"}, t2.Arguments)
}

func TestGVN_IntegerDivisionByZeroDoesNotFold(t *testing.T) {
	fn, cfg := buildFn(
		&ir.ConstantInstr{DestName: "a", Type: ir.Int, Value: ir.IntLiteral(10)},
		&ir.ConstantInstr{DestName: "zero", Type: ir.Int, Value: ir.IntLiteral(0)},
		&ir.ValueInstr{Op: ir.OpDiv, DestName: "q", Type: ir.Int, Arguments: []string{"a", "zero"}},
		&ir.EffectInstr{Op: ir.OpPrint, Arguments: []string{"q"}},
	)

	_, err := GVN{}.Apply(fn, cfg)
	require.NoError(t, err)

	q, ok := fn.Blocks[0].Instrs[2].(*ir.ValueInstr)
	require.True(t, ok, "division by a zero literal must stay an instruction, not fold")
	assert.Equal(t, ir.OpDiv, q.Op)
}

func TestGVN_CopyFlattening(t *testing.T) {
	fn, cfg := buildFn(
		&ir.ConstantInstr{DestName: "a", Type: ir.Int, Value: ir.IntLiteral(5)},
		&ir.ValueInstr{Op: ir.OpId, DestName: "b", Type: ir.Int, Arguments: []string{"a"}},
		&ir.ValueInstr{Op: ir.OpId, DestName: "c", Type: ir.Int, Arguments: []string{"b"}},
		&ir.EffectInstr{Op: ir.OpPrint, Arguments: []string{"c"}},
	)

	_, err := GVN{}.Apply(fn, cfg)
	require.NoError(t, err)

	// c's chain of copies should collapse to referencing a's canonical
	// constant home directly.
	cInstr := fn.Blocks[0].Instrs[2].(*ir.ValueInstr)
	assert.Equal(t, ir.OpId, cInstr.Op)
	assert.Equal(t, []string{"a"}, cInstr.Arguments)
}

// TestGVN_SkipsMemoryAndCallOps checks that memory ops and call are never
// value-numbered as expressions.
func TestGVN_SkipsMemoryAndCallOps(t *testing.T) {
	fn, cfg := buildFn(
		&ir.MemoryInstr{Op: ir.OpLoad, DestName: "v", HasDest: true, Type: ir.Int, Arguments: []string{"p"}},
		&ir.MemoryInstr{Op: ir.OpLoad, DestName: "w", HasDest: true, Type: ir.Int, Arguments: []string{"p"}},
		&ir.EffectInstr{Op: ir.OpPrint, Arguments: []string{"v", "w"}},
	)
	fn.Params = []ir.Parameter{{Name: "p", Type: ir.PtrTo(ir.Int)}}

	_, err := GVN{}.Apply(fn, cfg)
	require.NoError(t, err)

	v := fn.Blocks[0].Instrs[0].(*ir.MemoryInstr)
	w := fn.Blocks[0].Instrs[1].(*ir.MemoryInstr)
	assert.Equal(t, ir.OpLoad, v.Op)
	assert.Equal(t, ir.OpLoad, w.Op)
}

// TestGVN_IdempotentUnderOwnEquality checks that a second canonicalization
// pass produces an equal table state.
func TestGVN_IdempotentUnderOwnEquality(t *testing.T) {
	fn, cfg := buildFn(
		&ir.ConstantInstr{DestName: "a", Type: ir.Int, Value: ir.IntLiteral(1)},
		&ir.ConstantInstr{DestName: "b", Type: ir.Int, Value: ir.IntLiteral(2)},
		&ir.ValueInstr{Op: ir.OpAdd, DestName: "c", Type: ir.Int, Arguments: []string{"a", "b"}},
		&ir.EffectInstr{Op: ir.OpPrint, Arguments: []string{"c"}},
	)

	a1 := &gvnAnalysis{}
	res1, err := dataflow.Run(a1, fn, cfg)
	require.NoError(t, err)

	a2 := &gvnAnalysis{}
	res2, err := dataflow.Run(a2, fn, cfg)
	require.NoError(t, err)

	assert.False(t, a2.changed, "second pass over already-canonical code should be a no-op")
	assert.True(t, res1.Out[0].(GVNState).Equal(res2.Out[0].(GVNState)))
}
