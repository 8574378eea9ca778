package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestType_Equal(t *testing.T) {
	assert.True(t, Int.Equal(Int))
	assert.False(t, Int.Equal(Bool))
	assert.True(t, PtrTo(Int).Equal(PtrTo(Int)))
	assert.False(t, PtrTo(Int).Equal(PtrTo(Bool)))
	assert.False(t, PtrTo(Int).Equal(Int))
}

func TestType_String(t *testing.T) {
	assert.Equal(t, "int", Int.String())
	assert.Equal(t, "ptr<int>", PtrTo(Int).String())
	assert.Equal(t, "none", None.String())
}

// TestLiteral_FloatBitwiseEquality checks that float literal equality and
// hashing use the bit pattern, so two literals are equal iff their bits
// match, including for NaN (which is not == to itself under normal float
// comparison).
func TestLiteral_FloatBitwiseEquality(t *testing.T) {
	a := FloatLiteral(1.5)
	b := FloatLiteral(1.5)
	assert.Equal(t, a, b)

	nan := FloatLiteral(math.NaN())
	assert.Equal(t, nan, nan)

	assert.NotEqual(t, FloatLiteral(1.0), FloatLiteral(2.0))
}

func TestLiteral_UsableAsMapKey(t *testing.T) {
	m := map[Literal]string{
		IntLiteral(1):     "one",
		FloatLiteral(2.5): "two-half",
	}
	assert.Equal(t, "one", m[IntLiteral(1)])
	assert.Equal(t, "two-half", m[FloatLiteral(2.5)])
}

func TestHasSideEffects(t *testing.T) {
	assert.True(t, HasSideEffects(&EffectInstr{Op: OpPrint}))
	assert.True(t, HasSideEffects(&MemoryInstr{Op: OpStore}))
	assert.True(t, HasSideEffects(&ValueInstr{Op: OpCall}))
	assert.False(t, HasSideEffects(&ValueInstr{Op: OpAdd}))
	assert.False(t, HasSideEffects(&ConstantInstr{}))
}

func TestOpcode_Commutative(t *testing.T) {
	assert.True(t, OpAdd.Commutative())
	assert.True(t, OpMul.Commutative())
	assert.False(t, OpSub.Commutative())
	assert.False(t, OpDiv.Commutative())
}
