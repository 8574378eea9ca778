// Package ir holds the data model for the three-address intermediate
// representation: types, literals, instructions, basic blocks and the
// control-flow graph that groups them. See internal/envelope for the JSON
// encoding of this model and internal/ssa, internal/optimize for the passes
// that transform it.
package ir

import (
	"fmt"
	"math"

	"brilmid/internal/diag"
)

// Kind discriminates the handful of scalar types the IR supports.
type Kind int

const (
	KindNone Kind = iota
	KindInt
	KindBool
	KindFloat
	KindChar
	KindPtr
)

// Type is Int, Bool, Float, Char, Ptr(T), or the None sentinel used before
// phi type inference has run. Equal, not ==, is the comparison to use:
// two independently built Ptr(T) values point at distinct Elem allocations.
type Type struct {
	Kind Kind
	Elem *Type
}

var (
	Int   = Type{Kind: KindInt}
	Bool  = Type{Kind: KindBool}
	Float = Type{Kind: KindFloat}
	Char  = Type{Kind: KindChar}
	None  = Type{Kind: KindNone}
)

// PtrTo builds a Ptr(elem) type.
func PtrTo(elem Type) Type {
	e := elem
	return Type{Kind: KindPtr, Elem: &e}
}

func (t Type) IsNone() bool { return t.Kind == KindNone }

func (t Type) Equal(other Type) bool {
	if t.Kind != other.Kind {
		return false
	}
	if t.Kind != KindPtr {
		return true
	}
	return t.Elem.Equal(*other.Elem)
}

func (t Type) String() string {
	switch t.Kind {
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindFloat:
		return "float"
	case KindChar:
		return "char"
	case KindPtr:
		return fmt.Sprintf("ptr<%s>", t.Elem.String())
	default:
		return "none"
	}
}

// Literal is a constant value. Float equality and hashing use the IEEE 754
// bit pattern, not the float itself, so Literal stays a plain comparable
// struct usable as a map key (internal/optimize/gvn relies on this).
type Literal struct {
	Kind      Kind
	IntVal    int64
	BoolVal   bool
	FloatBits uint64
	CharVal   rune
}

func IntLiteral(v int64) Literal   { return Literal{Kind: KindInt, IntVal: v} }
func BoolLiteral(v bool) Literal   { return Literal{Kind: KindBool, BoolVal: v} }
func CharLiteral(v rune) Literal   { return Literal{Kind: KindChar, CharVal: v} }
func FloatLiteral(v float64) Literal {
	return Literal{Kind: KindFloat, FloatBits: math.Float64bits(v)}
}

func (l Literal) Float() float64 { return math.Float64frombits(l.FloatBits) }

func (l Literal) String() string {
	switch l.Kind {
	case KindInt:
		return fmt.Sprintf("%d", l.IntVal)
	case KindBool:
		return fmt.Sprintf("%t", l.BoolVal)
	case KindFloat:
		return fmt.Sprintf("%g", l.Float())
	case KindChar:
		return fmt.Sprintf("%q", l.CharVal)
	default:
		return "<none>"
	}
}

// Position aliases diag.Position so ir code can build diag.Error values
// without diag importing ir back.
type Position = diag.Position

// Opcode names every op the IR understands, across all instruction kinds.
type Opcode string

const (
	OpConst Opcode = "const"
	OpNop   Opcode = "nop"

	// Pure value ops
	OpAdd        Opcode = "add"
	OpSub        Opcode = "sub"
	OpMul        Opcode = "mul"
	OpDiv        Opcode = "div"
	OpEq         Opcode = "eq"
	OpLt         Opcode = "lt"
	OpGt         Opcode = "gt"
	OpLe         Opcode = "le"
	OpGe         Opcode = "ge"
	OpNot        Opcode = "not"
	OpAnd        Opcode = "and"
	OpOr         Opcode = "or"
	OpId         Opcode = "id"
	OpFadd       Opcode = "fadd"
	OpFsub       Opcode = "fsub"
	OpFdiv       Opcode = "fdiv"
	OpFmul       Opcode = "fmul"
	OpFeq        Opcode = "feq"
	OpFlt        Opcode = "flt"
	OpFgt        Opcode = "fgt"
	OpFle        Opcode = "fle"
	OpFge        Opcode = "fge"
	OpCeq        Opcode = "ceq"
	OpClt        Opcode = "clt"
	OpCle        Opcode = "cle"
	OpCgt        Opcode = "cgt"
	OpCge        Opcode = "cge"
	OpChar2Int   Opcode = "char2int"
	OpInt2Char   Opcode = "int2char"
	OpFloat2Bits Opcode = "float2bits"
	OpBits2Float Opcode = "bits2float"
	OpCall       Opcode = "call"
	OpPhi        Opcode = "phi"

	// Effect ops (control flow + observable effects)
	OpJmp   Opcode = "jmp"
	OpBr    Opcode = "br"
	OpRet   Opcode = "ret"
	OpPrint Opcode = "print"

	// Memory ops
	OpAlloc  Opcode = "alloc"
	OpFree   Opcode = "free"
	OpStore  Opcode = "store"
	OpLoad   Opcode = "load"
	OpPtradd Opcode = "ptradd"
)

// Commutative reports whether swapping an op's arguments never changes its
// result, which lets GVN (internal/optimize/gvn) sort argument value numbers
// before hashing.
func (op Opcode) Commutative() bool {
	switch op {
	case OpAdd, OpMul, OpAnd, OpOr, OpEq, OpFadd, OpFmul, OpFeq, OpCeq:
		return true
	default:
		return false
	}
}
