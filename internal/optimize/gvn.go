package optimize

import (
	"math"
	"strconv"
	"strings"
	"sync/atomic"

	"brilmid/internal/dataflow"
	"brilmid/internal/ir"
)

// vnCounter mints process-wide unique value-number ids: a single
// atomic counter is enough since functions never share mutable state
// otherwise, and determinism of emitted code depends only on canonical-name
// choices, not on specific numeric ids.
var vnCounter uint64

func nextVN() int {
	return int(atomic.AddUint64(&vnCounter, 1))
}

// canonical names the representative of a value-number class: the
// numbering itself plus the first-seen destination variable chosen as its
// home.
type canonical struct {
	VN   int
	Name string
}

// Expr is either a constant or an operation over value numbers, flattened
// to plain comparable fields so it can key a Go map directly for
// deduplication.
type Expr struct {
	IsConst bool
	TypeKey string
	Op      ir.Opcode
	Lit     ir.Literal
	ArgsKey string
}

// GVNState is the per-block canonicalization table: Table
// maps an expression to its value number and canonical name; Cloud maps a
// variable's current name to the same; Consts additionally remembers the
// literal behind a constant value number so pure-value folding can look
// arguments' values up without rescanning Table.
type GVNState struct {
	Table  map[Expr]canonical
	Cloud  map[string]canonical
	Consts map[int]ir.Literal
}

func newGVNState() GVNState {
	return GVNState{Table: map[Expr]canonical{}, Cloud: map[string]canonical{}, Consts: map[int]ir.Literal{}}
}

func (s GVNState) clone() GVNState {
	table := make(map[Expr]canonical, len(s.Table))
	for k, v := range s.Table {
		table[k] = v
	}
	cloud := make(map[string]canonical, len(s.Cloud))
	for k, v := range s.Cloud {
		cloud[k] = v
	}
	consts := make(map[int]ir.Literal, len(s.Consts))
	for k, v := range s.Consts {
		consts[k] = v
	}
	return GVNState{Table: table, Cloud: cloud, Consts: consts}
}

// Equal compares only the set of canonical names bound in Cloud: stable
// idempotence under re-entry, not structural table equality.
func (s GVNState) Equal(other dataflow.Domain) bool {
	o, ok := other.(GVNState)
	if !ok {
		return false
	}
	a := canonicalNames(s.Cloud)
	b := canonicalNames(o.Cloud)
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

func canonicalNames(cloud map[string]canonical) map[string]struct{} {
	out := make(map[string]struct{}, len(cloud))
	for _, c := range cloud {
		out[c.Name] = struct{}{}
	}
	return out
}

// mergeGVN keeps an entry only when every predecessor's state agrees on
// the exact same (value number, canonical name).
func mergeGVN(states []GVNState) GVNState {
	if len(states) == 0 {
		return newGVNState()
	}
	table := map[Expr]canonical{}
	for e, c := range states[0].Table {
		if allAgreeExpr(states, e, c) {
			table[e] = c
		}
	}
	cloud := map[string]canonical{}
	for v, c := range states[0].Cloud {
		if allAgreeCloud(states, v, c) {
			cloud[v] = c
		}
	}
	consts := map[int]ir.Literal{}
	for vn, lit := range states[0].Consts {
		agree := true
		for _, s := range states[1:] {
			l, ok := s.Consts[vn]
			if !ok || l != lit {
				agree = false
				break
			}
		}
		if agree {
			consts[vn] = lit
		}
	}
	return GVNState{Table: table, Cloud: cloud, Consts: consts}
}

func allAgreeExpr(states []GVNState, e Expr, c canonical) bool {
	for _, s := range states[1:] {
		oc, ok := s.Table[e]
		if !ok || oc != c {
			return false
		}
	}
	return true
}

func allAgreeCloud(states []GVNState, v string, c canonical) bool {
	for _, s := range states[1:] {
		oc, ok := s.Cloud[v]
		if !ok || oc != c {
			return false
		}
	}
	return true
}

func getVN(cloud map[string]canonical, v string) canonical {
	c, ok := cloud[v]
	if !ok {
		c = canonical{VN: nextVN(), Name: v}
		cloud[v] = c
	}
	return c
}

func joinInts(xs []int) string {
	var b strings.Builder
	for i, x := range xs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(x))
	}
	return b.String()
}

func sortInts(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

// GVN runs the per-block canonicalization across the CFG via the dataflow
// engine, achieving a conservative global value numbering with copy
// propagation and constant folding.
type GVN struct{}

func (GVN) Name() string { return "gvn" }
func (GVN) Description() string {
	return "global value numbering with copy propagation and constant folding"
}

func (GVN) Apply(fn *ir.Function, cfg *ir.ControlFlowGraph) (bool, error) {
	a := &gvnAnalysis{}
	if _, err := dataflow.Run(a, fn, cfg); err != nil {
		return false, err
	}
	return a.changed, nil
}

type gvnAnalysis struct {
	changed bool
}

func (a *gvnAnalysis) Init(blockIdx int, fn *ir.Function) dataflow.Domain {
	return newGVNState()
}

func (a *gvnAnalysis) IsForward() bool { return true }

func (a *gvnAnalysis) Merge(inputs []dataflow.Domain) dataflow.Domain {
	states := make([]GVNState, len(inputs))
	for i, in := range inputs {
		states[i] = in.(GVNState)
	}
	return mergeGVN(states)
}

func (a *gvnAnalysis) Transfer(in dataflow.Domain, blockIdx int, cfg *ir.ControlFlowGraph, block *ir.BasicBlock) (dataflow.Domain, error) {
	state := in.(GVNState).clone()

	for i, instr := range block.Instrs {
		switch v := instr.(type) {
		case *ir.LabelInstr, *ir.NoopInstr, *ir.MemoryInstr:
			// opaque: left unchanged
		case *ir.ConstantInstr:
			rewritten := canonicalizeConstant(&state, v)
			if rewritten != ir.Instruction(v) {
				a.changed = true
			}
			block.Instrs[i] = rewritten
		case *ir.EffectInstr:
			names := make([]string, len(v.Arguments))
			for j, arg := range v.Arguments {
				names[j] = getVN(state.Cloud, arg).Name
			}
			v.Arguments = names
		case *ir.ValueInstr:
			if v.Op == ir.OpCall || v.Type.Kind == ir.KindPtr {
				names := make([]string, len(v.Arguments))
				for j, arg := range v.Arguments {
					names[j] = getVN(state.Cloud, arg).Name
				}
				v.Arguments = names
				continue
			}
			rewritten := canonicalizeValue(&state, v, &a.changed)
			block.Instrs[i] = rewritten
		}
	}

	return state, nil
}

func canonicalizeConstant(state *GVNState, instr *ir.ConstantInstr) ir.Instruction {
	expr := Expr{IsConst: true, TypeKey: instr.Type.String(), Lit: instr.Value}
	if c, ok := state.Table[expr]; ok {
		state.Cloud[instr.DestName] = c
		return &ir.ValueInstr{
			Op:        ir.OpId,
			DestName:  instr.DestName,
			Type:      instr.Type,
			Arguments: []string{c.Name},
			Position:  instr.Position,
		}
	}
	c := canonical{VN: nextVN(), Name: instr.DestName}
	state.Table[expr] = c
	state.Consts[c.VN] = instr.Value
	state.Cloud[instr.DestName] = c
	return instr
}

func flattenCopy(table map[Expr]canonical, arg canonical) (Expr, bool) {
	for e, c := range table {
		if c == arg {
			return e, true
		}
	}
	return Expr{}, false
}

func constLiterals(state *GVNState, argCanon []canonical) ([]ir.Literal, bool) {
	lits := make([]ir.Literal, len(argCanon))
	for i, c := range argCanon {
		lit, ok := state.Consts[c.VN]
		if !ok {
			return nil, false
		}
		lits[i] = lit
	}
	return lits, true
}

func canonicalizeValue(state *GVNState, instr *ir.ValueInstr, changed *bool) ir.Instruction {
	argCanon := make([]canonical, len(instr.Arguments))
	for i, a := range instr.Arguments {
		argCanon[i] = getVN(state.Cloud, a)
	}

	if instr.Op == ir.OpId && len(argCanon) == 1 {
		if e, ok := flattenCopy(state.Table, argCanon[0]); ok {
			return finishExpr(state, e, instr, changed, argCanon)
		}
	}

	vns := make([]int, len(argCanon))
	for i, c := range argCanon {
		vns[i] = c.VN
	}
	if instr.Op.Commutative() {
		sortInts(vns)
	}

	if isFoldable(instr.Op) {
		if lits, ok := constLiterals(state, argCanon); ok {
			if folded, ok := evalConst(instr.Op, lits); ok {
				*changed = true
				constInstr := &ir.ConstantInstr{DestName: instr.DestName, Type: instr.Type, Value: folded, Position: instr.Position}
				return canonicalizeConstant(state, constInstr)
			}
		}
	}

	expr := Expr{Op: instr.Op, TypeKey: instr.Type.String(), ArgsKey: joinInts(vns)}
	return finishExpr(state, expr, instr, changed, argCanon)
}

func finishExpr(state *GVNState, expr Expr, instr *ir.ValueInstr, changed *bool, argCanon []canonical) ir.Instruction {
	if c, ok := state.Table[expr]; ok {
		state.Cloud[instr.DestName] = c
		if instr.Op != ir.OpId || len(instr.Arguments) != 1 || instr.Arguments[0] != c.Name {
			*changed = true
		}
		return &ir.ValueInstr{
			Op:        ir.OpId,
			DestName:  instr.DestName,
			Type:      instr.Type,
			Arguments: []string{c.Name},
			Position:  instr.Position,
		}
	}
	c := canonical{VN: nextVN(), Name: instr.DestName}
	state.Table[expr] = c
	state.Cloud[instr.DestName] = c
	names := make([]string, len(argCanon))
	for i, ac := range argCanon {
		names[i] = ac.Name
	}
	if !sameArgs(instr.Arguments, names) {
		*changed = true
	}
	instr.Arguments = names
	return instr
}

func sameArgs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// isFoldable reports the opcodes eligible for constant folding.
func isFoldable(op ir.Opcode) bool {
	switch op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv,
		ir.OpFadd, ir.OpFsub, ir.OpFmul, ir.OpFdiv,
		ir.OpAnd, ir.OpOr, ir.OpNot,
		ir.OpEq, ir.OpLt, ir.OpGt, ir.OpLe, ir.OpGe,
		ir.OpFeq, ir.OpFlt, ir.OpFgt, ir.OpFle, ir.OpFge,
		ir.OpCeq, ir.OpClt, ir.OpCle, ir.OpCgt, ir.OpCge,
		ir.OpChar2Int, ir.OpInt2Char,
		ir.OpFloat2Bits, ir.OpBits2Float:
		return true
	default:
		return false
	}
}

// evalConst evaluates op over already-resolved literal arguments. Integer
// division by zero returns ok=false so the caller leaves the instruction
// in place rather than folding and panicking.
func evalConst(op ir.Opcode, lits []ir.Literal) (ir.Literal, bool) {
	switch op {
	case ir.OpAdd:
		return ir.IntLiteral(lits[0].IntVal + lits[1].IntVal), true
	case ir.OpSub:
		return ir.IntLiteral(lits[0].IntVal - lits[1].IntVal), true
	case ir.OpMul:
		return ir.IntLiteral(lits[0].IntVal * lits[1].IntVal), true
	case ir.OpDiv:
		if lits[1].IntVal == 0 {
			return ir.Literal{}, false
		}
		return ir.IntLiteral(lits[0].IntVal / lits[1].IntVal), true
	case ir.OpFadd:
		return ir.FloatLiteral(lits[0].Float() + lits[1].Float()), true
	case ir.OpFsub:
		return ir.FloatLiteral(lits[0].Float() - lits[1].Float()), true
	case ir.OpFmul:
		return ir.FloatLiteral(lits[0].Float() * lits[1].Float()), true
	case ir.OpFdiv:
		return ir.FloatLiteral(lits[0].Float() / lits[1].Float()), true
	case ir.OpAnd:
		return ir.BoolLiteral(lits[0].BoolVal && lits[1].BoolVal), true
	case ir.OpOr:
		return ir.BoolLiteral(lits[0].BoolVal || lits[1].BoolVal), true
	case ir.OpNot:
		return ir.BoolLiteral(!lits[0].BoolVal), true
	case ir.OpEq:
		return ir.BoolLiteral(lits[0].IntVal == lits[1].IntVal), true
	case ir.OpLt:
		return ir.BoolLiteral(lits[0].IntVal < lits[1].IntVal), true
	case ir.OpGt:
		return ir.BoolLiteral(lits[0].IntVal > lits[1].IntVal), true
	case ir.OpLe:
		return ir.BoolLiteral(lits[0].IntVal <= lits[1].IntVal), true
	case ir.OpGe:
		return ir.BoolLiteral(lits[0].IntVal >= lits[1].IntVal), true
	case ir.OpFeq:
		return ir.BoolLiteral(lits[0].Float() == lits[1].Float()), true
	case ir.OpFlt:
		return ir.BoolLiteral(lits[0].Float() < lits[1].Float()), true
	case ir.OpFgt:
		return ir.BoolLiteral(lits[0].Float() > lits[1].Float()), true
	case ir.OpFle:
		return ir.BoolLiteral(lits[0].Float() <= lits[1].Float()), true
	case ir.OpFge:
		return ir.BoolLiteral(lits[0].Float() >= lits[1].Float()), true
	case ir.OpCeq:
		return ir.BoolLiteral(lits[0].CharVal == lits[1].CharVal), true
	case ir.OpClt:
		return ir.BoolLiteral(lits[0].CharVal < lits[1].CharVal), true
	case ir.OpCle:
		return ir.BoolLiteral(lits[0].CharVal <= lits[1].CharVal), true
	case ir.OpCgt:
		return ir.BoolLiteral(lits[0].CharVal > lits[1].CharVal), true
	case ir.OpCge:
		return ir.BoolLiteral(lits[0].CharVal >= lits[1].CharVal), true
	case ir.OpChar2Int:
		return ir.IntLiteral(int64(lits[0].CharVal)), true
	case ir.OpInt2Char:
		return ir.CharLiteral(rune(lits[0].IntVal)), true
	case ir.OpFloat2Bits:
		return ir.IntLiteral(int64(lits[0].FloatBits)), true
	case ir.OpBits2Float:
		return ir.FloatLiteral(math.Float64frombits(uint64(lits[0].IntVal))), true
	default:
		return ir.Literal{}, false
	}
}
