// Package envelope is the JSON boundary between the driver and the IR:
// Decode turns a program's JSON envelope into internal/ir types, Encode
// and Flatten go the other way. Instructions arrive as an untagged union
// — Label/Constant/Value/Effect/Memory/Noop discriminated purely by which
// keys are present — so decoding goes through a raw wire struct plus a
// manual classify step, since encoding/json has no tagged-union
// equivalent.
package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"brilmid/internal/diag"
	"brilmid/internal/ir"
)

type rawProgram struct {
	Functions []*rawFunction `json:"functions"`
}

type rawFunction struct {
	Name   string      `json:"name"`
	Args   []rawParam  `json:"args,omitempty"`
	Type   *rawType    `json:"type,omitempty"`
	Instrs []*rawInstr `json:"instrs"`
	Pos    *rawPos     `json:"pos,omitempty"`
}

type rawParam struct {
	Name string  `json:"name"`
	Type rawType `json:"type"`
	Pos  *rawPos `json:"pos,omitempty"`
}

type rawPos struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (p *rawPos) toIR() ir.Position {
	if p == nil {
		return ir.Position{}
	}
	return ir.Position{Row: p.Row, Col: p.Col}
}

// rawType decodes either a bare scalar string ("int") or a nested pointer
// object ({"ptr": T}).
type rawType struct {
	scalar string
	ptr    *rawType
}

func (t *rawType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		t.scalar = s
		return nil
	}
	var wrap struct {
		Ptr json.RawMessage `json:"ptr"`
	}
	if err := json.Unmarshal(data, &wrap); err != nil {
		return fmt.Errorf("type must be a string or a {\"ptr\": ...} object")
	}
	if wrap.Ptr == nil {
		return fmt.Errorf("type object missing \"ptr\" key")
	}
	inner := &rawType{}
	if err := json.Unmarshal(wrap.Ptr, inner); err != nil {
		return err
	}
	t.ptr = inner
	return nil
}

func (t rawType) MarshalJSON() ([]byte, error) {
	if t.ptr != nil {
		return json.Marshal(struct {
			Ptr *rawType `json:"ptr"`
		}{Ptr: t.ptr})
	}
	return json.Marshal(t.scalar)
}

func (t *rawType) toIR() (ir.Type, error) {
	if t == nil {
		return ir.None, nil
	}
	if t.ptr != nil {
		elem, err := t.ptr.toIR()
		if err != nil {
			return ir.Type{}, err
		}
		return ir.PtrTo(elem), nil
	}
	switch t.scalar {
	case "int":
		return ir.Int, nil
	case "bool":
		return ir.Bool, nil
	case "float":
		return ir.Float, nil
	case "char":
		return ir.Char, nil
	default:
		return ir.Type{}, fmt.Errorf("unknown type %q", t.scalar)
	}
}

func fromIRType(t ir.Type) *rawType {
	if t.IsNone() {
		return nil
	}
	if t.Kind == ir.KindPtr {
		return &rawType{ptr: fromIRType(*t.Elem)}
	}
	return &rawType{scalar: t.String()}
}

// rawInstr is the union of every field any of the six instruction shapes
// can carry; classify resolves which shape a given value is by structural
// discrimination over which keys are present.
type rawInstr struct {
	Label  *string         `json:"label,omitempty"`
	Op     *string         `json:"op,omitempty"`
	Dest   *string         `json:"dest,omitempty"`
	Type   *rawType        `json:"type,omitempty"`
	Value  json.RawMessage `json:"value,omitempty"`
	Args   []string        `json:"args,omitempty"`
	Funcs  []string        `json:"funcs,omitempty"`
	Labels []string        `json:"labels,omitempty"`
	Pos    *rawPos         `json:"pos,omitempty"`
}

var valueOps = map[ir.Opcode]bool{
	ir.OpAdd: true, ir.OpSub: true, ir.OpMul: true, ir.OpDiv: true,
	ir.OpEq: true, ir.OpLt: true, ir.OpGt: true, ir.OpLe: true, ir.OpGe: true,
	ir.OpNot: true, ir.OpAnd: true, ir.OpOr: true, ir.OpId: true,
	ir.OpFadd: true, ir.OpFsub: true, ir.OpFdiv: true, ir.OpFmul: true,
	ir.OpFeq: true, ir.OpFlt: true, ir.OpFgt: true, ir.OpFle: true, ir.OpFge: true,
	ir.OpCeq: true, ir.OpClt: true, ir.OpCle: true, ir.OpCgt: true, ir.OpCge: true,
	ir.OpChar2Int: true, ir.OpInt2Char: true, ir.OpFloat2Bits: true, ir.OpBits2Float: true,
	ir.OpPhi: true,
}

func (ri *rawInstr) classify() (ir.InstrKind, error) {
	if ri.Label != nil {
		return ir.KindLabelInstr, nil
	}
	if ri.Op == nil {
		return 0, fmt.Errorf("instruction has neither \"label\" nor \"op\"")
	}
	op := ir.Opcode(*ri.Op)
	switch op {
	case ir.OpConst:
		return ir.KindConstantInstr, nil
	case ir.OpNop:
		return ir.KindNoopInstr, nil
	case ir.OpJmp, ir.OpBr, ir.OpRet, ir.OpPrint:
		return ir.KindEffectInstr, nil
	case ir.OpAlloc, ir.OpFree, ir.OpStore, ir.OpLoad, ir.OpPtradd:
		return ir.KindMemoryInstr, nil
	case ir.OpCall:
		if ri.Dest != nil {
			return ir.KindValueInstr, nil
		}
		return ir.KindEffectInstr, nil
	default:
		if valueOps[op] {
			return ir.KindValueInstr, nil
		}
		return 0, fmt.Errorf("unrecognized op %q", *ri.Op)
	}
}

func toLiteral(t ir.Type, raw json.RawMessage) (ir.Literal, error) {
	switch t.Kind {
	case ir.KindInt:
		var v int64
		if err := json.Unmarshal(raw, &v); err != nil {
			return ir.Literal{}, fmt.Errorf("const value is not an int: %w", err)
		}
		return ir.IntLiteral(v), nil
	case ir.KindBool:
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return ir.Literal{}, fmt.Errorf("const value is not a bool: %w", err)
		}
		return ir.BoolLiteral(v), nil
	case ir.KindFloat:
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return ir.Literal{}, fmt.Errorf("const value is not a float: %w", err)
		}
		return ir.FloatLiteral(v), nil
	case ir.KindChar:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ir.Literal{}, fmt.Errorf("const value is not a char: %w", err)
		}
		runes := []rune(s)
		if len(runes) != 1 {
			return ir.Literal{}, fmt.Errorf("char literal must be a single code point, got %q", s)
		}
		return ir.CharLiteral(runes[0]), nil
	default:
		return ir.Literal{}, fmt.Errorf("const requires a concrete type, got %q", t.String())
	}
}

func literalJSON(l ir.Literal) (json.RawMessage, error) {
	switch l.Kind {
	case ir.KindInt:
		return json.Marshal(l.IntVal)
	case ir.KindBool:
		return json.Marshal(l.BoolVal)
	case ir.KindFloat:
		return json.Marshal(l.Float())
	case ir.KindChar:
		return json.Marshal(string(l.CharVal))
	default:
		return nil, fmt.Errorf("literal has no concrete type")
	}
}

func (ri *rawInstr) toIR() (ir.Instruction, error) {
	pos := ri.Pos.toIR()

	kind, err := ri.classify()
	if err != nil {
		code := diag.ErrEnvelopeMalformed
		if ri.Op != nil {
			code = diag.ErrEnvelopeUnknownOp
		}
		return nil, diag.ParseError(code, err.Error(), pos)
	}

	switch kind {
	case ir.KindLabelInstr:
		return &ir.LabelInstr{Name: *ri.Label, Position: pos}, nil

	case ir.KindNoopInstr:
		return &ir.NoopInstr{Position: pos}, nil

	case ir.KindConstantInstr:
		if ri.Dest == nil || ri.Type == nil {
			return nil, diag.ParseError(diag.ErrEnvelopeMalformed, "const instruction requires \"dest\" and \"type\"", pos)
		}
		t, err := ri.Type.toIR()
		if err != nil {
			return nil, diag.ParseError(diag.ErrEnvelopeType, err.Error(), pos)
		}
		lit, err := toLiteral(t, ri.Value)
		if err != nil {
			return nil, diag.ParseError(diag.ErrEnvelopeType, err.Error(), pos)
		}
		return &ir.ConstantInstr{DestName: *ri.Dest, Type: t, Value: lit, Position: pos}, nil

	case ir.KindValueInstr:
		if ri.Dest == nil {
			return nil, diag.ParseError(diag.ErrEnvelopeMalformed, "value instruction requires \"dest\"", pos)
		}
		t, err := ri.Type.toIR()
		if err != nil {
			return nil, diag.ParseError(diag.ErrEnvelopeType, err.Error(), pos)
		}
		return &ir.ValueInstr{
			Op: ir.Opcode(*ri.Op), DestName: *ri.Dest, Type: t,
			Arguments: ri.Args, FuncNames: ri.Funcs, LabelList: ri.Labels, Position: pos,
		}, nil

	case ir.KindEffectInstr:
		return &ir.EffectInstr{
			Op: ir.Opcode(*ri.Op), Arguments: ri.Args, FuncNames: ri.Funcs, LabelList: ri.Labels, Position: pos,
		}, nil

	case ir.KindMemoryInstr:
		m := &ir.MemoryInstr{Op: ir.Opcode(*ri.Op), Arguments: ri.Args, Position: pos}
		if ri.Dest != nil {
			m.DestName, m.HasDest = *ri.Dest, true
			t, err := ri.Type.toIR()
			if err != nil {
				return nil, diag.ParseError(diag.ErrEnvelopeType, err.Error(), pos)
			}
			m.Type = t
		}
		return m, nil

	default:
		return nil, diag.ParseError(diag.ErrEnvelopeMalformed, "unreachable instruction shape", pos)
	}
}

func fromInstruction(instr ir.Instruction) *rawInstr {
	ri := &rawInstr{}
	if pos := instr.Pos(); !pos.IsZero() {
		ri.Pos = &rawPos{Row: pos.Row, Col: pos.Col}
	}

	switch v := instr.(type) {
	case *ir.LabelInstr:
		ri.Label = &v.Name
		return ri

	case *ir.ConstantInstr:
		op := string(ir.OpConst)
		ri.Op = &op
		ri.Dest = &v.DestName
		ri.Type = fromIRType(v.Type)
		if raw, err := literalJSON(v.Value); err == nil {
			ri.Value = raw
		}
		return ri

	case *ir.ValueInstr:
		op := string(v.Op)
		ri.Op = &op
		ri.Dest = &v.DestName
		ri.Type = fromIRType(v.Type)
		ri.Args = v.Arguments
		ri.Funcs = v.FuncNames
		ri.Labels = v.LabelList
		return ri

	case *ir.EffectInstr:
		op := string(v.Op)
		ri.Op = &op
		ri.Args = v.Arguments
		ri.Funcs = v.FuncNames
		ri.Labels = v.LabelList
		return ri

	case *ir.MemoryInstr:
		op := string(v.Op)
		ri.Op = &op
		ri.Args = v.Arguments
		if v.HasDest {
			ri.Dest = &v.DestName
			ri.Type = fromIRType(v.Type)
		}
		return ri

	case *ir.NoopInstr:
		op := string(ir.OpNop)
		ri.Op = &op
		return ri

	default:
		panic(fmt.Sprintf("envelope: unknown instruction type %T", instr))
	}
}

func (rf *rawFunction) toIR() (*ir.Function, error) {
	fn := &ir.Function{Name: rf.Name}

	for _, p := range rf.Args {
		t, err := p.Type.toIR()
		if err != nil {
			return nil, diag.ParseError(diag.ErrEnvelopeType, err.Error(), p.Pos.toIR())
		}
		fn.Params = append(fn.Params, ir.Parameter{Name: p.Name, Type: t})
	}

	if rf.Type != nil {
		t, err := rf.Type.toIR()
		if err != nil {
			return nil, diag.ParseError(diag.ErrEnvelopeType, err.Error(), rf.Pos.toIR())
		}
		fn.RetType = t
		fn.HasRet = true
	}

	for _, ri := range rf.Instrs {
		instr, err := ri.toIR()
		if err != nil {
			return nil, err
		}
		fn.Instrs = append(fn.Instrs, instr)
	}

	return fn, nil
}

func fromFunction(fn *ir.Function) *rawFunction {
	rf := &rawFunction{Name: fn.Name}
	for _, p := range fn.Params {
		rf.Args = append(rf.Args, rawParam{Name: p.Name, Type: *fromIRType(p.Type)})
	}
	if fn.HasRet {
		rf.Type = fromIRType(fn.RetType)
	}
	for _, instr := range Flatten(fn) {
		rf.Instrs = append(rf.Instrs, fromInstruction(instr))
	}
	return rf
}

// Flatten rebuilds a flat instruction stream from fn.Blocks: block labels
// (plus any aliases), phis surfaced as explicit `phi` value instructions,
// the block body, then its terminator's control instruction if any. Falls
// back to fn.Instrs when the function was never partitioned into blocks.
// This is how an out-of-SSA (or `-S`, still-SSA) function becomes
// serializable again after the driver's pipeline has mutated only Blocks.
func Flatten(fn *ir.Function) []ir.Instruction {
	if fn.Blocks == nil {
		return fn.Instrs
	}

	var out []ir.Instruction
	for _, b := range fn.Blocks {
		out = append(out, &ir.LabelInstr{Name: b.Label})
		for _, alias := range b.Aliases {
			out = append(out, &ir.LabelInstr{Name: alias})
		}
		for _, phi := range b.Phis {
			args := make([]string, len(phi.Args))
			labels := make([]string, len(phi.Args))
			for i, a := range phi.Args {
				args[i] = a.Var
				labels[i] = a.Label
			}
			out = append(out, &ir.ValueInstr{
				Op: ir.OpPhi, DestName: phi.Dest, Type: phi.Type,
				Arguments: args, LabelList: labels,
			})
		}
		out = append(out, b.Instrs...)
		if b.Term.Control != nil {
			out = append(out, b.Term.Control)
		}
	}
	return out
}

// Decode parses a program's JSON envelope. Malformed JSON is
// reported as a diag.Error with a row/col position derived from the
// standard library's byte offset, so the driver can render the same
// contextual snippet it renders for every other diagnostic.
func Decode(data []byte) (*ir.Program, error) {
	var raw rawProgram
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, parseFailure(data, err)
	}

	prog := &ir.Program{}
	for _, rf := range raw.Functions {
		fn, err := rf.toIR()
		if err != nil {
			return nil, err
		}
		prog.Functions = append(prog.Functions, fn)
	}
	return prog, nil
}

// Encode serializes prog back to its JSON envelope, flattening each
// function's Blocks (if present) into the instruction stream.
func Encode(prog *ir.Program) ([]byte, error) {
	raw := rawProgram{}
	for _, fn := range prog.Functions {
		raw.Functions = append(raw.Functions, fromFunction(fn))
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func parseFailure(data []byte, err error) error {
	offset := 0
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syn):
		offset = int(syn.Offset)
	case errors.As(err, &typ):
		offset = int(typ.Offset)
	}
	return diag.ParseError(diag.ErrEnvelopeMalformed, err.Error(), offsetToPosition(data, offset))
}

func offsetToPosition(data []byte, offset int) ir.Position {
	if offset > len(data) {
		offset = len(data)
	}
	if offset < 0 {
		offset = 0
	}
	row, col := 1, 1
	for i := 0; i < offset; i++ {
		if data[i] == '\n' {
			row++
			col = 1
		} else {
			col++
		}
	}
	return ir.Position{Row: row, Col: col}
}
