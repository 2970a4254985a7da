// Package vm implements the plugin sandbox VM described in spec.md
// §4.7: a zero-copy-ish bytecode loader, a stack machine with call
// frames, a bounded memory sandbox, a declarative security policy, and
// a small stdlib FFI registry. No teacher equivalent exists for this —
// hauntty has no plugin system — so this is net-new domain logic
// written in the teacher's idiom (small structs, table-driven opcode
// dispatch, sentinel/wrapped Go errors standing in for the original's
// thiserror enums), grounded directly on
// _examples/original_source/scarab/crates/fusabi-vm/src/{lib,sandbox,ffi}.rs.
package vm

import (
	"encoding/binary"
	"fmt"
)

// Magic identifies a compiled Fusabi plugin (.fzb) file.
var Magic = [4]byte{'F', 'Z', 'B', 0}

// Version is the bytecode format version this loader accepts.
const Version = 1

// ValueKind tags a Value's dynamic type.
type ValueKind uint8

const (
	KindUnit ValueKind = iota
	KindBool
	KindI32
	KindI64
	KindF32
	KindF64
	KindString
	KindList
	KindMap
)

func (k ValueKind) String() string {
	switch k {
	case KindUnit:
		return "Unit"
	case KindBool:
		return "Bool"
	case KindI32:
		return "I32"
	case KindI64:
		return "I64"
	case KindF32:
		return "F32"
	case KindF64:
		return "F64"
	case KindString:
		return "String"
	case KindList:
		return "List"
	case KindMap:
		return "Map"
	default:
		return fmt.Sprintf("ValueKind(%d)", uint8(k))
	}
}

// Value is the tagged union every VM operand and constant is expressed
// as. Only one of the typed fields is meaningful, selected by Kind.
type Value struct {
	Kind ValueKind
	B    bool
	I32  int32
	I64  int64
	F32  float32
	F64  float64
	Str  string
	List []Value
	Map  map[string]Value
}

func UnitValue() Value            { return Value{Kind: KindUnit} }
func BoolValue(b bool) Value       { return Value{Kind: KindBool, B: b} }
func I32Value(i int32) Value      { return Value{Kind: KindI32, I32: i} }
func I64Value(i int64) Value      { return Value{Kind: KindI64, I64: i} }
func F32Value(f float32) Value    { return Value{Kind: KindF32, F32: f} }
func F64Value(f float64) Value    { return Value{Kind: KindF64, F64: f} }
func StringValue(s string) Value  { return Value{Kind: KindString, Str: s} }

func (v Value) String() string {
	switch v.Kind {
	case KindUnit:
		return "()"
	case KindBool:
		return fmt.Sprintf("%t", v.B)
	case KindI32:
		return fmt.Sprintf("%d", v.I32)
	case KindI64:
		return fmt.Sprintf("%d", v.I64)
	case KindF32:
		return fmt.Sprintf("%g", v.F32)
	case KindF64:
		return fmt.Sprintf("%g", v.F64)
	case KindString:
		return v.Str
	default:
		return v.Kind.String()
	}
}

// Opcode is the single-byte instruction tag; operands (when present)
// follow as a little-endian uint32 in the encoded stream.
type Opcode uint8

const (
	OpPush Opcode = iota
	OpPop
	OpDup
	OpLoad
	OpStore
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
	OpNot
	OpJump
	OpJumpIfNot
	OpRet
	OpCall
	OpCallFFI
)

// hasOperand reports whether op is encoded with a trailing uint32
// operand (a constant/local index, function/ffi index, or jump offset).
func (op Opcode) hasOperand() bool {
	switch op {
	case OpPush, OpLoad, OpStore, OpJump, OpJumpIfNot, OpCall, OpCallFFI:
		return true
	default:
		return false
	}
}

// Encode appends op (and its operand, if any) to a bytecode stream.
func (op Opcode) Encode(operand uint32) []byte {
	if !op.hasOperand() {
		return []byte{byte(op)}
	}
	buf := make([]byte, 5)
	buf[0] = byte(op)
	binary.LittleEndian.PutUint32(buf[1:], operand)
	return buf
}

// Instr is one decoded instruction plus the byte offset it began at.
type Instr struct {
	Offset  int
	Op      Opcode
	Operand uint32
}

// BytecodeError reports a malformed or unsafe .fzb module rejected by
// the loader before any code runs.
type BytecodeError struct {
	Reason string
}

func (e *BytecodeError) Error() string { return "vm: invalid bytecode: " + e.Reason }

// Function is one compiled function: its signature (by arity only —
// the VM does not itself type-check parameters beyond counting them),
// local slot count, and instruction stream.
type Function struct {
	Name     string
	Params   int
	Locals   int
	Bytecode []byte
}

// Bytecode is a loaded, validated .fzb module ready for execution.
type Bytecode struct {
	Constants  []Value
	Functions  []Function
	FFIImports []string
	EntryPoint uint32
}

// NewBytecode starts an empty module with the given entry point index,
// mirroring the original's BytecodeBuilder starting point.
func NewBytecode(entryPoint uint32) *Bytecode {
	return &Bytecode{EntryPoint: entryPoint}
}

// Decode parses the instruction stream of a function body into a flat
// list, used by both Validate and the VM's dispatch loop.
func Decode(code []byte) ([]Instr, error) {
	var instrs []Instr
	i := 0
	for i < len(code) {
		op := Opcode(code[i])
		instr := Instr{Offset: i, Op: op}
		i++
		if op.hasOperand() {
			if i+4 > len(code) {
				return nil, &BytecodeError{Reason: fmt.Sprintf("truncated operand at offset %d", instr.Offset)}
			}
			instr.Operand = binary.LittleEndian.Uint32(code[i : i+4])
			i += 4
		}
		instrs = append(instrs, instr)
	}
	return instrs, nil
}

// Validate checks the invariants spec.md §4.7's loader requires:
// entry point in range, every function's opcode stream well-formed and
// its constant/local/function/ffi references in bounds.
func (b *Bytecode) Validate() error {
	if int(b.EntryPoint) >= len(b.Functions) {
		return &BytecodeError{Reason: fmt.Sprintf("entry point %d out of range (%d functions)", b.EntryPoint, len(b.Functions))}
	}
	for fi, fn := range b.Functions {
		instrs, err := Decode(fn.Bytecode)
		if err != nil {
			return fmt.Errorf("function %d (%s): %w", fi, fn.Name, err)
		}
		for _, instr := range instrs {
			switch instr.Op {
			case OpPush:
				if int(instr.Operand) >= len(b.Constants) {
					return &BytecodeError{Reason: fmt.Sprintf("function %d: constant index %d out of bounds", fi, instr.Operand)}
				}
			case OpLoad, OpStore:
				if int(instr.Operand) >= fn.Locals {
					return &BytecodeError{Reason: fmt.Sprintf("function %d: local index %d out of bounds", fi, instr.Operand)}
				}
			case OpCall:
				if int(instr.Operand) >= len(b.Functions) {
					return &BytecodeError{Reason: fmt.Sprintf("function %d: call target %d out of bounds", fi, instr.Operand)}
				}
			case OpCallFFI:
				if int(instr.Operand) >= len(b.FFIImports) {
					return &BytecodeError{Reason: fmt.Sprintf("function %d: ffi import %d out of bounds", fi, instr.Operand)}
				}
			case OpJump, OpJumpIfNot:
				target := instr.Offset + 5 + int(int32(instr.Operand))
				if target < 0 || target > len(fn.Bytecode) {
					return &BytecodeError{Reason: fmt.Sprintf("function %d: jump target %d out of bounds", fi, target)}
				}
			}
		}
	}
	return nil
}

// Encode serializes the header (magic, version, entry point) and
// delegates the body to a format-specific encoder; Scarab plugins are
// distributed as the Go-native gob encoding of Bytecode rather than
// the original's rkyv archive, since there is no Go equivalent of rkyv
// in the example pack and gob already carries the module's own
// structural invariants (see codec.go).
func (b *Bytecode) Encode() ([]byte, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return encodeGob(b)
}

// Load validates and returns a Bytecode decoded from raw bytes
// produced by Encode.
func Load(data []byte) (*Bytecode, error) {
	b, err := decodeGob(data)
	if err != nil {
		return nil, &BytecodeError{Reason: err.Error()}
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}
