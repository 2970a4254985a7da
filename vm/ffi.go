package vm

import (
	"fmt"
	"math"
	"strconv"
)

// FFIFunction is a native function bytecode can call via CallFFI.
type FFIFunction func(args []Value) (Value, error)

// FFIError reports an FFI-level failure: wrong arity, wrong argument
// type, the function's own execution error, or a denied permission.
type FFIError struct {
	msg string
}

func (e *FFIError) Error() string { return e.msg }

func errArgCount(expected, got int) error {
	return &FFIError{msg: fmt.Sprintf("invalid argument count: expected %d, got %d", expected, got)}
}

func errArgType(index int, expected string) error {
	return &FFIError{msg: fmt.Sprintf("invalid argument type at index %d: expected %s", index, expected)}
}

// FFIRegistry maps import names (as referenced by Bytecode.FFIImports)
// to native functions.
type FFIRegistry struct {
	functions map[string]FFIFunction
}

// NewFFIRegistry creates an empty registry.
func NewFFIRegistry() *FFIRegistry {
	return &FFIRegistry{functions: make(map[string]FFIFunction)}
}

// Register adds or replaces the function bound to name.
func (r *FFIRegistry) Register(name string, fn FFIFunction) {
	r.functions[name] = fn
}

// Get looks up a registered function.
func (r *FFIRegistry) Get(name string) (FFIFunction, bool) {
	fn, ok := r.functions[name]
	return fn, ok
}

// Contains reports whether name is registered.
func (r *FFIRegistry) Contains(name string) bool {
	_, ok := r.functions[name]
	return ok
}

// List returns every registered function name.
func (r *FFIRegistry) List() []string {
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	return names
}

func ffiPrint(args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, errArgCount(1, len(args))
	}
	fmt.Println(args[0].String())
	return UnitValue(), nil
}

func ffiStringConcat(args []Value) (Value, error) {
	if len(args) != 2 {
		return Value{}, errArgCount(2, len(args))
	}
	if args[0].Kind != KindString {
		return Value{}, errArgType(0, "String")
	}
	if args[1].Kind != KindString {
		return Value{}, errArgType(1, "String")
	}
	return StringValue(args[0].Str + args[1].Str), nil
}

func ffiStringContains(args []Value) (Value, error) {
	if len(args) != 2 {
		return Value{}, errArgCount(2, len(args))
	}
	if args[0].Kind != KindString {
		return Value{}, errArgType(0, "String")
	}
	if args[1].Kind != KindString {
		return Value{}, errArgType(1, "String")
	}
	for i := 0; i+len(args[1].Str) <= len(args[0].Str); i++ {
		if args[0].Str[i:i+len(args[1].Str)] == args[1].Str {
			return BoolValue(true), nil
		}
	}
	return BoolValue(false), nil
}

func ffiStringLen(args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, errArgCount(1, len(args))
	}
	if args[0].Kind != KindString {
		return Value{}, errArgType(0, "String")
	}
	return I32Value(int32(len(args[0].Str))), nil
}

func ffiI32ToString(args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, errArgCount(1, len(args))
	}
	if args[0].Kind != KindI32 {
		return Value{}, errArgType(0, "I32")
	}
	return StringValue(strconv.Itoa(int(args[0].I32))), nil
}

func ffiAbs(args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, errArgCount(1, len(args))
	}
	switch args[0].Kind {
	case KindI32:
		v := args[0].I32
		if v < 0 {
			v = -v
		}
		return I32Value(v), nil
	case KindI64:
		v := args[0].I64
		if v < 0 {
			v = -v
		}
		return I64Value(v), nil
	case KindF32:
		return F32Value(float32(math.Abs(float64(args[0].F32)))), nil
	case KindF64:
		return F64Value(math.Abs(args[0].F64)), nil
	default:
		return Value{}, errArgType(0, "Number")
	}
}

func ffiSqrt(args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, errArgCount(1, len(args))
	}
	switch args[0].Kind {
	case KindF32:
		return F32Value(float32(math.Sqrt(float64(args[0].F32)))), nil
	case KindF64:
		return F64Value(math.Sqrt(args[0].F64)), nil
	default:
		return Value{}, errArgType(0, "Float")
	}
}

// StdlibFFI returns the fixed set of side-effect-minimal functions
// spec.md §4.7 names: print, string concat/contains/len, i32-to-string,
// abs, sqrt.
func StdlibFFI() *FFIRegistry {
	r := NewFFIRegistry()
	r.Register("print", ffiPrint)
	r.Register("string_concat", ffiStringConcat)
	r.Register("string_contains", ffiStringContains)
	r.Register("string_len", ffiStringLen)
	r.Register("i32_to_string", ffiI32ToString)
	r.Register("abs", ffiAbs)
	r.Register("sqrt", ffiSqrt)
	return r
}
