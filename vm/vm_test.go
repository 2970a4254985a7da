package vm

import (
	"testing"

	"gotest.tools/v3/assert"
)

func buildAddModule(t *testing.T) *Bytecode {
	t.Helper()
	var code []byte
	code = append(code, OpPush.Encode(0)...)
	code = append(code, OpPush.Encode(1)...)
	code = append(code, OpAdd.Encode(0)...)
	code = append(code, OpRet.Encode(0)...)

	bc := NewBytecode(0)
	bc.Constants = []Value{I32Value(10), I32Value(5)}
	bc.Functions = []Function{{Name: "main", Locals: 0, Bytecode: code}}
	assert.NilError(t, bc.Validate())
	return bc
}

func TestExecuteAdd(t *testing.T) {
	bc := buildAddModule(t)
	result, err := New().Execute(bc)
	assert.NilError(t, err)
	assert.Equal(t, result.Kind, KindI32)
	assert.Equal(t, result.I32, int32(15))
}

func TestValidateRejectsOutOfRangeEntryPoint(t *testing.T) {
	bc := NewBytecode(5)
	bc.Functions = []Function{{Name: "main"}}
	err := bc.Validate()
	assert.ErrorContains(t, err, "entry point")
}

func TestValidateRejectsBadConstantIndex(t *testing.T) {
	bc := NewBytecode(0)
	code := OpPush.Encode(3)
	code = append(code, OpRet.Encode(0)...)
	bc.Functions = []Function{{Name: "main", Bytecode: code}}
	bc.Constants = []Value{I32Value(1)}
	err := bc.Validate()
	assert.ErrorContains(t, err, "constant index")
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	bc := buildAddModule(t)
	data, err := bc.Encode()
	assert.NilError(t, err)

	loaded, err := Load(data)
	assert.NilError(t, err)

	result, err := New().Execute(loaded)
	assert.NilError(t, err)
	assert.Equal(t, result.I32, int32(15))
}

func TestLoadRejectsCorruptChecksum(t *testing.T) {
	bc := buildAddModule(t)
	data, err := bc.Encode()
	assert.NilError(t, err)
	data[len(data)-1] ^= 0xff

	_, err = Load(data)
	assert.ErrorContains(t, err, "checksum")
}

func TestDivisionByZero(t *testing.T) {
	var code []byte
	code = append(code, OpPush.Encode(0)...)
	code = append(code, OpPush.Encode(1)...)
	code = append(code, OpDiv.Encode(0)...)
	code = append(code, OpRet.Encode(0)...)

	bc := NewBytecode(0)
	bc.Constants = []Value{I32Value(1), I32Value(0)}
	bc.Functions = []Function{{Name: "main", Bytecode: code}}
	assert.NilError(t, bc.Validate())

	_, err := New().Execute(bc)
	assert.ErrorContains(t, err, "division by zero")
}

func TestCallFFIStdlibAbs(t *testing.T) {
	var code []byte
	code = append(code, OpPush.Encode(0)...)
	code = append(code, OpCallFFI.Encode(0)...)
	code = append(code, OpRet.Encode(0)...)

	bc := NewBytecode(0)
	bc.Constants = []Value{I32Value(-7)}
	bc.FFIImports = []string{"abs"}
	bc.Functions = []Function{{Name: "main", Bytecode: code}}
	assert.NilError(t, bc.Validate())

	result, err := New().Execute(bc)
	assert.NilError(t, err)
	assert.Equal(t, result.I32, int32(7))
}

func TestSandboxEnforcesLimit(t *testing.T) {
	s := NewSandboxWithLimit(1024)
	_, err := s.Allocate(2048)
	assert.ErrorContains(t, err, "memory limit exceeded")

	h, err := s.Allocate(512)
	assert.NilError(t, err)
	assert.Equal(t, s.MemoryUsed(), int64(512))
	assert.NilError(t, s.Deallocate(h))
	assert.Equal(t, s.MemoryUsed(), int64(0))
}

func TestSecurityPolicyDefaultDeny(t *testing.T) {
	p := RestrictivePolicy()
	assert.ErrorContains(t, p.CheckPermission("file_read"), "not allowed")

	p = PermissivePolicy()
	assert.NilError(t, p.CheckPermission("file_read"))
}
