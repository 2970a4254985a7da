package pluginhost

import (
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/raibid-labs/scarab/vm"
)

func writePlugin(t *testing.T, dir, name string) string {
	t.Helper()
	var code []byte
	code = append(code, vm.OpPush.Encode(0)...)
	code = append(code, vm.OpRet.Encode(0)...)

	bc := vm.NewBytecode(0)
	bc.Constants = []vm.Value{vm.I32Value(42)}
	bc.Functions = []vm.Function{{Name: "main", Bytecode: code}}

	data, err := bc.Encode()
	assert.NilError(t, err)

	path := filepath.Join(dir, name+".fzb")
	assert.NilError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestHostLoadAndUnload(t *testing.T) {
	dir := t.TempDir()
	path := writePlugin(t, dir, "greeter")

	h := New(1<<20, 5, true)
	p, err := h.Load("greeter", path)
	assert.NilError(t, err)
	assert.Equal(t, p.Name, "greeter")

	result, err := p.VM.Execute(p.Bytecode)
	assert.NilError(t, err)
	assert.Equal(t, result.I32, int32(42))

	_, err = h.Load("greeter", path)
	assert.ErrorContains(t, err, "already loaded")

	assert.NilError(t, h.Unload("greeter"))
	assert.ErrorContains(t, h.Unload("greeter"), "not loaded")
}

func TestHostSubscribeAndUnloadCleansHandlers(t *testing.T) {
	dir := t.TempDir()
	path := writePlugin(t, dir, "hooked")

	h := New(1<<20, 5, true)
	_, err := h.Load("hooked", path)
	assert.NilError(t, err)

	_, err = h.Subscribe("hooked", EventInput, 0, func(e Event) Result { return Result{Action: Continue} })
	assert.NilError(t, err)
	assert.Equal(t, h.Bus().HandlerCount(EventInput), 1)

	assert.NilError(t, h.Unload("hooked"))
	assert.Equal(t, h.Bus().HandlerCount(EventInput), 0)
}

func TestHostCheckNavActionEnforcesLimit(t *testing.T) {
	dir := t.TempDir()
	path := writePlugin(t, dir, "navvy")

	h := New(1<<20, 1, true)
	_, err := h.Load("navvy", path)
	assert.NilError(t, err)

	assert.NilError(t, h.CheckNavAction("navvy"))
	assert.ErrorContains(t, h.CheckNavAction("navvy"), "rate limit exceeded")
}
