package protocol

import (
	"testing"
	"unsafe"

	"gotest.tools/v3/assert"
)

func TestCellIsSixteenBytes(t *testing.T) {
	assert.Equal(t, unsafe.Sizeof(Cell{}), uintptr(CellSize))
}

func TestSharedStateSizeIsAligned(t *testing.T) {
	assert.Equal(t, SharedStateSize%8, 0)
	assert.Assert(t, SharedStateSize >= GridWidth*GridHeight*CellSize)
}

func TestCellIndexRowMajor(t *testing.T) {
	assert.Equal(t, CellIndex(0, 0), 0)
	assert.Equal(t, CellIndex(1, 0), GridWidth)
	assert.Equal(t, CellIndex(0, 1), 1)
}

func TestDefaultCellIsSpace(t *testing.T) {
	assert.Equal(t, DefaultCell.Codepoint, uint32(' '))
}
