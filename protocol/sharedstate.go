package protocol

import (
	"fmt"
	"unsafe"
)

// SharedState is the wire image published into the shared-memory region.
// The daemon is the sole writer; layout is bit-exact and naturally
// aligned so it can be overlaid directly onto a byte slice returned by
// mmap via unsafe.Pointer. Field order matches spec.md §3: sequence,
// error_mode, dirty, cursor_col, cursor_row, then the cell array.
type SharedState struct {
	Sequence  uint64
	ErrorMode uint8
	Dirty     uint8
	CursorCol uint16
	CursorRow uint16
	_         uint16 // pad to an 8-byte boundary before the cell array
	Cells     [GridWidth * GridHeight]Cell
}

// SharedStateSize is sizeof(SharedState) — the exact byte count the
// shared-memory region must be sized and truncated to.
var SharedStateSize = int(unsafe.Sizeof(SharedState{}))

func init() {
	if SharedStateSize%8 != 0 {
		panic(fmt.Sprintf("protocol: SharedState size %d is not 8-byte aligned", SharedStateSize))
	}
}

// ErrorMode values.
const (
	ErrorModeNormal   uint8 = 0
	ErrorModeFallback uint8 = 1
)

// CellIndex returns the row-major index of (row, col) into Cells.
func CellIndex(row, col int) int {
	return row*GridWidth + col
}
