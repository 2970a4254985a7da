// Package protocol defines the data layout shared between the Scarab
// daemon and client: the shared-memory grid image and the control-socket
// message set. The grid layout is bit-exact and must stay stable across
// releases of the same major version; it contains no pointers.
package protocol

import (
	"fmt"
	"unsafe"
)

const (
	// GridWidth and GridHeight size the visible-region grid held in the
	// shared-memory image. Scrollback lives entirely in the vte package.
	GridWidth  = 200
	GridHeight = 100

	// CellSize is the fixed, naturally aligned size of a single Cell.
	CellSize = 16

	// MaxMessageSize bounds a single control-frame payload.
	MaxMessageSize = 8192

	// MaxClients bounds concurrent accepted control-socket clients.
	MaxClients = 16

	// ReconnectDelayMS and MaxReconnectAttempts govern client-side
	// reconnect behavior after an unexpected disconnect.
	ReconnectDelayMS     = 100
	MaxReconnectAttempts = 10

	// SocketPath and ShmemPath are the well-known default paths, overridden
	// by SCARAB_SOCKET_PATH / SCARAB_SHMEM_PATH when set.
	SocketPath = "/tmp/scarab-daemon.sock"
	ShmemPath  = "/scarab_shm_v1"
)

// CellFlag bits pack bold/italic/underline/inverse/dim/strike into a
// single byte.
type CellFlag uint8

const (
	FlagBold CellFlag = 1 << iota
	FlagItalic
	FlagUnderline
	FlagInverse
	FlagDim
	FlagStrike
)

// Cell is the fixed 16-byte, naturally aligned terminal cell as it
// appears in the shared grid. Field order matches spec layout exactly:
// codepoint, fg, bg, flags, then 3 bytes of padding to keep the struct
// 16 bytes wide.
type Cell struct {
	Codepoint uint32
	Fg        uint32 // 0xRRGGBBAA
	Bg        uint32
	Flags     CellFlag
	_         [3]byte
}

// DefaultCell is a space on the default palette: white foreground on
// black background, per spec.md §3.
var DefaultCell = Cell{
	Codepoint: ' ',
	Fg:        0xFFFFFFFF,
	Bg:        0x000000FF,
}

func init() {
	if sz := unsafe.Sizeof(Cell{}); sz != CellSize {
		panic(fmt.Sprintf("protocol: Cell is %d bytes, want %d", sz, CellSize))
	}
}
