// Package vte implements the VTE-style terminal state machine described
// in spec.md §4.3: a parser that ingests PTY output and maintains the
// grid, scrollback, SGR attributes, and cursor. hauntty delegates this
// entirely to a compiled WASM module (wazero + libghostty); no such
// binary exists in this corpus, so this package is a native Go
// reimplementation grounded directly on spec.md, shaped so that the rest
// of the daemon (pane, daemon packages) can be grounded on hauntty's
// session/server wiring almost unchanged — Terminal exposes the same
// Feed/Resize/DumpScreen/Close method shape hauntty's wasm.Terminal did.
package vte

import "github.com/raibid-labs/scarab/protocol"

// Attrs is the current SGR state: fg/bg color and bit-packed flags. It
// mutates between characters and is copied into each new Cell.
type Attrs struct {
	Fg, Bg    uint32
	Flags     protocol.CellFlag
	Hyperlink string
}

// DefaultAttrs matches protocol.DefaultCell's palette.
var DefaultAttrs = Attrs{Fg: protocol.DefaultCell.Fg, Bg: protocol.DefaultCell.Bg}

// Cell is one grid cell. The wire Cell (protocol.Cell) has no room for a
// variable-length hyperlink URI, so each screen keeps hyperlinks in a
// side table keyed by cell index; the table is emptied on a full-screen
// clear or a resize, while line erases and scrolling leave it as it is.
type Cell struct {
	Codepoint rune
	Fg, Bg    uint32
	Flags     protocol.CellFlag
}

func blank(a Attrs) Cell {
	return Cell{Codepoint: ' ', Fg: a.Fg, Bg: a.Bg}
}

func (c Cell) toWire() protocol.Cell {
	return protocol.Cell{Codepoint: uint32(c.Codepoint), Fg: c.Fg, Bg: c.Bg, Flags: c.Flags}
}
