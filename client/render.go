package client

import (
	"bytes"
	"fmt"

	"github.com/raibid-labs/scarab/protocol"
)

// renderANSI repaints the whole cols x rows viewport as a single ANSI
// frame: home the cursor, emit each row with SGR codes only where a
// cell's attributes differ from the previous cell, then position the
// real cursor at the grid's reported cursor row/col. This is a
// correctness-first full repaint, not a damage-tracked renderer — font
// shaping and GPU compositing are out of scope per spec.md's Non-goals,
// and a full repaint at the shared grid's own publish cadence is simple
// enough to reason about without one.
func renderANSI(s *protocol.SharedState, cols, rows int) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x1b[H")

	var curFg, curBg uint32
	var curFlags protocol.CellFlag
	haveAttrs := false

	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			cell := s.Cells[protocol.CellIndex(row, col)]
			if !haveAttrs || cell.Fg != curFg || cell.Bg != curBg || cell.Flags != curFlags {
				writeSGR(&buf, cell)
				curFg, curBg, curFlags = cell.Fg, cell.Bg, cell.Flags
				haveAttrs = true
			}
			r := rune(cell.Codepoint)
			if r == 0 {
				r = ' '
			}
			buf.WriteRune(r)
		}
		buf.WriteString("\x1b[0m\r\n")
		haveAttrs = false
	}

	fmt.Fprintf(&buf, "\x1b[%d;%dH", int(s.CursorRow)+1, int(s.CursorCol)+1)
	return buf.Bytes()
}

func writeSGR(buf *bytes.Buffer, c protocol.Cell) {
	buf.WriteString("\x1b[0")
	if c.Flags&protocol.FlagBold != 0 {
		buf.WriteString(";1")
	}
	if c.Flags&protocol.FlagDim != 0 {
		buf.WriteString(";2")
	}
	if c.Flags&protocol.FlagItalic != 0 {
		buf.WriteString(";3")
	}
	if c.Flags&protocol.FlagUnderline != 0 {
		buf.WriteString(";4")
	}
	if c.Flags&protocol.FlagInverse != 0 {
		buf.WriteString(";7")
	}
	if c.Flags&protocol.FlagStrike != 0 {
		buf.WriteString(";9")
	}
	fmt.Fprintf(buf, ";38;2;%d;%d;%d", byte(c.Fg>>24), byte(c.Fg>>16), byte(c.Fg>>8))
	fmt.Fprintf(buf, ";48;2;%d;%d;%dm", byte(c.Bg>>24), byte(c.Bg>>16), byte(c.Bg>>8))
}
