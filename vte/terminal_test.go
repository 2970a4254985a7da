package vte

import (
	"strings"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/raibid-labs/scarab/protocol"
)

func TestPrintAdvancesCursor(t *testing.T) {
	term := NewTerminal(10, 3, 100)
	term.Feed([]byte("hi"))
	dump := term.DumpScreen(DumpPlain)
	assert.Equal(t, dump.CursorCol, 2)
	assert.Assert(t, strings.HasPrefix(dump.Text, "hi"))
}

func TestCursorStaysWithinBounds(t *testing.T) {
	term := NewTerminal(5, 2, 100)
	term.Feed([]byte("\x1b[999;999H"))
	cols, rows := term.Dimensions()
	dump := term.DumpScreen(DumpPlain)
	assert.Assert(t, dump.CursorCol < cols)
	assert.Assert(t, dump.CursorRow < rows)
}

func TestNewlineWrapAndScrollback(t *testing.T) {
	term := NewTerminal(5, 2, 100)
	term.Feed([]byte("line1\r\nline2\r\nline3"))
	assert.Assert(t, term.scrollback.Len() >= 1)
}

func TestAltScreenSwitchPreservesPrimary(t *testing.T) {
	term := NewTerminal(5, 2, 100)
	term.Feed([]byte("abc"))
	term.Feed([]byte("\x1b[?1049h")) // enter alt screen
	assert.Assert(t, term.IsAltScreen())
	term.Feed([]byte("xyz"))
	term.Feed([]byte("\x1b[?1049l")) // exit alt screen
	assert.Assert(t, !term.IsAltScreen())
	dump := term.DumpScreen(DumpPlain)
	assert.Assert(t, strings.Contains(dump.Text, "abc"))
}

func TestSGRTruecolor(t *testing.T) {
	term := NewTerminal(5, 2, 100)
	term.Feed([]byte("\x1b[38;2;10;20;30mX"))
	var dst protocol.SharedState
	term.Composite(&dst, 0, 0)
	cell := dst.Cells[protocol.CellIndex(0, 0)]
	assert.Equal(t, cell.Fg, uint32(10)<<24|uint32(20)<<16|uint32(30)<<8|0xFF)
}

func TestSGR256Color(t *testing.T) {
	term := NewTerminal(5, 2, 100)
	term.Feed([]byte("\x1b[38;5;196mX"))
	var dst protocol.SharedState
	term.Composite(&dst, 0, 0)
	cell := dst.Cells[protocol.CellIndex(0, 0)]
	assert.Assert(t, cell.Fg != DefaultAttrs.Fg)
}

func TestSGRResetClearsAttrs(t *testing.T) {
	term := NewTerminal(5, 2, 100)
	term.Feed([]byte("\x1b[31mX\x1b[0mY"))
	var dst protocol.SharedState
	term.Composite(&dst, 0, 0)
	assert.Equal(t, dst.Cells[protocol.CellIndex(0, 1)].Fg, DefaultAttrs.Fg)
}

func TestMalformedEscapeReturnsToGround(t *testing.T) {
	term := NewTerminal(5, 2, 100)
	term.Feed([]byte("\x1bZhello"))
	dump := term.DumpScreen(DumpPlain)
	assert.Assert(t, strings.Contains(dump.Text, "hello"))
}

func TestOSCTitle(t *testing.T) {
	term := NewTerminal(5, 2, 100)
	term.Feed([]byte("\x1b]0;my title\x07"))
	assert.Equal(t, term.Title(), "my title")
}

func TestResizeClampsCursor(t *testing.T) {
	term := NewTerminal(10, 5, 100)
	term.Feed([]byte("\x1b[5;8H"))
	term.Resize(4, 3)
	dump := term.DumpScreen(DumpPlain)
	assert.Assert(t, dump.CursorCol < 4)
	assert.Assert(t, dump.CursorRow < 3)
}

func TestCompositeIntoViewportOffset(t *testing.T) {
	term := NewTerminal(3, 1, 10)
	term.Feed([]byte("ab"))
	var dst protocol.SharedState
	term.Composite(&dst, 2, 4)
	assert.Equal(t, dst.Cells[protocol.CellIndex(2, 4)].Codepoint, uint32('a'))
	assert.Equal(t, dst.Cells[protocol.CellIndex(2, 5)].Codepoint, uint32('b'))
}
