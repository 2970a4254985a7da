package client

import (
	"strings"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/raibid-labs/scarab/protocol"
)

func TestRenderANSIHomesCursorAndEmitsCodepoints(t *testing.T) {
	var s protocol.SharedState
	s.Cells[protocol.CellIndex(0, 0)] = protocol.Cell{Codepoint: 'h', Fg: 0xFFFFFFFF, Bg: 0x000000FF}
	s.Cells[protocol.CellIndex(0, 1)] = protocol.Cell{Codepoint: 'i', Fg: 0xFFFFFFFF, Bg: 0x000000FF}
	s.CursorRow = 0
	s.CursorCol = 2

	out := string(renderANSI(&s, 2, 1))
	assert.Assert(t, strings.HasPrefix(out, "\x1b[H"))
	assert.Assert(t, strings.Contains(out, "h"))
	assert.Assert(t, strings.Contains(out, "i"))
	assert.Assert(t, strings.Contains(out, "\x1b[1;3H"))
}

func TestRenderANSIFillsZeroCodepointWithSpace(t *testing.T) {
	var s protocol.SharedState
	out := string(renderANSI(&s, 1, 1))
	assert.Assert(t, strings.Contains(out, " "))
}

func TestDetachByteCtrlLetter(t *testing.T) {
	assert.Equal(t, detachByte("ctrl+a"), byte(1))
	assert.Equal(t, detachByte("ctrl+q"), byte(17))
}

func TestDetachByteFallsBackOnMalformed(t *testing.T) {
	assert.Equal(t, detachByte("meta+a"), byte(0x1c))
	assert.Equal(t, detachByte("nonsense"), byte(0x1c))
}
