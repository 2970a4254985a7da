package nav

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/raibid-labs/scarab/protocol"
)

func putText(state *protocol.SharedState, row int, text string) {
	for i, r := range text {
		state.Cells[protocol.CellIndex(row, i)] = protocol.Cell{Codepoint: uint32(r)}
	}
}

func TestScanFindsURIsInDiscoveryOrder(t *testing.T) {
	var state protocol.SharedState
	putText(&state, 0, "see https://example.com/a for docs")
	putText(&state, 2, "and http://other.test too")

	hints := Scan(&state, protocol.GridWidth, protocol.GridHeight, "")
	assert.Equal(t, len(hints), 2)
	assert.Equal(t, hints[0].URI, "https://example.com/a")
	assert.Equal(t, hints[0].Label, "a")
	assert.Equal(t, hints[0].Row, 0)
	assert.Equal(t, hints[1].URI, "http://other.test")
	assert.Equal(t, hints[1].Label, "s")
}

func TestLabelExhaustsSingleLettersThenPairs(t *testing.T) {
	assert.Equal(t, Label(0, ""), "a")
	assert.Equal(t, Label(8, ""), "l")
	assert.Equal(t, Label(9, ""), "aa")
	assert.Equal(t, Label(10, ""), "as")
}

func TestModeActivateEmitsOneOverlayPerHint(t *testing.T) {
	var state protocol.SharedState
	putText(&state, 0, "go to https://x.test now")

	var m Mode
	msgs := m.Activate(&state, protocol.GridWidth, protocol.GridHeight)
	assert.Equal(t, len(msgs), 1)
	assert.Assert(t, m.Active())

	overlay, ok := msgs[0].(*protocol.DrawOverlay)
	assert.Assert(t, ok)
	assert.Equal(t, overlay.Text, "a")
}

func TestModeInputMatchesLabelAndExitClearsAll(t *testing.T) {
	var state protocol.SharedState
	putText(&state, 0, "https://x.test https://y.test")

	var m Mode
	m.Activate(&state, protocol.GridWidth, protocol.GridHeight)

	uri, matched := m.Input([]byte("s"))
	assert.Assert(t, matched)
	assert.Equal(t, uri, "https://y.test")

	clear := m.Exit()
	co, ok := clear.(*protocol.ClearOverlays)
	assert.Assert(t, ok)
	assert.Assert(t, !co.HasID)
	assert.Assert(t, !m.Active())
}

func TestModeInputEscCancelsWithoutMatch(t *testing.T) {
	var state protocol.SharedState
	putText(&state, 0, "https://x.test")

	var m Mode
	m.Activate(&state, protocol.GridWidth, protocol.GridHeight)

	_, matched := m.Input([]byte{0x1b})
	assert.Assert(t, !matched)
}

func TestModeInputUnknownLabelConsumedWithoutMatch(t *testing.T) {
	var state protocol.SharedState
	putText(&state, 0, "https://x.test")

	var m Mode
	m.Activate(&state, protocol.GridWidth, protocol.GridHeight)

	_, matched := m.Input([]byte("z"))
	assert.Assert(t, !matched)
}
