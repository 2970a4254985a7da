package vte

import (
	"strings"
	"sync"

	"github.com/raibid-labs/scarab/protocol"
)

// DumpFormat selects the encoding DumpScreen returns, mirroring the
// format-negotiation hauntty's newer daemon/server.go performs against
// its WASM engine (DumpVT / DumpHTML / DumpPlain), kept here as a plain
// enum rather than a bit-flag mask since no format needs combining for
// the core.
type DumpFormat int

const (
	DumpPlain DumpFormat = iota
	DumpVT
	DumpHTML
)

// ScreenDump is the result of DumpScreen: the raw text plus cursor state.
type ScreenDump struct {
	Text        string
	CursorRow   int
	CursorCol   int
	IsAltScreen bool
}

// Terminal is the VTE-style state machine for one pane: it owns the
// primary and alternate screens, scrollback, and parser state, and
// composites its visible region into a shared grid when Composite is
// called.
type Terminal struct {
	mu sync.Mutex

	primary *screen
	alt     *screen
	altMode bool

	scrollback *Scrollback
	parser     parser

	oscTitle string
}

// NewTerminal creates a Terminal sized cols x rows with the given
// scrollback capacity (0 => default 10,000 lines per spec.md §3).
func NewTerminal(cols, rows, scrollbackLines int) *Terminal {
	t := &Terminal{
		primary:    newScreen(cols, rows),
		alt:        newScreen(cols, rows),
		scrollback: NewScrollback(scrollbackLines),
	}
	t.parser.term = t
	return t
}

func (t *Terminal) active() *screen {
	if t.altMode {
		return t.alt
	}
	return t.primary
}

// Feed ingests a batch of PTY output. It does not touch the shared grid:
// the daemon composites the focused pane (see Composite) on a fixed tick
// and after input, resize or attach, not after each read batch.
func (t *Terminal) Feed(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, b := range data {
		t.parser.advance(b)
	}
}

// Resize updates both screens' dimensions; spec.md §4.4 requires resize
// be idempotent and clamp the cursor into the new bounds.
func (t *Terminal) Resize(cols, rows int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.primary.resize(cols, rows)
	t.alt.resize(cols, rows)
}

// Dimensions returns the current cols, rows of the active screen.
func (t *Terminal) Dimensions() (cols, rows int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.active()
	return s.cols, s.rows
}

// Reset clears both screens and returns to the primary screen;
// scrollback is kept.
func (t *Terminal) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	cols, rows := t.primary.cols, t.primary.rows
	t.primary = newScreen(cols, rows)
	t.alt = newScreen(cols, rows)
	t.altMode = false
}

// IsAltScreen reports whether the alternate screen is active.
func (t *Terminal) IsAltScreen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.altMode
}

// Composite copies the active screen's visible region into the shared
// grid's cell array at offset (rowOffset, colOffset) — spec.md §4.6's
// per-pane viewport copy — and updates cursor/dirty fields. The caller
// (daemon package) wraps this in a shm.Writer.Publish call to get the
// seqlock bump.
func (t *Terminal) Composite(dst *protocol.SharedState, rowOffset, colOffset int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.active()
	for r := 0; r < s.rows && r+rowOffset < protocol.GridHeight; r++ {
		for c := 0; c < s.cols && c+colOffset < protocol.GridWidth; c++ {
			dst.Cells[protocol.CellIndex(r+rowOffset, c+colOffset)] = s.cells[s.index(r, c)].toWire()
		}
	}
	dst.CursorRow = uint16(s.cursorRow + rowOffset)
	dst.CursorCol = uint16(s.cursorCol + colOffset)
	dst.Dirty = 1
	dst.ErrorMode = protocol.ErrorModeNormal
}

// DumpScreen renders the active screen as text (DumpPlain strips
// trailing blanks per line; DumpVT returns the same text, and DumpHTML
// wraps each row in a <div>).
func (t *Terminal) DumpScreen(format DumpFormat) ScreenDump {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.active()
	var b strings.Builder
	for r := 0; r < s.rows; r++ {
		line := s.rowText(r)
		switch format {
		case DumpHTML:
			b.WriteString("<div>")
			b.WriteString(line)
			b.WriteString("</div>")
		default:
			b.WriteString(line)
		}
		if r < s.rows-1 {
			b.WriteByte('\n')
		}
	}
	return ScreenDump{
		Text:        b.String(),
		CursorRow:   s.cursorRow,
		CursorCol:   s.cursorCol,
		IsAltScreen: t.altMode,
	}
}

func (s *screen) rowText(row int) string {
	var b strings.Builder
	last := -1
	for c := 0; c < s.cols; c++ {
		r := s.cells[s.index(row, c)].Codepoint
		if r != ' ' && r != 0 {
			last = c
		}
	}
	for c := 0; c <= last; c++ {
		r := s.cells[s.index(row, c)].Codepoint
		if r == 0 {
			r = ' '
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Title returns the most recent OSC 0/2 window title.
func (t *Terminal) Title() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.oscTitle
}

// Close releases Terminal resources. There is nothing to free beyond Go
// GC'd memory — kept for parity with the wasm.Terminal shape it replaces.
func (t *Terminal) Close() error { return nil }
