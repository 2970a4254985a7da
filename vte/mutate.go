package vte

// The methods in this file implement the grid semantics from spec.md
// §4.3 and are only ever called from parser.advance while Terminal.mu is
// already held (via Feed) — they must not lock t.mu themselves.

func (t *Terminal) print(r rune) {
	s := t.active()
	if s.pendingWrap {
		s.cursorCol = 0
		t.newline(s)
		s.pendingWrap = false
	}
	s.cells[s.index(s.cursorRow, s.cursorCol)] = Cell{Codepoint: r, Fg: s.attrs.Fg, Bg: s.attrs.Bg, Flags: s.attrs.Flags}
	if s.attrs.Hyperlink != "" {
		s.hyperlinks[s.index(s.cursorRow, s.cursorCol)] = s.attrs.Hyperlink
	}
	if s.cursorCol == s.cols-1 {
		if s.autowrap {
			s.pendingWrap = true
		}
		return
	}
	s.cursorCol++
}

// newline advances the cursor to the next row, scrolling the region if
// the cursor was already at the bottom of it.
func (t *Terminal) newline(s *screen) {
	if s.cursorRow == s.scrollBottom {
		t.scrollUp(s)
		return
	}
	if s.cursorRow < s.rows-1 {
		s.cursorRow++
	}
}

func (t *Terminal) lineFeed() {
	s := t.active()
	s.pendingWrap = false
	t.newline(s)
}

func (t *Terminal) carriageReturn() {
	s := t.active()
	s.cursorCol = 0
	s.pendingWrap = false
}

func (t *Terminal) backspace() {
	s := t.active()
	if s.cursorCol > 0 {
		s.cursorCol--
	}
	s.pendingWrap = false
}

func (t *Terminal) tab() {
	s := t.active()
	next := (s.cursorCol/8 + 1) * 8
	if next >= s.cols {
		next = s.cols - 1
	}
	s.cursorCol = next
}

// scrollUp evicts the top line of the scroll region into scrollback
// (primary screen only, per spec.md §4.3), shifts the rest of the region
// up one row, and clears the new bottom line.
func (t *Terminal) scrollUp(s *screen) {
	top, bottom := s.scrollTop, s.scrollBottom
	if !t.altMode && top == 0 {
		line := make([]Cell, s.cols)
		copy(line, s.cells[s.index(top, 0):s.index(top, 0)+s.cols])
		t.scrollback.Push(Line{Cells: line})
	}
	for r := top; r < bottom; r++ {
		copy(s.cells[s.index(r, 0):s.index(r, 0)+s.cols], s.cells[s.index(r+1, 0):s.index(r+1, 0)+s.cols])
	}
	for c := 0; c < s.cols; c++ {
		s.cells[s.index(bottom, c)] = blank(s.attrs)
	}
}

func (t *Terminal) cursorUp(n int) {
	s := t.active()
	s.cursorRow -= n
	if s.cursorRow < s.scrollTop {
		s.cursorRow = s.scrollTop
	}
	s.pendingWrap = false
}

func (t *Terminal) cursorDown(n int) {
	s := t.active()
	s.cursorRow += n
	if s.cursorRow > s.scrollBottom {
		s.cursorRow = s.scrollBottom
	}
	s.pendingWrap = false
}

func (t *Terminal) cursorForward(n int) {
	s := t.active()
	s.cursorCol += n
	s.clampCursor()
	s.pendingWrap = false
}

func (t *Terminal) cursorBack(n int) {
	s := t.active()
	s.cursorCol -= n
	s.clampCursor()
	s.pendingWrap = false
}

func (t *Terminal) cursorNextLine(n int) {
	t.cursorDown(n)
	t.carriageReturn()
}

func (t *Terminal) cursorPrevLine(n int) {
	t.cursorUp(n)
	t.carriageReturn()
}

func (t *Terminal) cursorColumn(col int) {
	s := t.active()
	s.cursorCol = col
	s.clampCursor()
	s.pendingWrap = false
}

// cursorPosition is CUP: 1-based row/col from the wire, clamped into
// bounds per spec.md §3's invariant (cursor_col < W, cursor_row < H).
func (t *Terminal) cursorPosition(row, col int) {
	s := t.active()
	s.cursorRow = row - 1
	s.cursorCol = col - 1
	s.clampCursor()
	s.pendingWrap = false
}

// eraseInDisplay implements ED: 0 = cursor to end, 1 = start to cursor,
// 2 (and 3) = whole screen.
func (t *Terminal) eraseInDisplay(mode int) {
	s := t.active()
	switch mode {
	case 0:
		t.eraseInLine(0)
		for r := s.cursorRow + 1; r < s.rows; r++ {
			t.clearRow(s, r)
		}
	case 1:
		t.eraseInLine(1)
		for r := 0; r < s.cursorRow; r++ {
			t.clearRow(s, r)
		}
	default:
		s.clearAll()
	}
}

// eraseInLine implements EL: 0 = cursor to end of line, 1 = start to
// cursor, 2 = whole line.
func (t *Terminal) eraseInLine(mode int) {
	s := t.active()
	switch mode {
	case 0:
		for c := s.cursorCol; c < s.cols; c++ {
			s.cells[s.index(s.cursorRow, c)] = blank(s.attrs)
		}
	case 1:
		for c := 0; c <= s.cursorCol && c < s.cols; c++ {
			s.cells[s.index(s.cursorRow, c)] = blank(s.attrs)
		}
	default:
		t.clearRow(s, s.cursorRow)
	}
}

func (t *Terminal) clearRow(s *screen, row int) {
	for c := 0; c < s.cols; c++ {
		s.cells[s.index(row, c)] = blank(s.attrs)
	}
}

// setScrollRegion implements DECSTBM. A zero/zero argument resets to the
// full screen, matching common terminal behavior.
func (t *Terminal) setScrollRegion(top, bottom int) {
	s := t.active()
	if top <= 0 {
		top = 1
	}
	if bottom <= 0 || bottom > s.rows {
		bottom = s.rows
	}
	if top >= bottom {
		s.scrollTop, s.scrollBottom = 0, s.rows-1
		return
	}
	s.scrollTop, s.scrollBottom = top-1, bottom-1
	s.cursorRow, s.cursorCol = s.scrollTop, 0
}

// setAltScreen implements private mode ?1049: switching preserves the
// other buffer untouched, per spec.md §4.3.
func (t *Terminal) setAltScreen(enable bool) {
	if enable == t.altMode {
		return
	}
	t.altMode = enable
	if enable {
		t.alt.clearAll()
		t.alt.cursorRow, t.alt.cursorCol = 0, 0
	}
}

func (t *Terminal) setAutowrap(enable bool) {
	t.active().autowrap = enable
}

func (t *Terminal) setTitle(title string) {
	t.oscTitle = title
}

func (t *Terminal) setHyperlink(uri string) {
	t.active().attrs.Hyperlink = uri
}
