package session

import (
	"context"
	"fmt"
	"time"

	"github.com/raibid-labs/scarab/pane"
)

// Rect is a pane's viewport position and size within its tab's layout,
// grounded on the original session::pane::Rect.
type Rect struct {
	X, Y, Width, Height uint16
}

// FullRect returns a viewport spanning the given dimensions from (0,0).
func FullRect(cols, rows uint16) Rect {
	return Rect{Width: cols, Height: rows}
}

// PaneEntry wraps a running pane.Pane with the layout/bookkeeping state
// owned by the session manager — the manager decides placement and
// lifetime; the pane.Pane itself only knows about its PTY and terminal.
type PaneEntry struct {
	ID        uint64
	Pane      *pane.Pane
	Viewport  Rect
	Shell     string
	CWD       string
	CreatedAt time.Time
}

func newPaneEntry(id uint64, p *pane.Pane, viewport Rect) *PaneEntry {
	return &PaneEntry{
		ID:        id,
		Pane:      p,
		Viewport:  viewport,
		Shell:     p.Shell,
		CWD:       p.CWD,
		CreatedAt: p.CreatedAt,
	}
}

// Dimensions reports the pane's current terminal size.
func (e *PaneEntry) Dimensions() (cols, rows int) {
	return e.Pane.Term.Dimensions()
}

// Close tears down the underlying PTY and shell process.
func (e *PaneEntry) Close(ctx context.Context) error {
	if e.Pane == nil {
		return nil
	}
	return e.Pane.Close(ctx)
}

var errNoActivePane = fmt.Errorf("session: no active pane")
