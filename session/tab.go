package session

import (
	"context"
	"fmt"
	"sort"

	"github.com/raibid-labs/scarab/pane"
)

// SplitDirection selects how Tab.SplitPane divides the active pane's
// space for the new pane, per spec.md §4.5.
type SplitDirection int

const (
	SplitHorizontal SplitDirection = iota
	SplitVertical
)

// PaneSpawner creates the pane.Pane backing a new PaneEntry; the tab
// only decides ids and layout, leaving PTY/shell concerns to the pane
// package, per spec.md §4.4's ownership boundary.
type PaneSpawner func(cols, rows int) (*pane.Pane, error)

// Tab holds one or more panes in a flat layout — per spec.md §4.5 the
// MVP uses a flat list rather than a split tree, matching the teacher's
// own reduced scope.
type Tab struct {
	ID    uint64
	Title string

	panes        map[uint64]*PaneEntry
	order        []uint64
	activePaneID uint64
	nextPaneID   uint64
	paneGen      *generationTable
}

// NewTab creates a tab with a single initial pane spawned by spawn.
func NewTab(id uint64, title string, cols, rows uint16, spawn PaneSpawner) (*Tab, error) {
	t := &Tab{
		ID:      id,
		Title:   title,
		panes:   make(map[uint64]*PaneEntry),
		paneGen: newGenerationTable(),
	}
	if _, err := t.addPane(cols, rows, spawn); err != nil {
		return nil, err
	}
	return t, nil
}

// EmptyTab creates a tab with no panes, for session restoration before
// panes are re-attached.
func EmptyTab(id uint64, title string) *Tab {
	return &Tab{
		ID:      id,
		Title:   title,
		panes:   make(map[uint64]*PaneEntry),
		paneGen: newGenerationTable(),
	}
}

func (t *Tab) addPane(cols, rows uint16, spawn PaneSpawner) (*PaneEntry, error) {
	t.nextPaneID++
	id := t.nextPaneID

	p, err := spawn(int(cols), int(rows))
	if err != nil {
		return nil, fmt.Errorf("session: spawn pane: %w", err)
	}
	p.ID = int64(id)

	entry := newPaneEntry(id, p, FullRect(cols, rows))
	t.panes[id] = entry
	t.order = append(t.order, id)
	if t.activePaneID == 0 {
		t.activePaneID = id
	}
	return entry, nil
}

// SplitPane creates a new pane sized as half of the active pane's
// dimensions, recalculating the flat layout afterward.
func (t *Tab) SplitPane(direction SplitDirection, spawn PaneSpawner) (*PaneEntry, error) {
	active, ok := t.GetActivePane()
	if !ok {
		return nil, errNoActivePane
	}
	cols, rows := active.Dimensions()

	var newCols, newRows int
	switch direction {
	case SplitHorizontal:
		newCols, newRows = cols, rows/2
	default:
		newCols, newRows = cols/2, rows
	}
	if newCols < 1 {
		newCols = 1
	}
	if newRows < 1 {
		newRows = 1
	}

	entry, err := t.addPane(uint16(newCols), uint16(newRows), spawn)
	if err != nil {
		return nil, err
	}
	t.recalculateLayout()
	return entry, nil
}

// ClosePane removes a pane by id, refusing to close the last pane in a
// tab per spec.md §4.5's invariant, and tears down its PTY.
func (t *Tab) ClosePane(ctx context.Context, id uint64) error {
	if len(t.panes) <= 1 {
		return fmt.Errorf("session: cannot close the last pane in tab %d", t.ID)
	}
	entry, ok := t.panes[id]
	if !ok {
		return fmt.Errorf("session: pane %d not found in tab %d", id, t.ID)
	}
	delete(t.panes, id)
	t.paneGen.release(id)
	for i, pid := range t.order {
		if pid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	if t.activePaneID == id {
		t.activePaneID = 0
		if len(t.order) > 0 {
			t.activePaneID = t.order[0]
		}
	}
	t.recalculateLayout()
	return entry.Close(ctx)
}

// GetActivePane returns the currently focused pane, if any.
func (t *Tab) GetActivePane() (*PaneEntry, bool) {
	e, ok := t.panes[t.activePaneID]
	return e, ok
}

// ActivePaneID reports which pane is currently focused.
func (t *Tab) ActivePaneID() uint64 { return t.activePaneID }

// SetActivePane changes the focused pane, rejecting unknown ids per
// spec.md §4.5.
func (t *Tab) SetActivePane(id uint64) error {
	if _, ok := t.panes[id]; !ok {
		return fmt.Errorf("session: pane %d not found in tab %d", id, t.ID)
	}
	t.activePaneID = id
	return nil
}

// GetPane returns a pane by id.
func (t *Tab) GetPane(id uint64) (*PaneEntry, bool) {
	e, ok := t.panes[id]
	return e, ok
}

// PaneHandle returns an ObjectHandle for the given pane id at its
// current generation.
func (t *Tab) PaneHandle(id uint64) ObjectHandle {
	return t.paneGen.handle(KindPane, id)
}

// Panes returns all panes in this tab in creation order.
func (t *Tab) Panes() []*PaneEntry {
	out := make([]*PaneEntry, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.panes[id])
	}
	return out
}

// PaneCount returns the number of panes in this tab.
func (t *Tab) PaneCount() int { return len(t.panes) }

// PaneIDs returns all pane ids in this tab, sorted.
func (t *Tab) PaneIDs() []uint64 {
	ids := make([]uint64, 0, len(t.panes))
	for id := range t.panes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// recalculateLayout applies a simple equal-width horizontal tiling
// across all panes — the MVP tiling policy from the original
// implementation, left unrefined per spec.md's stated reduced layout
// scope.
func (t *Tab) recalculateLayout() {
	n := len(t.order)
	if n == 0 {
		return
	}
	first := t.panes[t.order[0]]
	cols, rows := first.Dimensions()
	paneWidth := uint16(cols / n)
	if paneWidth == 0 {
		paneWidth = 1
	}
	var xOffset uint16
	for _, id := range t.order {
		t.panes[id].Viewport = Rect{X: xOffset, Y: 0, Width: paneWidth, Height: uint16(rows)}
		xOffset += paneWidth
	}
}

// Resize resizes every pane in the tab to cols x rows — for the
// single-active-pane MVP this updates all panes uniformly rather than
// recomputing per-viewport dimensions.
func (t *Tab) Resize(cols, rows int) error {
	for _, e := range t.panes {
		if err := e.Pane.Resize(cols, rows); err != nil {
			return err
		}
	}
	t.recalculateLayout()
	return nil
}

// CloseAll tears down every pane's PTY, used when the owning session is
// deleted.
func (t *Tab) CloseAll(ctx context.Context) {
	for _, e := range t.panes {
		_ = e.Close(ctx)
	}
}
