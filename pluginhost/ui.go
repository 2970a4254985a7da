package pluginhost

import (
	"sync"

	"github.com/raibid-labs/scarab/protocol"
)

// UIQueue buffers remote UI commands emitted by plugins — overlays,
// modals — until the daemon forwards them to the attached client over
// the control transport (C2). The client's renderer (external, out of
// scope per spec.md's Non-goals) draws whatever it receives; UIQueue
// only owns the command backlog and per-id bookkeeping described in
// §4.8's remote UI contract.
type UIQueue struct {
	mu       sync.Mutex
	pending  []protocol.Message
	overlays map[uint64]struct{}
}

// NewUIQueue creates an empty queue.
func NewUIQueue() *UIQueue {
	return &UIQueue{overlays: make(map[uint64]struct{})}
}

// DrawOverlay enqueues an overlay draw command and remembers its id so
// ClearOverlay/ClearAllOverlays can track live overlays.
func (q *UIQueue) DrawOverlay(id uint64, x, y uint16, text string, style protocol.OverlayStyle) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.overlays[id] = struct{}{}
	q.pending = append(q.pending, &protocol.DrawOverlay{ID: id, X: x, Y: y, Text: text, Style: style})
}

// ClearOverlay removes one overlay by id.
func (q *UIQueue) ClearOverlay(id uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.overlays, id)
	q.pending = append(q.pending, &protocol.ClearOverlays{ID: id, HasID: true})
}

// ClearAllOverlays removes every live overlay at once — used on nav
// hint mode exit per spec.md §4.9.
func (q *UIQueue) ClearAllOverlays() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.overlays = make(map[uint64]struct{})
	q.pending = append(q.pending, &protocol.ClearOverlays{HasID: false})
}

// ShowModal enqueues a modal with the given title and selectable items.
// Selection results arrive back asynchronously as a
// protocol.CommandSelected message on the same control connection.
func (q *UIQueue) ShowModal(title string, items []protocol.ModalItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, &protocol.ShowModal{Title: title, Items: items})
}

// HideModal enqueues a command to dismiss any open modal.
func (q *UIQueue) HideModal() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, &protocol.HideModal{})
}

// Drain removes and returns every pending command in emission order.
func (q *UIQueue) Drain() []protocol.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	drained := q.pending
	q.pending = nil
	return drained
}

// LiveOverlayCount reports how many overlays are currently tracked as
// drawn, used by tests and diagnostics.
func (q *UIQueue) LiveOverlayCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.overlays)
}
