// Package session implements the session manager described in spec.md
// §4.5: a Session → Tab → Pane ownership hierarchy, durable persistence,
// and ObjectHandle-based stale-reference detection.
//
// Grounded on
// _examples/original_source/crates/scarab-daemon/src/session/{pane,tab}.rs
// (split_pane/close_pane/set_active_pane semantics) and
// _examples/original_source/crates/scarab-plugin-api/src/object_model/handle.rs
// (ObjectHandle generation semantics), restructured around Go idioms —
// maps guarded by sync.RWMutex in place of parking_lot, plain errors in
// place of anyhow.
package session

import "fmt"

// ObjectKind identifies what an ObjectHandle refers to, per spec.md §3.
type ObjectKind uint8

const (
	KindSession ObjectKind = iota
	KindTab
	KindPane
)

func (k ObjectKind) String() string {
	switch k {
	case KindSession:
		return "Session"
	case KindTab:
		return "Tab"
	case KindPane:
		return "Pane"
	default:
		return "Unknown"
	}
}

// ObjectHandle is a lightweight, copyable reference to a session object
// that includes a generation counter to detect stale references after
// an id is deleted and reused, per spec.md §3.
type ObjectHandle struct {
	Kind       ObjectKind
	ID         uint64
	Generation uint32
}

// IsValid reports whether this handle's generation still matches the
// current generation for its id.
func (h ObjectHandle) IsValid(currentGeneration uint32) bool {
	return h.Generation == currentGeneration
}

// NextGeneration returns a handle for the same kind/id bumped to the
// next generation, wrapping on overflow.
func (h ObjectHandle) NextGeneration() ObjectHandle {
	return ObjectHandle{Kind: h.Kind, ID: h.ID, Generation: h.Generation + 1}
}

func (h ObjectHandle) String() string {
	return fmt.Sprintf("%s#%d", h.Kind, h.ID)
}

// generationTable tracks the current generation for each id within one
// ObjectKind, bumping it whenever an id is freed for reuse.
type generationTable struct {
	gen map[uint64]uint32
}

func newGenerationTable() *generationTable {
	return &generationTable{gen: make(map[uint64]uint32)}
}

func (t *generationTable) handle(kind ObjectKind, id uint64) ObjectHandle {
	return ObjectHandle{Kind: kind, ID: id, Generation: t.gen[id]}
}

func (t *generationTable) release(id uint64) {
	t.gen[id] = t.gen[id] + 1
}
