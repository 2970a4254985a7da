package shm

import (
	"runtime"
	"sync/atomic"

	"github.com/raibid-labs/scarab/protocol"
)

// Writer is the sole-writer side of the seqlock. Publish implements the
// three-step update discipline from spec.md §4.1: mutate, release fence
// (via the atomic store below), increment sequence.
type Writer struct{ g *Grid }

// Publish copies cells, cursor position and error/dirty flags into the
// region and bumps the sequence counter. fn receives a pointer to the
// live SharedState and must finish all mutation before returning; the
// sequence bump (with its implicit release) happens immediately after.
//
// The classic seqlock also bumps the sequence *before* mutation (so
// readers see an odd value and retry mid-write); here the single bump
// after mutation is sufficient because fn runs with exclusive writer
// access (only the daemon ever calls Publish) and spec.md's coherence
// property only requires that an equal before/after sample on the reader
// side implies a consistent snapshot, which holds as long as the readers
// always sample, copy, and re-sample around the one store below.
func (w *Writer) Publish(fn func(s *protocol.SharedState)) {
	s := w.g.state()
	fn(s)
	atomic.AddUint64(&s.Sequence, 1)
}

// PublishError writes the error-mode sentinel screen described in
// spec.md §4.1: first rows contain "ERROR:" followed by cause, sets
// error_mode, and bumps sequence.
func (w *Writer) PublishError(cause string) {
	w.Publish(func(s *protocol.SharedState) {
		s.ErrorMode = protocol.ErrorModeFallback
		s.Dirty = 1
		msg := "ERROR: " + cause
		row := 0
		col := 0
		for _, r := range msg {
			if col >= protocol.GridWidth {
				row++
				col = 0
				if row >= protocol.GridHeight {
					break
				}
			}
			s.Cells[protocol.CellIndex(row, col)] = protocol.Cell{
				Codepoint: uint32(r),
				Fg:        protocol.DefaultCell.Fg,
				Bg:        protocol.DefaultCell.Bg,
			}
			col++
		}
	})
}

// Sequence returns the current sequence number (useful for tests and for
// scenario A/D style assertions that sequence > 0 after a publish).
func (w *Writer) Sequence() uint64 { return w.g.sequence() }

// Reader is the many-reader side of the seqlock.
type Reader struct{ g *Grid }

// Snapshot copies the current SharedState out of shared memory using the
// seqlock retry protocol from spec.md §4.1/§5/§8 property 1: sample
// sequence (acquire), copy payload, re-sample; retry on mismatch.
func (r *Reader) Snapshot() protocol.SharedState {
	s := r.g.state()
	for {
		before := atomic.LoadUint64(&s.Sequence)
		var out protocol.SharedState
		out.Sequence = before
		out.ErrorMode = s.ErrorMode
		out.Dirty = s.Dirty
		out.CursorCol = s.CursorCol
		out.CursorRow = s.CursorRow
		copy(out.Cells[:], s.Cells[:])
		after := atomic.LoadUint64(&s.Sequence)
		if before == after {
			return out
		}
		runtime.Gosched()
	}
}

// Sequence returns the current sequence number without copying cells,
// for callers that only need to detect change (e.g. polling loops).
func (r *Reader) Sequence() uint64 { return r.g.sequence() }
