package shm

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/raibid-labs/scarab/protocol"
)

func TestCreateOpenPublishSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid")

	g, err := Create(path)
	assert.NilError(t, err)
	defer g.Close()

	w := g.Writer()
	w.Publish(func(s *protocol.SharedState) {
		s.CursorCol, s.CursorRow = 3, 4
		s.Cells[protocol.CellIndex(0, 0)] = protocol.Cell{Codepoint: 'h'}
	})
	assert.Assert(t, w.Sequence() > 0)

	g2, err := Open(path)
	assert.NilError(t, err)
	defer g2.Close()

	snap := g2.Reader().Snapshot()
	assert.Equal(t, snap.CursorCol, uint16(3))
	assert.Equal(t, snap.CursorRow, uint16(4))
	assert.Equal(t, snap.Cells[protocol.CellIndex(0, 0)].Codepoint, uint32('h'))
}

func TestSequenceMonotonic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid")
	g, err := Create(path)
	assert.NilError(t, err)
	defer g.Close()

	w := g.Writer()
	var last uint64
	for i := 0; i < 50; i++ {
		w.Publish(func(s *protocol.SharedState) { s.Dirty = uint8(i % 2) })
		seq := w.Sequence()
		assert.Assert(t, seq > last)
		last = seq
	}
}

// TestSeqlockCoherenceUnderConcurrentWrites exercises spec.md §8 property
// 1: a reader that samples an unchanged sequence number around its copy
// must see a state consistent with some single point in the writer's
// history (here: cursor_col always equals cursor_row, an invariant the
// writer maintains on every publish).
func TestSeqlockCoherenceUnderConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid")
	g, err := Create(path)
	assert.NilError(t, err)
	defer g.Close()

	w := g.Writer()
	r := g.Reader()

	var stop atomic.Bool
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		var n uint16
		for !stop.Load() {
			n++
			col := n % protocol.GridWidth
			w.Publish(func(s *protocol.SharedState) {
				s.CursorCol = col
				s.CursorRow = col
			})
		}
	}()

	for i := 0; i < 2000; i++ {
		snap := r.Snapshot()
		assert.Equal(t, snap.CursorCol, snap.CursorRow)
	}
	stop.Store(true)
	wg.Wait()
}

func TestPublishErrorSetsSentinel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid")
	g, err := Create(path)
	assert.NilError(t, err)
	defer g.Close()

	w := g.Writer()
	w.PublishError("pty open failed")

	snap := g.Reader().Snapshot()
	assert.Equal(t, snap.ErrorMode, protocol.ErrorModeFallback)
	assert.Assert(t, snap.Sequence > 0)

	var text []rune
	for i := 0; i < protocol.GridWidth; i++ {
		c := snap.Cells[protocol.CellIndex(0, i)]
		if c.Codepoint == 0 {
			break
		}
		text = append(text, rune(c.Codepoint))
	}
	assert.Assert(t, len(text) > 0)
}
