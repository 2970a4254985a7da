package session

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestObjectHandleValidity(t *testing.T) {
	h := ObjectHandle{Kind: KindPane, ID: 1, Generation: 5}
	assert.Assert(t, h.IsValid(5))
	assert.Assert(t, !h.IsValid(4))
}

func TestObjectHandleNextGeneration(t *testing.T) {
	h := ObjectHandle{Kind: KindTab, ID: 100, Generation: 1}
	next := h.NextGeneration()
	assert.Equal(t, next.ID, h.ID)
	assert.Equal(t, next.Kind, h.Kind)
	assert.Equal(t, next.Generation, uint32(2))
	assert.Assert(t, !h.IsValid(2))
	assert.Assert(t, next.IsValid(2))
}

func TestGenerationTableBumpsOnRelease(t *testing.T) {
	gt := newGenerationTable()
	h1 := gt.handle(KindPane, 7)
	assert.Equal(t, h1.Generation, uint32(0))

	gt.release(7)
	h2 := gt.handle(KindPane, 7)
	assert.Equal(t, h2.Generation, uint32(1))
	assert.Assert(t, !h1.IsValid(h2.Generation))
}

func TestObjectHandleString(t *testing.T) {
	h := ObjectHandle{Kind: KindSession, ID: 42}
	assert.Equal(t, h.String(), "Session#42")
}
