package protocol

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gotest.tools/v3/assert"
)

// roundTrip implements spec.md §8 property 2: decode(encode(m)) == m.
func roundTrip(t *testing.T, m Message) Message {
	t.Helper()
	var buf bytes.Buffer
	conn := NewConn(&buf)
	assert.NilError(t, conn.WriteMessage(m))
	got, err := conn.ReadMessage()
	assert.NilError(t, err)
	return got
}

func TestRoundTripResize(t *testing.T) {
	got := roundTrip(t, &Resize{Cols: 100, Rows: 40})
	rs, ok := got.(*Resize)
	assert.Assert(t, ok)
	assert.Equal(t, rs.Cols, uint16(100))
	assert.Equal(t, rs.Rows, uint16(40))
}

func TestRoundTripInput(t *testing.T) {
	got := roundTrip(t, &Input{Data: []byte("echo hello\n")})
	in, ok := got.(*Input)
	assert.Assert(t, ok)
	assert.DeepEqual(t, in.Data, []byte("echo hello\n"))
}

func TestRoundTripSessionList(t *testing.T) {
	want := []SessionInfo{
		{ID: "a", Name: "one", CreatedAt: 1, LastAttached: 2, AttachedClients: 1},
		{ID: "b", Name: "two", CreatedAt: 3, LastAttached: 4, AttachedClients: 0},
	}
	got := roundTrip(t, &DaemonSession{Kind: SessionRespList, Sessions: want})
	ds, ok := got.(*DaemonSession)
	assert.Assert(t, ok)
	if diff := cmp.Diff(want, ds.Sessions); diff != "" {
		t.Fatalf("Sessions round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTripDrawOverlay(t *testing.T) {
	got := roundTrip(t, &DrawOverlay{ID: 7, X: 3, Y: 4, Text: "hi", Style: DefaultOverlayStyle})
	do, ok := got.(*DrawOverlay)
	assert.Assert(t, ok)
	assert.Equal(t, do.Text, "hi")
	assert.Equal(t, do.Style.Fg, DefaultOverlayStyle.Fg)
}

func TestReadMessageRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	assert.NilError(t, e.WriteU32(MaxMessageSize+1))
	conn := NewConn(&buf)
	_, err := conn.ReadMessage()
	assert.ErrorContains(t, err, "invalid frame length")
}

func TestReadMessageRejectsUnknownType(t *testing.T) {
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	assert.NilError(t, e.WriteU32(1))
	assert.NilError(t, e.WriteU8(0xFE))
	conn := NewConn(&buf)
	_, err := conn.ReadMessage()
	assert.ErrorContains(t, err, "unknown message type")
}
