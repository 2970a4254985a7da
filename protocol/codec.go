package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// ProtocolVersion is bumped whenever the wire format changes in a way
// that isn't backward compatible. Peers exchange it during Handshake and
// refuse to talk past a mismatch.
const ProtocolVersion uint8 = 1

// Conn wraps a stream (typically a *net.UnixConn) with the length-prefixed
// framing from spec.md §4.1: big-endian u32 length, one type byte, then
// `length` total bytes of payload (including the type byte).
type Conn struct {
	rw io.ReadWriter
}

func NewConn(rw io.ReadWriter) *Conn { return &Conn{rw: rw} }

// Handshake writes this side's protocol version, the client side of the
// version exchange.
func (c *Conn) Handshake() error {
	_, err := c.rw.Write([]byte{ProtocolVersion})
	return err
}

// AcceptHandshake reads the peer's protocol version, the daemon side of
// the exchange, and returns it; the caller compares it with
// ProtocolVersion.
func (c *Conn) AcceptHandshake() (peerVersion uint8, err error) {
	var b [1]byte
	if _, err := io.ReadFull(c.rw, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// WriteMessage frames and writes m.
func (c *Conn) WriteMessage(m Message) error {
	var body bytes.Buffer
	body.WriteByte(m.Type())
	if err := m.encode(NewEncoder(&body)); err != nil {
		return fmt.Errorf("protocol: encode %T: %w", m, err)
	}
	if body.Len() > MaxMessageSize {
		return fmt.Errorf("protocol: message too large: %d bytes", body.Len())
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(body.Len()))
	if _, err := c.rw.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := c.rw.Write(body.Bytes())
	return err
}

// ReadMessage reads one frame and decodes it into a concrete Message. A
// zero or oversized length, or an unrecognized type tag, is a protocol
// error; the caller must close the connection on error per spec.md §7.
func (c *Conn) ReadMessage() (Message, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(c.rw, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 || n > MaxMessageSize {
		return nil, fmt.Errorf("protocol: invalid frame length %d", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(c.rw, body); err != nil {
		return nil, err
	}
	if len(body) < 1 {
		return nil, fmt.Errorf("protocol: empty frame")
	}
	m, err := newMessage(body[0])
	if err != nil {
		return nil, err
	}
	if err := m.decode(NewDecoder(bytes.NewReader(body[1:]))); err != nil {
		return nil, fmt.Errorf("protocol: decode %T: %w", m, err)
	}
	return m, nil
}
