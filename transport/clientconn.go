package transport

import (
	"fmt"
	"net"
	"sync"

	"github.com/raibid-labs/scarab/protocol"
)

// ClientConn is one accepted, peer-verified, handshake-completed client
// connection. Reads are expected to happen from a single goroutine
// (the daemon's per-client read loop); writes may come from multiple
// goroutines (the read loop itself plus the session's output fan-out),
// so WriteMessage is serialized internally.
type ClientConn struct {
	net  net.Conn
	conn *protocol.Conn

	writeMu sync.Mutex
}

func newClientConn(netConn net.Conn) (*ClientConn, error) {
	unixConn, ok := netConn.(*net.UnixConn)
	if !ok {
		return nil, fmt.Errorf("transport: connection is not a unix socket")
	}
	if err := verifyPeerIsSelf(unixConn); err != nil {
		return nil, err
	}

	conn := protocol.NewConn(netConn)
	peerVersion, err := conn.AcceptHandshake()
	if err != nil {
		return nil, fmt.Errorf("transport: handshake: %w", err)
	}
	if peerVersion != protocol.ProtocolVersion {
		return nil, fmt.Errorf("transport: protocol version mismatch: peer=%d daemon=%d", peerVersion, protocol.ProtocolVersion)
	}

	return &ClientConn{net: netConn, conn: conn}, nil
}

// ReadMessage reads the next framed message from the client.
func (c *ClientConn) ReadMessage() (protocol.Message, error) {
	return c.conn.ReadMessage()
}

// WriteMessage writes a framed message to the client, safe for
// concurrent callers.
func (c *ClientConn) WriteMessage(m protocol.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(m)
}

// Close closes the underlying network connection.
func (c *ClientConn) Close() error { return c.net.Close() }
