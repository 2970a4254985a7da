package transport

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/raibid-labs/scarab/protocol"
)

func dial(t *testing.T, path string) net.Conn {
	t.Helper()
	conn, err := net.Dial("unix", path)
	assert.NilError(t, err)
	return conn
}

func TestListenAcceptHandshake(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "scarab.sock")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ln, err := Listen(ctx, sock)
	assert.NilError(t, err)
	defer ln.Close()

	go func() {
		c := dial(t, sock)
		defer c.Close()
		pc := protocol.NewConn(c)
		_ = pc.Handshake()
		_ = pc.WriteMessage(&protocol.Ping{Timestamp: 1})
	}()

	acceptCh := make(chan error, 1)
	var cc *ClientConn
	var release func()
	go func() {
		var err error
		cc, release, err = ln.Accept()
		acceptCh <- err
	}()

	select {
	case err := <-acceptCh:
		assert.NilError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("accept timed out")
	}
	defer release()
	defer cc.Close()

	msg, err := cc.ReadMessage()
	assert.NilError(t, err)
	ping, ok := msg.(*protocol.Ping)
	assert.Assert(t, ok)
	assert.Equal(t, ping.Timestamp, uint64(1))
}

func TestListenRejectsMismatchedVersionAndKeepsAccepting(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "scarab.sock")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ln, err := Listen(ctx, sock)
	assert.NilError(t, err)
	defer ln.Close()

	acceptCh := make(chan error, 1)
	go func() {
		_, release, err := ln.Accept()
		if err == nil {
			release()
		}
		acceptCh <- err
	}()

	bad := dial(t, sock)
	_, err = bad.Write([]byte{99})
	assert.NilError(t, err)
	bad.Close()

	go func() {
		good := dial(t, sock)
		defer good.Close()
		pc := protocol.NewConn(good)
		_ = pc.Handshake()
		time.Sleep(200 * time.Millisecond)
	}()

	select {
	case err := <-acceptCh:
		assert.NilError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("accept loop did not recover after rejecting a bad connection")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "scarab.sock")
	ctx, cancel := context.WithCancel(context.Background())
	ln, err := Listen(ctx, sock)
	assert.NilError(t, err)

	assert.NilError(t, ln.Close())
	cancel()
	time.Sleep(50 * time.Millisecond) // let the ctx-cancel watcher call Close too
}
