// Package transport implements the control transport described in
// spec.md §4.2: a Unix domain socket listener bounded to MAX_CLIENTS
// concurrent connections, per-connection peer-credential verification,
// and the version handshake, wrapping each accepted connection in a
// protocol.Conn ready for framed message exchange.
//
// Grounded on _examples/seruman-hauntty/internal/daemon/server.go's
// Listen/handleConn (stale-socket cleanup, peer-credential check,
// handshake) and
// _examples/original_source/scarab/crates/scarab-daemon/src/ipc.rs's
// accept_loop (MAX_CLIENTS gating, 0700 socket permissions) — the
// tokio::sync::RwLock<usize> counter there is replaced by
// golang.org/x/sync/semaphore.Weighted, the idiomatic Go bounded-gate
// primitive.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/raibid-labs/scarab/protocol"
)

// Listener accepts client connections on a Unix domain socket, gating
// concurrent connections at protocol.MaxClients.
type Listener struct {
	path      string
	ln        net.Listener
	sem       *semaphore.Weighted
	closeOnce sync.Once
	closeErr  error
}

// Listen binds path, removing any stale socket first and restricting
// permissions to the owner, per spec.md §6. ctx governs the listener's
// lifetime: cancellation closes the listener, which unblocks any
// pending Accept with an error.
func Listen(ctx context.Context, path string) (*Listener, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("transport: create socket dir: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("transport: remove stale socket", "path", path, "err", err)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("transport: listen: %w", err)
	}
	if err := os.Chmod(path, 0o700); err != nil {
		ln.Close()
		return nil, fmt.Errorf("transport: chmod socket: %w", err)
	}

	l := &Listener{
		path: path,
		ln:   ln,
		sem:  semaphore.NewWeighted(int64(protocol.MaxClients)),
	}
	go func() {
		<-ctx.Done()
		l.Close()
	}()
	return l, nil
}

// Close stops accepting and removes the socket file. Safe to call more
// than once (the daemon's shutdown path and its ctx-cancellation
// watcher may both call it).
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.ln.Close()
		if rerr := os.Remove(l.path); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			slog.Warn("transport: remove socket on close", "path", l.path, "err", rerr)
		}
	})
	return l.closeErr
}

// Accept blocks for the next incoming connection, rejecting it outright
// if MaxClients are already active (per spec.md §5's connection-count
// bound), verifying the peer's UID, and completing the protocol
// handshake. The returned release func must be called when the client
// disconnects to free its semaphore slot.
func (l *Listener) Accept() (*ClientConn, func(), error) {
	for {
		netConn, err := l.ln.Accept()
		if err != nil {
			return nil, nil, fmt.Errorf("transport: accept: %w", err)
		}

		if !l.sem.TryAcquire(1) {
			slog.Warn("transport: max clients reached, rejecting connection", "max", protocol.MaxClients)
			netConn.Close()
			continue
		}
		release := func() { l.sem.Release(1) }

		cc, err := newClientConn(netConn)
		if err != nil {
			slog.Warn("transport: reject connection", "err", err)
			netConn.Close()
			release()
			continue
		}
		return cc, release, nil
	}
}

// Addr returns the bound socket path.
func (l *Listener) Addr() string { return l.path }
