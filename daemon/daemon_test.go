package daemon

import (
	"context"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/raibid-labs/scarab/internal/config"
	"github.com/raibid-labs/scarab/pane"
	"github.com/raibid-labs/scarab/protocol"
	"github.com/raibid-labs/scarab/session"
	"github.com/raibid-labs/scarab/shm"
)

func dialUnix(path string) (net.Conn, error) {
	return net.Dial("unix", path)
}

// waitForSocket polls until the control socket exists on disk, failing
// the test if it does not appear within timeout.
func waitForSocket(t *testing.T, path string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("socket %s did not appear within %s", path, timeout)
}

func shSpawner(cols, rows int) (*pane.Pane, error) {
	if _, err := exec.LookPath("sh"); err != nil {
		return nil, err
	}
	return pane.New(0, []string{"/bin/sh"}, nil, "", cols, rows, "", nil)
}

func testDaemon(t *testing.T) (*Daemon, string) {
	t.Helper()
	dir := t.TempDir()

	factory := func(command, env []string, cwd, navSocket string) session.PaneSpawner {
		return shSpawner
	}
	manager := session.NewManager(nil, "", factory, 0)
	t.Cleanup(func() { manager.Close(context.Background()) })

	grid, err := shm.Create(filepath.Join(dir, "scarab.grid"))
	assert.NilError(t, err)

	sock := filepath.Join(dir, "scarab.sock")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	d, err := New(ctx, config.Default(), manager, grid, sock)
	assert.NilError(t, err)

	go d.Run(ctx)
	return d, sock
}

func dialAndHandshake(t *testing.T, sock string) *protocol.Conn {
	t.Helper()
	conn, err := dialUnix(sock)
	assert.NilError(t, err)
	pc := protocol.NewConn(conn)
	assert.NilError(t, pc.Handshake())
	return pc
}

func TestDaemonSessionCreateAttachInput(t *testing.T) {
	_, sock := testDaemon(t)

	// Give the listener a moment to come up.
	waitForSocket(t, sock, 2*time.Second)

	pc := dialAndHandshake(t, sock)

	assert.NilError(t, pc.WriteMessage(&protocol.SessionCreate{Name: "work"}))
	msg, err := pc.ReadMessage()
	assert.NilError(t, err)
	created, ok := msg.(*protocol.DaemonSession)
	assert.Assert(t, ok)
	assert.Equal(t, created.Kind, protocol.SessionRespCreated)
	assert.Equal(t, created.Name, "work")

	assert.NilError(t, pc.WriteMessage(&protocol.SessionAttach{ID: "work"}))
	msg, err = pc.ReadMessage()
	assert.NilError(t, err)
	attached, ok := msg.(*protocol.DaemonSession)
	assert.Assert(t, ok)
	assert.Equal(t, attached.Kind, protocol.SessionRespAttached)

	assert.NilError(t, pc.WriteMessage(&protocol.Input{Data: []byte("echo hi\n")}))

	assert.NilError(t, pc.WriteMessage(&protocol.Ping{Timestamp: 42}))
	msg, err = pc.ReadMessage()
	assert.NilError(t, err)
	pong, ok := msg.(*protocol.Ping)
	assert.Assert(t, ok)
	assert.Equal(t, pong.Timestamp, uint64(42))
}

func TestDaemonSessionList(t *testing.T) {
	_, sock := testDaemon(t)
	waitForSocket(t, sock, 2*time.Second)

	pc := dialAndHandshake(t, sock)
	assert.NilError(t, pc.WriteMessage(&protocol.SessionCreate{Name: "alpha"}))
	_, err := pc.ReadMessage()
	assert.NilError(t, err)

	assert.NilError(t, pc.WriteMessage(&protocol.SessionList{}))
	msg, err := pc.ReadMessage()
	assert.NilError(t, err)
	list, ok := msg.(*protocol.DaemonSession)
	assert.Assert(t, ok)
	assert.Equal(t, list.Kind, protocol.SessionRespList)
	assert.Assert(t, len(list.Sessions) >= 1)
}

// TestBootstrapFailurePublishesErrorGrid mirrors spec.md §8 scenario A:
// when every pane spawn fails during startup (the daemon's
// SCARAB_FORCE_PTY_FAIL path wraps a spawner the same way), Bootstrap's
// error must still leave a readable error grid behind instead of the
// daemon exiting with nothing published.
func TestBootstrapFailurePublishesErrorGrid(t *testing.T) {
	dir := t.TempDir()

	failingSpawner := func(cols, rows int) (*pane.Pane, error) {
		return nil, assertErr
	}
	factory := func(command, env []string, cwd, navSocket string) session.PaneSpawner {
		return failingSpawner
	}
	manager := session.NewManager(nil, "", factory, 0)
	t.Cleanup(func() { manager.Close(context.Background()) })

	grid, err := shm.Create(filepath.Join(dir, "scarab.grid"))
	assert.NilError(t, err)
	t.Cleanup(func() { grid.Close() })

	bootstrapErr := manager.Bootstrap(context.Background())
	assert.Assert(t, bootstrapErr != nil)
	grid.Writer().PublishError(bootstrapErr.Error())

	snap := grid.Reader().Snapshot()
	assert.Equal(t, snap.ErrorMode, protocol.ErrorModeFallback)
	assert.Assert(t, snap.Sequence > 0)

	text := gridText(&snap)
	assert.Assert(t, strings.Contains(text, "ERROR"))
	lower := strings.ToLower(text)
	assert.Assert(t, strings.Contains(lower, "pty") || strings.Contains(lower, "fail"))
}

// gridText concatenates every non-empty cell's codepoint across the
// grid's rows, stopping each row at its first empty cell, matching how
// PublishError lays out its message.
func gridText(s *protocol.SharedState) string {
	var b strings.Builder
	for row := 0; row < protocol.GridHeight; row++ {
		for col := 0; col < protocol.GridWidth; col++ {
			c := s.Cells[protocol.CellIndex(row, col)]
			if c.Codepoint == 0 {
				break
			}
			b.WriteRune(rune(c.Codepoint))
		}
	}
	return b.String()
}

var assertErr = errFake("pty: spawn forced to fail (SCARAB_FORCE_PTY_FAIL set)")

type errFake string

func (e errFake) Error() string { return string(e) }

func TestDaemonNavActivateAndEscCancels(t *testing.T) {
	_, sock := testDaemon(t)
	waitForSocket(t, sock, 2*time.Second)

	pc := dialAndHandshake(t, sock)
	assert.NilError(t, pc.WriteMessage(&protocol.SessionCreate{Name: "nav"}))
	_, err := pc.ReadMessage()
	assert.NilError(t, err)
	assert.NilError(t, pc.WriteMessage(&protocol.SessionAttach{ID: "nav"}))
	_, err = pc.ReadMessage()
	assert.NilError(t, err)

	// Ctrl-O (0x0f) is the default nav activation chord; an empty grid
	// yields zero hints, so no DrawOverlay is expected, but the daemon
	// must not forward the byte to the pane as ordinary input.
	assert.NilError(t, pc.WriteMessage(&protocol.Input{Data: []byte{0x0f}}))

	assert.NilError(t, pc.WriteMessage(&protocol.Input{Data: []byte{0x1b}}))
	msg, err := pc.ReadMessage()
	assert.NilError(t, err)
	clear, ok := msg.(*protocol.ClearOverlays)
	assert.Assert(t, ok)
	assert.Assert(t, !clear.HasID)
}
