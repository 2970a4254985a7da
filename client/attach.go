package client

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/raibid-labs/scarab/protocol"
	"github.com/raibid-labs/scarab/shm"
)

// detachByte resolves a config.ClientConfig.DetachKeybind of the form
// "ctrl+<letter>" to the raw byte the terminal driver delivers for that
// chord. Only the ctrl+letter family is supported — anything else falls
// back to Ctrl-\ (0x1c), chosen because it has no other conventional use
// in an attached shell session.
func detachByte(keybind string) byte {
	const fallback = 0x1c
	parts := strings.SplitN(keybind, "+", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "ctrl" {
		return fallback
	}
	letter := parts[1]
	if len(letter) != 1 {
		return fallback
	}
	c := letter[0]
	if c >= 'a' && c <= 'z' {
		return (c - 'a' + 1)
	}
	if c >= 'A' && c <= 'Z' {
		return (c - 'A' + 1)
	}
	return fallback
}

func isConnClosed(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Err.Error() == "use of closed network connection"
	}
	return false
}

// RunAttach creates or attaches to the named session, puts the
// controlling terminal into raw mode, and pumps stdin into the
// session's active pane while redrawing from the shared grid whenever
// its sequence number advances. It returns when the client detaches or
// the connection to the daemon is lost.
//
// Grounded on _examples/seruman-hauntty/client/attach.go's raw-mode
// loop shape (MakeRaw/Restore, SIGWINCH forwarding, detach-key
// scanning of stdin), adapted from hauntty's Output-message redraw to
// Scarab's shared-memory grid: there is no Output message on the wire,
// so redraws are driven by polling shm.Reader.Sequence() rather than
// by an incoming message.
func RunAttach(sock, shmemPath, name, detachKeybind string) error {
	c, err := ConnectWithRetry(sock)
	if err != nil {
		return err
	}
	defer c.Close()

	grid, err := shm.Open(shmemPath)
	if err != nil {
		return fmt.Errorf("client: open shared grid: %w", err)
	}
	defer grid.Close()
	reader := grid.Reader()

	fd := int(os.Stdin.Fd())
	ws, err := unix.IoctlGetWinsize(fd, unix.TIOCGWINSZ)
	if err != nil {
		return fmt.Errorf("client: get terminal size: %w", err)
	}

	sess, err := c.CreateSession(name)
	var created bool
	if err != nil {
		sess, err = c.AttachSession(name)
		if err != nil {
			return fmt.Errorf("client: create/attach session %q: %w", name, err)
		}
	} else {
		created = true
		if sess, err = c.AttachSession(sess.Name); err != nil {
			return fmt.Errorf("client: attach freshly created session %q: %w", name, err)
		}
	}
	if created {
		fmt.Fprintf(os.Stderr, "[scarab] created session %q\n", sess.Name)
	} else {
		fmt.Fprintf(os.Stderr, "[scarab] attached to session %q\n", sess.Name)
	}

	if err := c.WriteMessage(&protocol.Resize{Cols: ws.Col, Rows: ws.Row}); err != nil {
		return fmt.Errorf("client: send initial resize: %w", err)
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("client: set raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	dk := detachByte(detachKeybind)

	sigwinch := make(chan os.Signal, 1)
	signal.Notify(sigwinch, unix.SIGWINCH)
	defer signal.Stop(sigwinch)

	var (
		mu       sync.Mutex
		done     = make(chan struct{})
		detached bool
	)
	closeOnce := sync.OnceFunc(func() { close(done) })

	go func() {
		for {
			select {
			case <-sigwinch:
				ws, err := unix.IoctlGetWinsize(fd, unix.TIOCGWINSZ)
				if err != nil {
					continue
				}
				mu.Lock()
				werr := c.WriteMessage(&protocol.Resize{Cols: ws.Col, Rows: ws.Row})
				mu.Unlock()
				if werr != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				data := buf[:n]
				if i := bytes.IndexByte(data, dk); i >= 0 {
					if i > 0 {
						mu.Lock()
						c.WriteMessage(&protocol.Input{Data: data[:i]})
						mu.Unlock()
					}
					mu.Lock()
					c.DetachSession(sess.Name)
					detached = true
					mu.Unlock()
					closeOnce()
					return
				}
				mu.Lock()
				werr := c.WriteMessage(&protocol.Input{Data: data})
				mu.Unlock()
				if werr != nil {
					closeOnce()
					return
				}
			}
			if err != nil {
				closeOnce()
				return
			}
		}
	}()

	lastSeq := uint64(0)
	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()

	os.Stdout.Write([]byte("\x1b[2J\x1b[H"))
	for {
		select {
		case <-done:
			restoreScreen()
			if detached {
				fmt.Fprintf(os.Stderr, "[scarab] detached\n")
				return nil
			}
			return nil
		case <-ticker.C:
			seq := reader.Sequence()
			if seq == lastSeq {
				continue
			}
			state := reader.Snapshot()
			lastSeq = seq
			os.Stdout.Write(renderANSI(&state, int(ws.Col), int(ws.Row)))
		}
	}
}

func restoreScreen() {
	io.WriteString(os.Stdout, "\x1b[0m\x1b[?25h")
}
