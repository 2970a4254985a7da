// Package pane implements the pane/PTY adapter described in spec.md §4.4:
// for each Pane, spawn a shell under a PTY, bridge master bytes to the
// terminal state machine, write input bytes to the master, and honor
// resize requests.
//
// Grounded on _examples/seruman-hauntty/daemon/session.go's newSession/
// readLoop/feedLoop/resize — reshaped around a single Pane (one PTY)
// rather than hauntty's flat multi-client Session, since pane ownership
// here belongs to session.Tab (C5), not directly to an attached client.
package pane

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/riywo/loginshell"

	"github.com/raibid-labs/scarab/vte"
)

// feedBufSize matches hauntty's pooled read-buffer size.
const feedBufSize = 32 * 1024

var feedPool = sync.Pool{New: func() any {
	b := make([]byte, feedBufSize)
	return &b
}}

// OutputFunc receives raw PTY output bytes as they're read, before
// they're fed to the terminal state machine. It may be nil; the daemon
// passes nil, since clients read the screen from the shared grid.
type OutputFunc func([]byte)

// Pane owns one PTY and the shell running under it.
type Pane struct {
	ID int64

	Cols, Rows int
	Shell      string
	CWD        string
	CreatedAt  time.Time

	mu   sync.Mutex
	ptmx *os.File
	cmd  *exec.Cmd

	Term *vte.Terminal

	onOutput OutputFunc

	done     chan struct{}
	exitCode int32
	closed   bool
}

// resolveShell mirrors hauntty's resolveCommand, extended with the
// riywo/loginshell fallback spec.md's domain stack calls for between the
// explicit command and the bare "/bin/sh" last resort.
func resolveShell(command []string, env []string) []string {
	if len(command) > 0 {
		return command
	}
	for _, e := range env {
		if len(e) > 6 && e[:6] == "SHELL=" {
			return []string{e[6:]}
		}
	}
	if sh, err := loginshell.Shell(); err == nil && sh != "" {
		return []string{sh}
	}
	return []string{"/bin/sh"}
}

// New spawns a shell under a freshly allocated PTY sized cols x rows.
// Per spec.md §4.4, failure here must surface through the error
// sentinel (shm package) rather than panic — callers are expected to
// call shm Writer.PublishError when New returns an error.
func New(id int64, command []string, env []string, cwd string, cols, rows int, navSocket string, onOutput OutputFunc) (*Pane, error) {
	shellCmd := resolveShell(command, env)

	cmd := exec.Command(shellCmd[0], shellCmd[1:]...)
	cmd.Env = append(append([]string{}, env...), fmt.Sprintf("SCARAB_NAV_SOCKET=%s", navSocket))
	if cwd != "" {
		cmd.Dir = cwd
	} else if home, err := os.UserHomeDir(); err == nil {
		cmd.Dir = home
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
	if err != nil {
		return nil, fmt.Errorf("pane: start pty: %w", err)
	}

	p := &Pane{
		ID:        id,
		Cols:      cols,
		Rows:      rows,
		Shell:     shellCmd[0],
		CWD:       cwd,
		CreatedAt: time.Now(),
		ptmx:      ptmx,
		cmd:       cmd,
		Term:      vte.NewTerminal(cols, rows, 0),
		onOutput:  onOutput,
		done:      make(chan struct{}),
	}

	go p.readLoop()
	return p, nil
}

// readLoop is the per-pane reader task from spec.md §4.4/§5: a blocking
// read off the master, fanning bytes both to onOutput (live broadcast)
// and to the terminal state machine, matching hauntty's session.go
// readLoop/feedLoop split but inlined into one goroutine since pane
// output has exactly one consumer chain here (no per-client queue at
// this layer — that lives in the daemon/transport packages).
func (p *Pane) readLoop() {
	defer close(p.done)
	for {
		bufp := feedPool.Get().(*[]byte)
		buf := *bufp
		n, err := p.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if p.onOutput != nil {
				p.onOutput(chunk)
			}
			p.Term.Feed(chunk)
		}
		feedPool.Put(bufp)
		if err != nil {
			p.finish()
			return
		}
	}
}

func (p *Pane) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd.Process != nil {
		_, _ = p.cmd.Process.Wait()
		if ws, ok := p.cmd.ProcessState.Sys().(syscall.WaitStatus); ok {
			if ws.Exited() {
				p.exitCode = int32(ws.ExitStatus())
			} else if ws.Signaled() {
				p.exitCode = 128 + int32(ws.Signal())
			}
		}
	}
}

// Write forwards bytes to the PTY master. Failure closes the pane, per
// spec.md §4.4.
func (p *Pane) Write(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("pane: write to closed pane")
	}
	if _, err := p.ptmx.Write(data); err != nil {
		p.closed = true
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Signal(syscall.SIGHUP)
		}
		_ = p.ptmx.Close()
		return fmt.Errorf("pane: write: %w", err)
	}
	return nil
}

// Resize updates both the PTY window size and the terminal state
// dimensions; idempotent per spec.md §4.4.
func (p *Pane) Resize(cols, rows int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Cols == cols && p.Rows == rows {
		return nil
	}
	if err := pty.Setsize(p.ptmx, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)}); err != nil {
		return fmt.Errorf("pane: setsize: %w", err)
	}
	p.Cols, p.Rows = cols, rows
	p.Term.Resize(cols, rows)
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Signal(syscall.SIGWINCH)
	}
	return nil
}

// Done returns a channel closed when the pane's shell process has
// exited.
func (p *Pane) Done() <-chan struct{} { return p.done }

// ExitCode returns the exit code observed after Done() closes.
func (p *Pane) ExitCode() int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// IsRunning reports whether the pane's shell is still alive.
func (p *Pane) IsRunning() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Close performs a best-effort kill of the child and drops the master,
// per spec.md §4.4.
func (p *Pane) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Signal(syscall.SIGHUP)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
	case <-time.After(5 * time.Second):
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		select {
		case <-p.done:
		case <-ctx.Done():
		}
	case <-ctx.Done():
	}
	return p.ptmx.Close()
}
