// Package daemon implements the daemon loop described in spec.md §4.6:
// it owns the session.Manager, accepts clients over a transport.Listener,
// forwards client input to the focused pane, and composites the focused
// pane's screen into the shared grid.
//
// Grounded on _examples/seruman-hauntty/internal/daemon/server.go's
// Listen/handleConn accept-loop-plus-dispatch shape, restructured around
// golang.org/x/sync/errgroup for goroutine supervision and coordinated
// shutdown per SPEC_FULL.md's C6 elaboration (wingthing's internal/queue
// also favors errgroup over hauntty's manual sync.Once shutdown).
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/raibid-labs/scarab/internal/config"
	"github.com/raibid-labs/scarab/pluginhost"
	"github.com/raibid-labs/scarab/protocol"
	"github.com/raibid-labs/scarab/session"
	"github.com/raibid-labs/scarab/shm"
	"github.com/raibid-labs/scarab/transport"
)

// compositeInterval is the steady redraw cadence that catches output
// produced by background processes between client-driven nudges.
const compositeInterval = 16 * time.Millisecond

// Daemon wires together the control transport, the session manager, and
// the shared grid, per spec.md §4.6.
type Daemon struct {
	cfg      *config.Config
	manager  *session.Manager
	grid     *shm.Grid
	writer   *shm.Writer
	listener *transport.Listener
	plugins  *pluginhost.Host

	clientIDCounter atomic.Uint64

	mu       sync.Mutex
	focused  string // name of the session currently composited into the grid
	nudgeCh  chan struct{}
}

// New binds the control socket and returns a Daemon ready to Run. ctx
// governs both the listener's lifetime and, via Run, the daemon's own.
func New(ctx context.Context, cfg *config.Config, manager *session.Manager, grid *shm.Grid, socketPath string) (*Daemon, error) {
	ln, err := transport.Listen(ctx, socketPath)
	if err != nil {
		return nil, fmt.Errorf("daemon: listen: %w", err)
	}
	return &Daemon{
		cfg:      cfg,
		manager:  manager,
		grid:     grid,
		writer:   grid.Writer(),
		listener: ln,
		plugins: pluginhost.New(
			cfg.Plugin.MemoryLimitBytes,
			cfg.Plugin.NavRateLimitPerSec,
			cfg.Plugin.RequireChecksum,
		),
		nudgeCh: make(chan struct{}, 1),
	}, nil
}

// Run accepts clients and composites the focused session's screen until
// ctx is canceled, then tears everything down in order: stop accepting,
// wait for the accept and compositor loops to return, close the session
// manager (which closes every pane's PTY), close the shared grid. Client
// handler goroutines are not waited for.
func (d *Daemon) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return d.acceptLoop(gctx) })
	g.Go(func() error { return d.compositeLoop(gctx) })

	<-gctx.Done()
	d.listener.Close()

	err := g.Wait()

	d.manager.Close(context.Background())
	if cerr := d.grid.Close(); cerr != nil {
		slog.Warn("daemon: close shared grid", "err", cerr)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (d *Daemon) acceptLoop(ctx context.Context) error {
	for {
		cc, release, err := d.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("daemon: accept: %w", err)
			}
		}
		go d.handleClient(ctx, cc, release)
	}
}

// nudge asks the compositor to recomposite on its next tick rather than
// waiting out the full interval — used right after input/resize/attach
// so interactive latency doesn't ride the steady-state cadence.
func (d *Daemon) nudge() {
	select {
	case d.nudgeCh <- struct{}{}:
	default:
	}
}

func (d *Daemon) compositeLoop(ctx context.Context) error {
	ticker := time.NewTicker(compositeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.compositeFocused()
		case <-d.nudgeCh:
			d.compositeFocused()
		}
	}
}

// compositeFocused copies the focused session's active tab's active
// pane into the shared grid, per spec.md §4.6's "for MVP the shared grid
// holds the active pane of the active tab of the attached client's
// session" simplification.
func (d *Daemon) compositeFocused() {
	d.mu.Lock()
	name := d.focused
	d.mu.Unlock()
	if name == "" {
		return
	}

	sess, ok := d.manager.GetSession(name)
	if !ok {
		return
	}
	tab, ok := sess.ActiveTab()
	if !ok {
		return
	}
	entry, ok := tab.GetActivePane()
	if !ok {
		return
	}

	d.writer.Publish(func(s *protocol.SharedState) {
		entry.Pane.Term.Composite(s, int(entry.Viewport.Y), int(entry.Viewport.X))
	})
}

func (d *Daemon) setFocused(name string) {
	d.mu.Lock()
	d.focused = name
	d.mu.Unlock()
	d.nudge()
}

func (d *Daemon) clearFocusedIfMatches(name string) {
	d.mu.Lock()
	if d.focused == name {
		d.focused = ""
	}
	d.mu.Unlock()
}

func (d *Daemon) nextClientID() string {
	return fmt.Sprintf("client-%d", d.clientIDCounter.Add(1))
}
