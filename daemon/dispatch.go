package daemon

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/raibid-labs/scarab/nav"
	"github.com/raibid-labs/scarab/protocol"
	"github.com/raibid-labs/scarab/session"
	"github.com/raibid-labs/scarab/transport"
)

// clientState tracks what one connected client is currently attached to.
// A client may issue session-management commands without ever attaching,
// so attachedName starts empty. navMode tracks this client's own
// navigation-hint session (§4.9); hint mode is per-client, not per-pane.
type clientState struct {
	id           string
	attachedName string
	navMode      nav.Mode
}

// handleClient reads framed messages from cc until it disconnects or the
// daemon shuts down, dispatching each to the session manager and writing
// a reply where the wire protocol expects one. Grounded on hauntty's
// handleConn type-switch dispatch loop.
func (d *Daemon) handleClient(ctx context.Context, cc *transport.ClientConn, release func()) {
	defer release()
	defer cc.Close()

	cs := &clientState{id: d.nextClientID()}
	defer func() {
		if cs.attachedName != "" {
			_ = d.manager.DetachSession(cs.attachedName, cs.id)
			d.clearFocusedIfMatches(cs.attachedName)
		}
	}()

	for {
		msg, err := cc.ReadMessage()
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				slog.Debug("daemon: client disconnected", "client", cs.id, "err", err)
			}
			return
		}

		switch m := msg.(type) {
		case *protocol.SessionCreate:
			d.handleSessionCreate(ctx, cc, m)
		case *protocol.SessionAttach:
			d.handleSessionAttach(cc, cs, m)
		case *protocol.SessionDetach:
			d.handleSessionDetach(cc, cs, m)
		case *protocol.SessionDelete:
			d.handleSessionDelete(ctx, cc, m)
		case *protocol.SessionRename:
			d.handleSessionRename(cc, m)
		case *protocol.SessionList:
			d.handleSessionList(cc)
		case *protocol.Input:
			d.handleInput(cc, cs, m)
		case *protocol.Resize:
			d.handleResize(cs, m)
		case *protocol.Ping:
			_ = cc.WriteMessage(&protocol.Ping{Timestamp: m.Timestamp})
		case *protocol.Disconnect:
			return
		case *protocol.LoadPlugin:
			d.handleLoadPlugin(cc, m)
		case *protocol.PluginListRequest:
			d.handlePluginList(cc)
		case *protocol.PluginEnable:
			d.handlePluginEnable(cc, m.Name, true)
		case *protocol.PluginDisable:
			d.handlePluginEnable(cc, m.Name, false)
		case *protocol.PluginReload:
			d.handlePluginReload(cc, m)
		default:
			slog.Debug("daemon: unhandled message", "type", m)
		}
	}
}

func (d *Daemon) handleSessionCreate(ctx context.Context, cc *transport.ClientConn, m *protocol.SessionCreate) {
	sess, err := d.manager.CreateSession(ctx, m.Name, nil, nil, "")
	if err != nil {
		_ = cc.WriteMessage(&protocol.DaemonSession{Kind: protocol.SessionRespError, Message: err.Error()})
		return
	}
	_ = cc.WriteMessage(&protocol.DaemonSession{
		Kind: protocol.SessionRespCreated,
		ID:   idString(sess.ID),
		Name: sess.Name,
	})
}

func (d *Daemon) handleSessionAttach(cc *transport.ClientConn, cs *clientState, m *protocol.SessionAttach) {
	sess, err := d.manager.AttachSession(m.ID, cs.id)
	if err != nil {
		_ = cc.WriteMessage(&protocol.DaemonSession{Kind: protocol.SessionRespError, Message: err.Error()})
		return
	}
	cs.attachedName = sess.Name
	d.setFocused(sess.Name)
	_ = cc.WriteMessage(&protocol.DaemonSession{
		Kind: protocol.SessionRespAttached,
		ID:   idString(sess.ID),
		Name: sess.Name,
	})
}

func (d *Daemon) handleSessionDetach(cc *transport.ClientConn, cs *clientState, m *protocol.SessionDetach) {
	name := m.ID
	if name == "" {
		name = cs.attachedName
	}
	if name == "" {
		_ = cc.WriteMessage(&protocol.DaemonSession{Kind: protocol.SessionRespError, Message: "not attached to any session"})
		return
	}
	if err := d.manager.DetachSession(name, cs.id); err != nil {
		_ = cc.WriteMessage(&protocol.DaemonSession{Kind: protocol.SessionRespError, Message: err.Error()})
		return
	}
	if cs.attachedName == name {
		cs.attachedName = ""
	}
	d.clearFocusedIfMatches(name)
	_ = cc.WriteMessage(&protocol.DaemonSession{Kind: protocol.SessionRespDetached, Name: name})
}

func (d *Daemon) handleSessionDelete(ctx context.Context, cc *transport.ClientConn, m *protocol.SessionDelete) {
	if err := d.manager.DeleteSession(ctx, m.ID); err != nil {
		_ = cc.WriteMessage(&protocol.DaemonSession{Kind: protocol.SessionRespError, Message: err.Error()})
		return
	}
	_ = cc.WriteMessage(&protocol.DaemonSession{Kind: protocol.SessionRespDeleted, Name: m.ID})
}

func (d *Daemon) handleSessionRename(cc *transport.ClientConn, m *protocol.SessionRename) {
	if err := d.manager.RenameSession(m.ID, m.NewName); err != nil {
		_ = cc.WriteMessage(&protocol.DaemonSession{Kind: protocol.SessionRespError, Message: err.Error()})
		return
	}
	_ = cc.WriteMessage(&protocol.DaemonSession{Kind: protocol.SessionRespRenamed, Name: m.NewName})
}

func (d *Daemon) handleSessionList(cc *transport.ClientConn) {
	sessions := d.manager.ListSessions()
	infos := make([]protocol.SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, protocol.SessionInfo{
			ID:              idString(s.ID),
			Name:            s.Name,
			CreatedAt:       uint64(s.CreatedAt.UnixMilli()),
			LastAttached:    uint64(s.LastAttachedAt.UnixMilli()),
			AttachedClients: uint32(s.AttachedClientCount()),
		})
	}
	_ = cc.WriteMessage(&protocol.DaemonSession{Kind: protocol.SessionRespList, Sessions: infos})
}

func (d *Daemon) handleInput(cc *transport.ClientConn, cs *clientState, m *protocol.Input) {
	if cs.navMode.Active() {
		d.handleNavInput(cc, cs, m.Data)
		return
	}
	if len(m.Data) > 0 && m.Data[0] == d.navActivateByte() {
		d.activateNav(cc, cs)
		return
	}

	entry, ok := d.activePaneOf(cs.attachedName)
	if !ok {
		return
	}
	if err := entry.Pane.Write(m.Data); err != nil {
		slog.Debug("daemon: write to pane failed", "client", cs.id, "err", err)
		return
	}
	d.nudge()
}

// activateNav scans the daemon's own composited grid (what this
// client's attached session currently shows) and emits one DrawOverlay
// per discovered URI, per spec.md §4.9.
func (d *Daemon) activateNav(cc *transport.ClientConn, cs *clientState) {
	cs.navMode.Alphabet = d.cfg.Nav.HintChars
	snapshot := d.grid.Reader().Snapshot()
	for _, msg := range cs.navMode.Activate(&snapshot, protocol.GridWidth, protocol.GridHeight) {
		_ = cc.WriteMessage(msg)
	}
}

// handleNavInput feeds one input chunk to an active hint mode: a
// matching label opens its URI, Esc cancels, anything else is consumed
// without exiting hint mode (per spec.md §4.9). Either exit path clears
// the client's overlays.
func (d *Daemon) handleNavInput(cc *transport.ClientConn, cs *clientState, data []byte) {
	if uri, matched := cs.navMode.Input(data); matched {
		if err := nav.Open(uri); err != nil {
			slog.Debug("daemon: nav open failed", "client", cs.id, "uri", uri, "err", err)
		}
		_ = cc.WriteMessage(cs.navMode.Exit())
		return
	}
	if len(data) > 0 && data[0] == 0x1b {
		_ = cc.WriteMessage(cs.navMode.Exit())
	}
}

// navActivateByte parses cfg.Nav.ActivateKeybind ("ctrl+<letter>") into
// the raw byte a terminal driver delivers for that chord, falling back
// to Ctrl-O — the same convention client.detachByte uses for
// ClientConfig.DetachKeybind.
func (d *Daemon) navActivateByte() byte {
	const fallback = 0x0f // Ctrl-O
	kb := d.cfg.Nav.ActivateKeybind
	const prefix = "ctrl+"
	if len(kb) != len(prefix)+1 || kb[:len(prefix)] != prefix {
		return fallback
	}
	c := kb[len(prefix)]
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 1
	}
	return fallback
}

func (d *Daemon) handleResize(cs *clientState, m *protocol.Resize) {
	sess, ok := d.manager.GetSession(cs.attachedName)
	if !ok {
		return
	}
	tab, ok := sess.ActiveTab()
	if !ok {
		return
	}
	if err := tab.Resize(int(m.Cols), int(m.Rows)); err != nil {
		slog.Debug("daemon: resize failed", "session", cs.attachedName, "err", err)
		return
	}
	d.nudge()
}

func (d *Daemon) activePaneOf(sessionName string) (*session.PaneEntry, bool) {
	if sessionName == "" {
		return nil, false
	}
	sess, ok := d.manager.GetSession(sessionName)
	if !ok {
		return nil, false
	}
	tab, ok := sess.ActiveTab()
	if !ok {
		return nil, false
	}
	return tab.GetActivePane()
}

func (d *Daemon) handleLoadPlugin(cc *transport.ClientConn, m *protocol.LoadPlugin) {
	name := pluginNameFromPath(m.Path)
	if _, err := d.plugins.Load(name, m.Path); err != nil {
		_ = cc.WriteMessage(&protocol.PluginError{Name: name, Error: err.Error()})
		return
	}
	_ = cc.WriteMessage(&protocol.PluginStatusChanged{Name: name, Enabled: true})
}

func (d *Daemon) handlePluginList(cc *transport.ClientConn) {
	infos := d.plugins.Inspect()
	out := make([]protocol.PluginInspectorInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, protocol.PluginInspectorInfo{Name: info.Name, Enabled: info.Enabled})
	}
	_ = cc.WriteMessage(&protocol.PluginList{Plugins: out})
}

func (d *Daemon) handlePluginEnable(cc *transport.ClientConn, name string, enabled bool) {
	if err := d.plugins.SetEnabled(name, enabled); err != nil {
		_ = cc.WriteMessage(&protocol.PluginError{Name: name, Error: err.Error()})
		return
	}
	_ = cc.WriteMessage(&protocol.PluginStatusChanged{Name: name, Enabled: enabled})
}

func (d *Daemon) handlePluginReload(cc *transport.ClientConn, m *protocol.PluginReload) {
	if _, err := d.plugins.Reload(m.Name); err != nil {
		_ = cc.WriteMessage(&protocol.PluginError{Name: m.Name, Error: err.Error()})
		return
	}
	_ = cc.WriteMessage(&protocol.PluginStatusChanged{Name: m.Name, Enabled: true})
}

// pluginNameFromPath derives a plugin's registry name from its bytecode
// file path: the base name without the .fzb extension.
func pluginNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func idString(id uint64) string {
	return strconv.FormatUint(id, 10)
}
