package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/raibid-labs/scarab/pane"
)

const (
	defaultCols = 80
	defaultRows = 24
)

// SpawnerFactory builds a PaneSpawner bound to a particular shell
// command/cwd — the manager supplies one per pane it creates so that
// Tab/PaneEntry never need to know about PTY/env plumbing directly.
type SpawnerFactory func(command []string, env []string, cwd string, navSocket string) PaneSpawner

// DefaultSpawnerFactory wires session.PaneSpawner calls through to
// pane.New, the only production implementation; tests substitute a
// fake factory to avoid spawning real shells.
func DefaultSpawnerFactory(command []string, env []string, cwd string, navSocket string) PaneSpawner {
	return func(cols, rows int) (*pane.Pane, error) {
		return pane.New(0, command, env, cwd, cols, rows, navSocket, nil)
	}
}

// Manager owns the full Session→Tab→Pane hierarchy and its durable
// backing store, per spec.md §4.5. All map mutations happen under mu;
// I/O (PTY spawn, store writes) happens outside the lock wherever
// grounding in hauntty's ensureSession/watchSession split allows it.
//
// Grounded on _examples/seruman-hauntty/internal/daemon/server.go's
// ensureSession/watchSession/dead-timer logic, restructured around the
// nested Session→Tab→Pane map spec.md §3 requires instead of hauntty's
// flat sessions-by-name map.
type Manager struct {
	store     *Store
	navSocket string
	spawner   SpawnerFactory

	deadSessionTTL time.Duration

	mu         sync.RWMutex
	byID       map[uint64]*Session
	byName     map[string]*Session
	nextID     uint64
	sessionGen *generationTable

	deadTimers map[uint64]*time.Timer
}

// NewManager returns an empty Manager that persists to st; a nil st (as
// in tests) disables persistence.
func NewManager(st *Store, navSocket string, spawner SpawnerFactory, deadSessionTTL time.Duration) *Manager {
	if spawner == nil {
		spawner = DefaultSpawnerFactory
	}
	return &Manager{
		store:          st,
		navSocket:      navSocket,
		spawner:        spawner,
		deadSessionTTL: deadSessionTTL,
		byID:           make(map[uint64]*Session),
		byName:         make(map[string]*Session),
		sessionGen:     newGenerationTable(),
		deadTimers:     make(map[uint64]*time.Timer),
	}
}

// Bootstrap restores persisted session/tab/pane descriptors from the
// store (spawning fresh panes for each, since PTYs themselves never
// survive a daemon restart) and creates a "default" session if the
// store was empty, per spec.md §4.5.
func (m *Manager) Bootstrap(ctx context.Context) error {
	if m.store == nil {
		_, err := m.CreateSession(ctx, "default", nil, nil, "")
		return err
	}

	rows, err := m.store.ListSessions()
	if err != nil {
		return fmt.Errorf("session manager: bootstrap: %w", err)
	}
	if len(rows) == 0 {
		_, err := m.CreateSession(ctx, "default", nil, nil, "")
		return err
	}

	var restoreErrs *multierror.Error
	for _, row := range rows {
		if err := m.restoreSession(ctx, row); err != nil {
			slog.Error("restore session failed", "session", row.Name, "err", err)
			restoreErrs = multierror.Append(restoreErrs, fmt.Errorf("session %q: %w", row.Name, err))
		}
	}
	return restoreErrs.ErrorOrNil()
}

func (m *Manager) restoreSession(ctx context.Context, row SessionRow) error {
	sess := newSession(row.ID, row.Name)
	sess.CreatedAt = row.CreatedAt
	if row.LastAttachedAt != nil {
		sess.LastAttachedAt = *row.LastAttachedAt
	}

	tabRows, err := m.store.ListTabs(row.ID)
	if err != nil {
		return fmt.Errorf("list tabs for session %q: %w", row.Name, err)
	}
	for _, tr := range tabRows {
		paneRows, err := m.store.ListPanes(tr.ID)
		if err != nil {
			return fmt.Errorf("list panes for tab %d: %w", tr.ID, err)
		}
		tab := EmptyTab(tr.ID, tr.Title)
		for _, pr := range paneRows {
			spawn := m.spawner([]string{pr.Shell}, nil, pr.CWD, m.navSocket)
			if _, err := tab.addPane(uint16(pr.Cols), uint16(pr.Rows), spawn); err != nil {
				slog.Error("restore pane failed", "pane", pr.ID, "err", err)
			}
		}
		if tab.PaneCount() == 0 {
			spawn := m.spawner(nil, nil, "", m.navSocket)
			if _, err := tab.addPane(defaultCols, defaultRows, spawn); err != nil {
				return fmt.Errorf("restore tab %d: create fallback pane: %w", tr.ID, err)
			}
		}
		sess.AddTab(tab)
	}
	if len(sess.Tabs()) == 0 {
		tab, err := NewTab(sess.NextTabID(), "main", defaultCols, defaultRows, m.spawner(nil, nil, "", m.navSocket))
		if err != nil {
			return fmt.Errorf("restore session %q: create fallback tab: %w", row.Name, err)
		}
		sess.AddTab(tab)
	}

	m.mu.Lock()
	m.byID[sess.ID] = sess
	m.byName[sess.Name] = sess
	if sess.ID >= m.nextID {
		m.nextID = sess.ID + 1
	}
	m.mu.Unlock()
	return nil
}

// CreateSession creates a new session (generating a unique name when
// name is empty) with one tab and one pane running command.
func (m *Manager) CreateSession(ctx context.Context, name string, command []string, env []string, cwd string) (*Session, error) {
	m.mu.Lock()
	if name == "" {
		existing := make(map[string]bool, len(m.byName))
		for n := range m.byName {
			existing[n] = true
		}
		name = generateUniqueName(existing)
	}
	if existing, ok := m.byName[name]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	id := m.nextID + 1
	m.nextID = id
	m.mu.Unlock()

	if m.store != nil {
		storedID, err := m.store.InsertSession(SessionRow{Name: name, CreatedAt: time.Now()})
		if err != nil {
			return nil, fmt.Errorf("session manager: persist session %q: %w", name, err)
		}
		id = storedID
	}

	sess := newSession(id, name)
	spawn := m.spawner(command, env, cwd, m.navSocket)
	tab, err := NewTab(sess.NextTabID(), "main", defaultCols, defaultRows, spawn)
	if err != nil {
		return nil, fmt.Errorf("session manager: create session %q: %w", name, err)
	}
	sess.AddTab(tab)

	if m.store != nil {
		tabID, err := m.store.InsertTab(TabRow{SessionID: id, Title: tab.Title, CreatedAt: time.Now()})
		if err == nil {
			if active, ok := tab.GetActivePane(); ok {
				cols, rows := active.Dimensions()
				_, _ = m.store.InsertPane(PaneRow{TabID: tabID, Shell: active.Shell, CWD: active.CWD, Cols: cols, Rows: rows, CreatedAt: time.Now()})
			}
		}
	}

	m.mu.Lock()
	m.byID[id] = sess
	m.byName[name] = sess
	m.stopDeadTimerLocked(id)
	m.mu.Unlock()

	go m.watchSession(sess)
	return sess, nil
}

// GetSession looks up a session by name.
func (m *Manager) GetSession(name string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byName[name]
	return s, ok
}

// GetSessionByID looks up a session by id.
func (m *Manager) GetSessionByID(id uint64) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	return s, ok
}

// ListSessions returns all currently known sessions.
func (m *Manager) ListSessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.byID))
	for _, s := range m.byID {
		out = append(out, s)
	}
	return out
}

// SessionHandle returns an ObjectHandle for a session id at its
// current generation.
func (m *Manager) SessionHandle(id uint64) ObjectHandle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionGen.handle(KindSession, id)
}

// DeleteSession tears down a session's panes and removes it, refusing
// to remove the last remaining session.
func (m *Manager) DeleteSession(ctx context.Context, name string) error {
	m.mu.Lock()
	if len(m.byName) <= 1 {
		m.mu.Unlock()
		return fmt.Errorf("session manager: cannot delete the last session")
	}
	sess, ok := m.byName[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("session manager: session %q not found", name)
	}
	delete(m.byName, name)
	delete(m.byID, sess.ID)
	m.sessionGen.release(sess.ID)
	m.stopDeadTimerLocked(sess.ID)
	m.mu.Unlock()

	sess.Close(ctx)
	if m.store != nil {
		if err := m.store.DeleteSession(sess.ID); err != nil {
			return fmt.Errorf("session manager: delete session %q: %w", name, err)
		}
	}
	return nil
}

// RenameSession changes a session's display name. newName must be
// non-empty, per spec.md §4.5's rename contract ("unknown id; empty
// name" are the errors).
func (m *Manager) RenameSession(name, newName string) error {
	if newName == "" {
		return fmt.Errorf("session manager: new name must not be empty")
	}
	m.mu.Lock()
	sess, ok := m.byName[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("session manager: session %q not found", name)
	}
	if _, clash := m.byName[newName]; clash {
		m.mu.Unlock()
		return fmt.Errorf("session manager: session %q already exists", newName)
	}
	delete(m.byName, name)
	sess.Rename(newName)
	m.byName[newName] = sess
	m.mu.Unlock()

	if m.store != nil {
		return m.store.RenameSession(sess.ID, newName)
	}
	return nil
}

// AttachSession records a client attachment and cancels any pending
// dead-session timer.
func (m *Manager) AttachSession(name, clientID string) (*Session, error) {
	m.mu.Lock()
	sess, ok := m.byName[name]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("session manager: session %q not found", name)
	}
	m.stopDeadTimerLocked(sess.ID)
	m.mu.Unlock()

	sess.Attach(clientID)
	if m.store != nil {
		_ = m.store.TouchSessionAttached(sess.ID, time.Now())
	}
	return sess, nil
}

// DetachSession removes a client attachment. If this was the last
// attached client and a dead-session TTL is configured, a cleanup timer
// is scheduled per spec.md §4.5's cleanup_detached behavior.
func (m *Manager) DetachSession(name, clientID string) error {
	m.mu.RLock()
	sess, ok := m.byName[name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("session manager: session %q not found", name)
	}
	sess.Detach(clientID)
	if m.deadSessionTTL > 0 && sess.AttachedClientCount() == 0 {
		m.scheduleDeadTimer(sess.ID, m.deadSessionTTL)
	}
	return nil
}

func (m *Manager) stopDeadTimerLocked(id uint64) {
	t := m.deadTimers[id]
	if t == nil {
		return
	}
	delete(m.deadTimers, id)
	t.Stop()
}

func (m *Manager) scheduleDeadTimer(id uint64, after time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopDeadTimerLocked(id)
	m.deadTimers[id] = time.AfterFunc(after, func() {
		m.cleanupDetached(id)
	})
}

// cleanupDetached removes a session that has had no attached clients
// for the configured TTL, per spec.md §4.5.
func (m *Manager) cleanupDetached(id uint64) {
	m.mu.Lock()
	sess, ok := m.byID[id]
	if !ok || sess.AttachedClientCount() > 0 || len(m.byID) <= 1 {
		m.mu.Unlock()
		return
	}
	delete(m.byID, id)
	delete(m.byName, sess.Name)
	m.sessionGen.release(id)
	delete(m.deadTimers, id)
	m.mu.Unlock()

	slog.Info("cleaning up detached session", "session", sess.Name)
	sess.Close(context.Background())
	if m.store != nil {
		_ = m.store.DeleteSession(id)
	}
}

// watchSession waits for sess.Done, which closes only when Session.Close
// runs; a shell exiting on its own does not close it. If no dead-session
// TTL is configured it then removes the session immediately.
func (m *Manager) watchSession(sess *Session) {
	<-sess.Done()
	if m.deadSessionTTL <= 0 {
		m.mu.Lock()
		delete(m.byID, sess.ID)
		delete(m.byName, sess.Name)
		m.mu.Unlock()
		return
	}
	m.scheduleDeadTimer(sess.ID, m.deadSessionTTL)
}

// Close tears down every session.
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.byID))
	for _, s := range m.byID {
		sessions = append(sessions, s)
	}
	for _, t := range m.deadTimers {
		t.Stop()
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close(ctx)
	}
	if m.store != nil {
		_ = m.store.Close()
	}
}
