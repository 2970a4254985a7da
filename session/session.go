package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Session is a named collection of tabs, durable across daemon restarts
// per spec.md §3 and §4.5. A Session owns its Tabs and tracks which
// clients are currently attached to it, mirroring hauntty's Session
// attached-clients bookkeeping but with the Session→Tab→Pane nesting
// §3 requires instead of hauntty's single embedded terminal.
type Session struct {
	ID             uint64
	Name           string
	CreatedAt      time.Time
	LastAttachedAt time.Time

	mu            sync.RWMutex
	tabs          map[uint64]*Tab
	order         []uint64
	activeTabID   uint64
	nextTabID     uint64
	tabGen        *generationTable
	attached      map[string]struct{} // client ids currently attached
	done          chan struct{}
	closedOnce    sync.Once
}

func newSession(id uint64, name string) *Session {
	return &Session{
		ID:        id,
		Name:      name,
		CreatedAt: time.Now(),
		tabs:      make(map[uint64]*Tab),
		tabGen:    newGenerationTable(),
		attached:  make(map[string]struct{}),
		done:      make(chan struct{}),
	}
}

// AddTab registers a tab (already constructed by the caller via
// NewTab/EmptyTab) and makes it active if it is the first one.
func (s *Session) AddTab(t *Tab) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID >= s.nextTabID {
		s.nextTabID = t.ID + 1
	}
	s.tabs[t.ID] = t
	s.order = append(s.order, t.ID)
	if s.activeTabID == 0 {
		s.activeTabID = t.ID
	}
}

// NextTabID allocates the next tab id for this session.
func (s *Session) NextTabID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTabID++
	return s.nextTabID
}

// GetTab returns a tab by id.
func (s *Session) GetTab(id uint64) (*Tab, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tabs[id]
	return t, ok
}

// ActiveTab returns the currently focused tab, if any.
func (s *Session) ActiveTab() (*Tab, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tabs[s.activeTabID]
	return t, ok
}

// SetActiveTab changes the focused tab, rejecting unknown ids.
func (s *Session) SetActiveTab(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tabs[id]; !ok {
		return fmt.Errorf("session: tab %d not found in session %q", id, s.Name)
	}
	s.activeTabID = id
	return nil
}

// CloseTab removes a tab, tearing down all of its panes. The last tab
// in a session cannot be closed.
func (s *Session) CloseTab(ctx context.Context, id uint64) error {
	s.mu.Lock()
	if len(s.tabs) <= 1 {
		s.mu.Unlock()
		return fmt.Errorf("session: cannot close the last tab in session %q", s.Name)
	}
	t, ok := s.tabs[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("session: tab %d not found in session %q", id, s.Name)
	}
	delete(s.tabs, id)
	s.tabGen.release(id)
	for i, tid := range s.order {
		if tid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.activeTabID == id {
		s.activeTabID = 0
		if len(s.order) > 0 {
			s.activeTabID = s.order[0]
		}
	}
	s.mu.Unlock()
	t.CloseAll(ctx)
	return nil
}

// Tabs returns all tabs in creation order.
func (s *Session) Tabs() []*Tab {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Tab, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tabs[id])
	}
	return out
}

// TabHandle returns an ObjectHandle for a tab id at its current
// generation.
func (s *Session) TabHandle(id uint64) ObjectHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tabGen.handle(KindTab, id)
}

// Attach records a client as attached to this session and bumps
// LastAttachedAt.
func (s *Session) Attach(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attached[clientID] = struct{}{}
	s.LastAttachedAt = time.Now()
}

// Detach removes a client from the attached set.
func (s *Session) Detach(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attached, clientID)
}

// AttachedClientCount reports how many clients are currently attached.
func (s *Session) AttachedClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attached)
}

// AttachedClients returns a sorted snapshot of attached client ids.
func (s *Session) AttachedClients() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.attached))
	for id := range s.attached {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Rename changes the session's display name.
func (s *Session) Rename(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Name = name
}

// Done returns a channel closed once the session has been fully torn
// down, mirroring hauntty's per-session done channel used by the
// dead-session watcher in the daemon loop.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close tears down every tab's panes and marks the session done. Safe
// to call more than once.
func (s *Session) Close(ctx context.Context) {
	s.closedOnce.Do(func() {
		s.mu.RLock()
		tabs := make([]*Tab, 0, len(s.tabs))
		for _, t := range s.tabs {
			tabs = append(tabs, t)
		}
		s.mu.RUnlock()
		for _, t := range tabs {
			t.CloseAll(ctx)
		}
		close(s.done)
	})
}
