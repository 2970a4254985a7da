// Package pluginhost implements the plugin host & event bus described
// in spec.md §4.8: a priority-ordered handler registry, sequential
// per-event dispatch with Continue/Stop/Modified semantics, navigation
// rate limiting, and the remote UI contract forwarded to the client
// over the control transport (C2). hauntty has nothing resembling a
// plugin system, so this is net-new domain logic; its shape (small
// registry struct, explicit ordering rule, table-driven dispatch) still
// follows the teacher's idiom rather than inventing an event-bus
// framework from scratch.
package pluginhost

import (
	"sort"
	"sync"
)

// EventType names a class of event plugins can subscribe to.
type EventType string

const (
	EventInput      EventType = "input"
	EventOutput     EventType = "output"
	EventResize     EventType = "resize"
	EventSessionNew EventType = "session_new"
	EventPaneExit   EventType = "pane_exit"
)

// Action is a handler's verdict on one event.
type Action int

const (
	// Continue lets the event proceed to the next handler unchanged.
	Continue Action = iota
	// Stop halts the dispatch chain; no further handlers run.
	Stop
	// Modified replaces the event's byte payload for the rest of the
	// chain — meaningful only for input/output mutation events.
	Modified
)

// Result is what a HandlerFunc returns: the verdict, and — only when
// Action is Modified — the replacement payload.
type Result struct {
	Action  Action
	Payload []byte
}

// Event is what's dispatched to handlers: a type tag and a mutable
// byte payload (PTY bytes for input/output events; empty for others).
type Event struct {
	Type    EventType
	Payload []byte
}

// HandlerFunc processes one Event and returns a verdict.
type HandlerFunc func(Event) Result

// Handler is one registered subscriber.
type Handler struct {
	ID         uint64
	PluginName string
	Priority   int
	Fn         HandlerFunc

	seq uint64 // insertion order, used to break priority ties
}

// Bus is the handler registry and dispatcher. One Bus serves the
// entire daemon; each plugin registers handlers per event type it
// cares about.
type Bus struct {
	mu       sync.Mutex
	handlers map[EventType][]*Handler
	nextID   uint64
	nextSeq  uint64
	enabled  func(pluginName string) bool
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[EventType][]*Handler)}
}

// Register adds a handler for eventType, returning an id usable with
// Unregister. Handlers run higher-priority first; ties break by
// registration order.
func (b *Bus) Register(eventType EventType, pluginName string, priority int, fn HandlerFunc) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.nextSeq++
	h := &Handler{ID: b.nextID, PluginName: pluginName, Priority: priority, Fn: fn, seq: b.nextSeq}

	list := append(b.handlers[eventType], h)
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority > list[j].Priority
		}
		return list[i].seq < list[j].seq
	})
	b.handlers[eventType] = list

	return h.ID
}

// SetEnabledCheck installs a predicate Dispatch consults before running
// each handler; a handler whose plugin is reported disabled is skipped.
// Host wires this to its own enabled-plugin bookkeeping so a disabled
// plugin goes quiet without losing its registrations.
func (b *Bus) SetEnabledCheck(fn func(pluginName string) bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = fn
}

// Unregister removes the handler with the given id from every event
// type it was registered under.
func (b *Bus) Unregister(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, list := range b.handlers {
		filtered := list[:0:0]
		for _, h := range list {
			if h.ID != id {
				filtered = append(filtered, h)
			}
		}
		b.handlers[eventType] = filtered
	}
}

// Dispatch runs every registered handler for event.Type in priority
// order, sequentially — handlers never run concurrently for the same
// event, per spec.md §5's ordering guarantees. It returns the final
// payload (after any Modified replacements) and whether a handler
// issued Stop.
func (b *Bus) Dispatch(event Event) (payload []byte, stopped bool) {
	b.mu.Lock()
	handlers := append([]*Handler(nil), b.handlers[event.Type]...)
	enabled := b.enabled
	b.mu.Unlock()

	payload = event.Payload
	for _, h := range handlers {
		if enabled != nil && !enabled(h.PluginName) {
			continue
		}
		result := h.Fn(Event{Type: event.Type, Payload: payload})
		switch result.Action {
		case Stop:
			return payload, true
		case Modified:
			payload = result.Payload
		}
	}
	return payload, false
}

// HandlerCount returns how many handlers are registered for eventType,
// used by tests and diagnostics.
func (b *Bus) HandlerCount(eventType EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[eventType])
}
