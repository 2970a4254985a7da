package pluginhost

import (
	"fmt"
	"os"
	"sync"

	"github.com/raibid-labs/scarab/vm"
)

// Plugin is one loaded .fzb module plus the per-plugin state the host
// tracks: its navigation rate limiter and the handler ids it registered,
// so Unload can clean up without the plugin's cooperation.
type Plugin struct {
	Name      string
	Path      string
	Bytecode  *vm.Bytecode
	VM        *vm.VM
	RateLimit *PluginNavRateLimiter
	Enabled   bool

	handlerIDs []uint64
}

// Host owns every loaded plugin, the shared event bus, and the UI
// command queue forwarded to the attached client.
type Host struct {
	mu      sync.Mutex
	bus     *Bus
	ui      *UIQueue
	plugins map[string]*Plugin

	memoryLimit      int64
	navRatePerSecond uint32
	requireChecksum  bool
}

// New creates an empty plugin host configured from config.PluginConfig
// fields (the daemon package passes these through rather than this
// package importing internal/config directly).
func New(memoryLimitBytes int64, navRatePerSecond int, requireChecksum bool) *Host {
	h := &Host{
		bus:              NewBus(),
		ui:               NewUIQueue(),
		plugins:          make(map[string]*Plugin),
		memoryLimit:      memoryLimitBytes,
		navRatePerSecond: uint32(navRatePerSecond),
		requireChecksum:  requireChecksum,
	}
	h.bus.SetEnabledCheck(h.isEnabled)
	return h
}

func (h *Host) isEnabled(pluginName string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.plugins[pluginName]
	return ok && p.Enabled
}

// Bus returns the host's shared event bus.
func (h *Host) Bus() *Bus { return h.bus }

// UI returns the host's remote UI command queue.
func (h *Host) UI() *UIQueue { return h.ui }

// Load reads, validates, and instantiates a .fzb module from path,
// registering it under name. requireChecksum is always honored by
// vm.Load (the checksum is embedded in the encoding itself); a policy
// knob here would only matter for a signature-verification layer that
// spec.md §9's Open Question leaves as future work.
func (h *Host) Load(name, path string) (*Plugin, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.plugins[name]; exists {
		return nil, fmt.Errorf("pluginhost: plugin %q already loaded", name)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pluginhost: read %s: %w", path, err)
	}
	bc, err := vm.Load(data)
	if err != nil {
		return nil, fmt.Errorf("pluginhost: load %s: %w", path, err)
	}

	rate := h.navRatePerSecond
	if rate == 0 {
		rate = DefaultNavActionsPerSecond
	}

	p := &Plugin{
		Name:      name,
		Path:      path,
		Bytecode:  bc,
		VM:        vm.New().WithSandbox(vm.NewSandboxWithLimit(h.memoryLimit)),
		RateLimit: NewPluginNavRateLimiter(rate),
		Enabled:   true,
	}
	h.plugins[name] = p
	return p, nil
}

// SetEnabled toggles whether a loaded plugin's handlers participate in
// dispatch. Disabling does not unregister handlers (Reload or Unload
// do); CheckNavAction and Bus dispatch both consult Enabled so a
// disabled plugin simply goes quiet without losing its registrations.
func (h *Host) SetEnabled(name string, enabled bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.plugins[name]
	if !ok {
		return fmt.Errorf("pluginhost: plugin %q not loaded", name)
	}
	p.Enabled = enabled
	return nil
}

// Reload unloads and re-loads a plugin from its original path, giving
// it a fresh VM, sandbox, and rate limiter — handlers the old instance
// registered must be re-subscribed by the caller after Reload returns.
func (h *Host) Reload(name string) (*Plugin, error) {
	h.mu.Lock()
	p, ok := h.plugins[name]
	h.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("pluginhost: plugin %q not loaded", name)
	}
	path := p.Path
	if err := h.Unload(name); err != nil {
		return nil, err
	}
	return h.Load(name, path)
}

// Unload removes a plugin and unregisters every handler it installed.
func (h *Host) Unload(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.plugins[name]
	if !ok {
		return fmt.Errorf("pluginhost: plugin %q not loaded", name)
	}
	for _, id := range p.handlerIDs {
		h.bus.Unregister(id)
	}
	delete(h.plugins, name)
	return nil
}

// Subscribe registers a handler on behalf of a loaded plugin, tracking
// the handler id for cleanup in Unload.
func (h *Host) Subscribe(pluginName string, eventType EventType, priority int, fn HandlerFunc) (uint64, error) {
	h.mu.Lock()
	p, ok := h.plugins[pluginName]
	h.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("pluginhost: plugin %q not loaded", pluginName)
	}

	id := h.bus.Register(eventType, pluginName, priority, fn)

	h.mu.Lock()
	p.handlerIDs = append(p.handlerIDs, id)
	h.mu.Unlock()
	return id, nil
}

// CheckNavAction enforces a plugin's navigation rate limit before it's
// allowed to act (e.g. open a URI from a hint). Returns RateLimitError
// when the plugin's window is exhausted.
func (h *Host) CheckNavAction(pluginName string) error {
	h.mu.Lock()
	p, ok := h.plugins[pluginName]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("pluginhost: plugin %q not loaded", pluginName)
	}
	if !p.Enabled {
		return fmt.Errorf("pluginhost: plugin %q is disabled", pluginName)
	}
	return p.RateLimit.CheckAction()
}

// List returns the names of every currently loaded plugin.
func (h *Host) List() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.plugins))
	for name := range h.plugins {
		names = append(names, name)
	}
	return names
}

// Get returns the loaded plugin by name, if any.
func (h *Host) Get(name string) (*Plugin, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.plugins[name]
	return p, ok
}

// Inspect returns one PluginInspectorInfo per loaded plugin, for the
// PluginListRequest/PluginList wire round trip. Bytecode modules carry
// no manifest in this minimal format, so Version/Description/Author
// are left blank rather than fabricated.
func (h *Host) Inspect() []InspectorInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	infos := make([]InspectorInfo, 0, len(h.plugins))
	for _, p := range h.plugins {
		infos = append(infos, InspectorInfo{Name: p.Name, Enabled: p.Enabled})
	}
	return infos
}

// InspectorInfo is the pluginhost-native shape of what daemon/dispatch.go
// translates into protocol.PluginInspectorInfo — kept separate from the
// wire type so this package does not need to import protocol just to
// describe a plugin.
type InspectorInfo struct {
	Name    string
	Enabled bool
}
