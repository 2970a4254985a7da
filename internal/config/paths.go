package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var runtimeSocketPath = sync.OnceValue(func() string {
	if xdg := os.Getenv("XDG_RUNTIME_DIR"); xdg != "" {
		return filepath.Join(xdg, "scarab", "scarab.sock")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("scarab-%d", os.Getuid()), "scarab.sock")
})

var runtimeShmemPath = sync.OnceValue(func() string {
	if xdg := os.Getenv("XDG_RUNTIME_DIR"); xdg != "" {
		return filepath.Join(xdg, "scarab", "scarab.grid")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("scarab-%d", os.Getuid()), "scarab.grid")
})

// DefaultSocketPath returns the default control-socket path under
// XDG_RUNTIME_DIR, falling back to a per-uid tmp directory.
func DefaultSocketPath() string { return runtimeSocketPath() }

// DefaultShmemPath returns the default shared-grid backing file path,
// alongside the control socket in the same runtime directory.
func DefaultShmemPath() string { return runtimeShmemPath() }
