package config

import (
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, cfg.Daemon.DeadSessionTTLSeconds, 3)
	assert.Equal(t, cfg.Daemon.AttachLeaseTTLSeconds, 5)
	assert.Equal(t, cfg.Client.DetachKeybind, "ctrl+;")
	assert.Equal(t, cfg.Session.ScrollbackLines, 10000)
	assert.DeepEqual(t, cfg.Session.ForwardEnv, []string{"COLORTERM", "TERM"})
	assert.Equal(t, cfg.Plugin.MemoryLimitBytes, int64(1<<30))
	assert.Equal(t, cfg.Plugin.MaxAllocationBytes, int64(100<<20))
	assert.Equal(t, cfg.Plugin.RequireChecksum, true)
	assert.Equal(t, cfg.Plugin.NavRateLimitPerSec, 5)
	assert.Equal(t, cfg.Nav.HintChars, "asdfghjkl")
	assert.Equal(t, cfg.Nav.SocketEnv, "SCARAB_NAV_SOCKET")
}

func TestLoadMissing(t *testing.T) {
	cfg, err := LoadFrom("/nonexistent/path/config.toml")
	assert.NilError(t, err)
	assert.DeepEqual(t, cfg, Default())
}

func TestLoadDefaultCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	err := os.WriteFile(path, []byte(`[session]
default_command = "/bin/zsh"
`), 0o600)
	assert.NilError(t, err)

	cfg, err := LoadFrom(path)
	assert.NilError(t, err)
	assert.Equal(t, cfg.Session.DefaultCommand, "/bin/zsh")
	// Other defaults preserved.
	assert.Equal(t, cfg.Daemon.DeadSessionTTLSeconds, 3)
	assert.Equal(t, cfg.Client.DetachKeybind, "ctrl+;")
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	err := os.WriteFile(path, []byte(`[daemon]
auto_exit = true
dead_session_ttl_seconds = 9
attach_lease_ttl_seconds = 12
store_dsn = "/tmp/scarab-sessions.db"

[client]
detach_keybind = "ctrl+q"

[session]
default_command = "/usr/bin/fish"
forward_env = ["TERM"]
scrollback_lines = 5000

[plugin]
memory_limit_bytes = 2097152
require_checksum = false
nav_rate_limit_per_sec = 1

[nav]
hint_chars = "qwerty"
`), 0o600)
	assert.NilError(t, err)

	cfg, err := LoadFrom(path)
	assert.NilError(t, err)
	assert.Equal(t, cfg.Daemon.AutoExit, true)
	assert.Equal(t, cfg.Daemon.DeadSessionTTLSeconds, 9)
	assert.Equal(t, cfg.Daemon.AttachLeaseTTLSeconds, 12)
	assert.Equal(t, cfg.Daemon.StoreDSN, "/tmp/scarab-sessions.db")
	assert.Equal(t, cfg.Client.DetachKeybind, "ctrl+q")
	assert.Equal(t, cfg.Session.DefaultCommand, "/usr/bin/fish")
	assert.DeepEqual(t, cfg.Session.ForwardEnv, []string{"TERM"})
	assert.Equal(t, cfg.Session.ScrollbackLines, 5000)
	assert.Equal(t, cfg.Plugin.MemoryLimitBytes, int64(2097152))
	assert.Equal(t, cfg.Plugin.RequireChecksum, false)
	assert.Equal(t, cfg.Plugin.NavRateLimitPerSec, 1)
	assert.Equal(t, cfg.Nav.HintChars, "qwerty")
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	err := os.WriteFile(path, []byte(`not valid toml {{`), 0o600)
	assert.NilError(t, err)

	_, err = LoadFrom(path)
	assert.Assert(t, err != nil)
}

func TestDefaultPathHonorsXDGConfigHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdgcfg")
	path, err := DefaultPath()
	assert.NilError(t, err)
	assert.Equal(t, path, "/tmp/xdgcfg/scarab/config.toml")
}

func TestDefaultStoreDSNHonorsXDGStateHome(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/tmp/xdgstate")
	dsn, err := DefaultStoreDSN()
	assert.NilError(t, err)
	assert.Equal(t, dsn, "/tmp/xdgstate/scarab/sessions.db")
}
