// Package config loads the daemon/client/session/plugin/navigation
// configuration described in spec.md §6's env-var surface, following
// the file-backed TOML layout and zero-config Default() pattern from
// _examples/seruman-hauntty/internal/config.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Daemon  DaemonConfig  `toml:"daemon"`
	Client  ClientConfig  `toml:"client"`
	Session SessionConfig `toml:"session"`
	Plugin  PluginConfig  `toml:"plugin"`
	Nav     NavConfig     `toml:"nav"`
}

type DaemonConfig struct {
	SocketPath            string `toml:"socket_path"`
	ShmemPath             string `toml:"shmem_path"`
	AutoExit              bool   `toml:"auto_exit"`
	DeadSessionTTLSeconds int    `toml:"dead_session_ttl_seconds"`
	AttachLeaseTTLSeconds int    `toml:"attach_lease_ttl_seconds"`
	StoreDSN              string `toml:"store_dsn"`
}

type ClientConfig struct {
	DetachKeybind string `toml:"detach_keybind"`
}

type SessionConfig struct {
	DefaultCommand  string   `toml:"default_command"`
	ForwardEnv      []string `toml:"forward_env"`
	ScrollbackLines int      `toml:"scrollback_lines"`
}

// PluginConfig configures the sandbox VM (C7) and event bus (C8).
type PluginConfig struct {
	Dir                 string `toml:"dir"`
	MemoryLimitBytes    int64  `toml:"memory_limit_bytes"`
	MaxAllocationBytes  int64  `toml:"max_allocation_bytes"`
	RequireChecksum     bool   `toml:"require_checksum"`
	NavRateLimitPerSec  int    `toml:"nav_rate_limit_per_sec"`
	AllowedCapabilities []string `toml:"allowed_capabilities"`
}

// NavConfig configures the navigation hint core (C9).
type NavConfig struct {
	HintChars       string `toml:"hint_chars"`
	SocketEnv       string `toml:"socket_env"`
	ActivateKeybind string `toml:"activate_keybind"`
}

func Default() *Config {
	return &Config{
		Daemon: DaemonConfig{
			DeadSessionTTLSeconds: 3,
			AttachLeaseTTLSeconds: 5,
			StoreDSN:              "",
		},
		Client: ClientConfig{
			DetachKeybind: "ctrl+;",
		},
		Session: SessionConfig{
			ForwardEnv:      []string{"COLORTERM", "TERM"},
			ScrollbackLines: 10000,
		},
		Plugin: PluginConfig{
			MemoryLimitBytes:    1 << 30,
			MaxAllocationBytes:  100 << 20,
			RequireChecksum:     true,
			NavRateLimitPerSec:  5,
			AllowedCapabilities: nil,
		},
		Nav: NavConfig{
			HintChars:       "asdfghjkl",
			SocketEnv:       "SCARAB_NAV_SOCKET",
			ActivateKeybind: "ctrl+o",
		},
	}
}

func Load() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return Default(), nil
	}
	return LoadFrom(path)
}

func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "scarab", "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "scarab", "config.toml"), nil
}

func DefaultStoreDSN() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "scarab", "sessions.db"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "state", "scarab", "sessions.db"), nil
}
