// Package config loads and defaults the YAML configuration for an n3xb
// node: identity, relay transport, storage paths, and logging.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/klingon-exchange/n3xb-core/pkg/logging"
)

// RelayTransport selects which relay.Client implementation a node dials
// its configured relays through.
type RelayTransport string

const (
	TransportWebsocket RelayTransport = "websocket"
	TransportSwarm     RelayTransport = "swarm"
)

// Config holds all configuration for an n3xb node.
type Config struct {
	// Identity settings.
	Identity IdentityConfig `yaml:"identity"`

	// Relay settings.
	Relay RelayConfig `yaml:"relay"`

	// Storage settings.
	Storage StorageConfig `yaml:"storage"`

	// Logging settings.
	Logging LoggingConfig `yaml:"logging"`

	// Engine is this application's trade-engine name, used to tag
	// published orders and scope order queries.
	Engine EngineConfig `yaml:"engine"`
}

// IdentityConfig holds identity-related settings.
type IdentityConfig struct {
	// KeyFile is the path to the node's secp256k1 secret-key file.
	KeyFile string `yaml:"key_file"`
}

// RelayEntryConfig is one configured relay.
type RelayEntryConfig struct {
	URL   string `yaml:"url"`
	Proxy string `yaml:"proxy,omitempty"`
}

// RelayConfig holds relay-client settings.
type RelayConfig struct {
	// Transport selects the relay.Client implementation: "websocket"
	// (gorilla/websocket against nostr-style relays) or "swarm"
	// (libp2p GossipSub + direct streams).
	Transport RelayTransport `yaml:"transport"`

	// Relays are the initial relay set to register and connect.
	Relays []RelayEntryConfig `yaml:"relays"`

	// PowDifficulty is the default NIP-13 mining difficulty for
	// published events.
	PowDifficulty uint64 `yaml:"pow_difficulty"`

	// ListenAddrs are the libp2p multiaddrs to listen on; only used
	// when Transport == TransportSwarm.
	ListenAddrs []string `yaml:"listen_addrs,omitempty"`
}

// StorageConfig holds persisted-state path settings.
type StorageConfig struct {
	// DataDir is the directory CommsData, MakerData and TakerData
	// snapshots are written under, one subdirectory per identity pubkey
	// (the daemon writes <pubkey>/comms.json and its maker files there).
	DataDir string `yaml:"data_dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level"`

	// File is the log file path (empty for stderr).
	File string `yaml:"file"`
}

// EngineConfig names the trade-engine this node runs.
type EngineConfig struct {
	Name string `yaml:"name"`
}

// LoggerConfig builds a pkg/logging.Config from c, opening File if set.
func (c *Config) LoggerConfig() (*logging.Config, error) {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Logging.Level

	if c.Logging.File != "" {
		f, err := os.OpenFile(c.Logging.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		cfg.Output = f
	}
	return cfg, nil
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Identity: IdentityConfig{
			KeyFile: "identity.key",
		},
		Relay: RelayConfig{
			Transport:     TransportWebsocket,
			Relays:        []RelayEntryConfig{},
			PowDifficulty: 8,
			ListenAddrs: []string{
				"/ip4/0.0.0.0/tcp/4001",
				"/ip4/0.0.0.0/udp/4001/quic-v1",
			},
		},
		Storage: StorageConfig{
			DataDir: "~/.n3xb",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
		Engine: EngineConfig{
			Name: "n3xb-simple-escrow",
		},
	}
}

// ConfigFileName is the default config file name.
const ConfigFileName = "config.yaml"

// Load reads configuration from dataDir/config.yaml, creating one with
// default values (rooted at dataDir) if it doesn't exist.
func Load(dataDir string) (*Config, error) {
	expanded := expandPath(dataDir)
	path := filepath.Join(expanded, ConfigFileName)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.Storage.DataDir = dataDir
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("create default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories as needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	header := []byte("# n3xb node configuration\n# Generated automatically on first run\n\n")
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// expandPath resolves a leading "~" to the current user's home directory.
func expandPath(path string) string {
	if path != "~" && (len(path) < 2 || path[:2] != "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
