package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultConfigWhenAbsent(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, TransportWebsocket, cfg.Relay.Transport)
	assert.Equal(t, uint64(8), cfg.Relay.PowDifficulty)

	_, err = Load(dir)
	require.NoError(t, err)
}

func TestLoadRoundTripsCustomValues(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Relay.PowDifficulty = 16
	cfg.Relay.Relays = []RelayEntryConfig{{URL: "wss://relay.example"}}
	cfg.Engine.Name = "my-engine"
	require.NoError(t, cfg.Save(filepath.Join(dir, ConfigFileName)))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, uint64(16), loaded.Relay.PowDifficulty)
	assert.Equal(t, "my-engine", loaded.Engine.Name)
	require.Len(t, loaded.Relay.Relays, 1)
	assert.Equal(t, "wss://relay.example", loaded.Relay.Relays[0].URL)
}

func TestLoggerConfigDefaultsToStderr(t *testing.T) {
	cfg := DefaultConfig()
	logCfg, err := cfg.LoggerConfig()
	require.NoError(t, err)
	assert.Equal(t, "info", logCfg.Level)
	assert.Equal(t, os.Stderr, logCfg.Output)
}
