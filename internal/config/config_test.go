package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Rooms.MaxPlayers)
	assert.Equal(t, "standard", cfg.Rooms.GameMode)
	assert.Equal(t, time.Hour, cfg.Rooms.IdleTimeout)
}

func TestLoad_FullFile(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 8080
rooms:
  max_players: 4
  idle_timeout: 30m
  reap_interval: 5m
logging:
  level: debug
  format: console
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr())
	assert.Equal(t, 4, cfg.Rooms.MaxPlayers)
	assert.Equal(t, 30*time.Minute, cfg.Rooms.IdleTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Rooms.SweepInterval())
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidPort(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 99999
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestLoad_InvalidRooms(t *testing.T) {
	path := writeConfig(t, `
rooms:
  max_players: 0
  idle_timeout: 0s
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rooms.max_players")
	assert.Contains(t, err.Error(), "rooms.idle_timeout")
}

func TestLoad_InvalidLogging(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: verbose
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
}

func TestSweepInterval_DefaultsToIdleTimeout(t *testing.T) {
	r := RoomsConfig{IdleTimeout: time.Hour}
	assert.Equal(t, time.Hour, r.SweepInterval())

	r.ReapInterval = time.Minute
	assert.Equal(t, time.Minute, r.SweepInterval())
}

func TestValidate_SpawnBounds(t *testing.T) {
	cfg := Default()
	cfg.Rooms.SpawnMaxX = cfg.Rooms.SpawnMinX - 1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spawn_max_x")
}
