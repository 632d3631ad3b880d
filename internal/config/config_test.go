package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "release", cfg.Mode)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, int64(65536), cfg.ReadLimit)
	require.Equal(t, 54*time.Second, cfg.PingPeriod)
	require.Equal(t, 60, cfg.EventRateLimit)
	require.Equal(t, 10*time.Second, cfg.EventRateWindow)
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	body := []byte("mode: debug\nport: 9000\nannounced_ip: 203.0.113.7\nice_servers:\n  - stun:stun.example.com:3478\nroom_meta_url: http://rooms.internal\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), body, 0o644))
	t.Chdir(dir)
	t.Setenv("CONFIG_ENV", "test")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Mode)
	require.Equal(t, 9000, cfg.Port)
	require.Equal(t, "203.0.113.7", cfg.AnnouncedIP)
	require.Equal(t, []string{"stun:stun.example.com:3478"}, cfg.ICEServers)
	require.Equal(t, "http://rooms.internal", cfg.RoomMetaURL)
	// Keys the file omits keep their defaults.
	require.Equal(t, int64(65536), cfg.ReadLimit)
}
