package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/data")

	assert.Equal(t, filepath.Join("/data", "chatsearch.sock"), cfg.SocketPath)
	assert.Equal(t, filepath.Join("/data", "chatsearch.pid"), cfg.PIDPath)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty socket", func(c *Config) { c.SocketPath = "" }},
		{"empty pid", func(c *Config) { c.PIDPath = "" }},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(t.TempDir())
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfig_EnsureDir(t *testing.T) {
	base := t.TempDir()
	cfg := Config{
		SocketPath: filepath.Join(base, "run", "chatsearch.sock"),
		PIDPath:    filepath.Join(base, "pid", "chatsearch.pid"),
	}

	require.NoError(t, cfg.EnsureDir())

	for _, dir := range []string{"run", "pid"} {
		info, err := os.Stat(filepath.Join(base, dir))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
