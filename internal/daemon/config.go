// Package daemon exposes a running chatsearch server to the CLI over a
// JSON-RPC 2.0 unix socket, so `chatsearch search` can reuse the server's
// open index and response cache instead of opening the store itself.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds socket and PID file settings.
type Config struct {
	// SocketPath is the unix socket. Default: <data>/chatsearch.sock
	SocketPath string

	// PIDPath records the serving process. Default: <data>/chatsearch.pid
	PIDPath string

	// Timeout bounds one request/response round trip. Default: 30s
	Timeout time.Duration

	// DialTimeout bounds connecting. Default: 500ms
	DialTimeout time.Duration
}

// DefaultConfig returns paths inside dataDir.
func DefaultConfig(dataDir string) Config {
	return Config{
		SocketPath:  filepath.Join(dataDir, "chatsearch.sock"),
		PIDPath:     filepath.Join(dataDir, "chatsearch.pid"),
		Timeout:     30 * time.Second,
		DialTimeout: 500 * time.Millisecond,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket path cannot be empty")
	}
	if c.PIDPath == "" {
		return fmt.Errorf("PID path cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

// EnsureDir creates the directories for the socket and PID file.
func (c Config) EnsureDir() error {
	for _, dir := range []string{filepath.Dir(c.SocketPath), filepath.Dir(c.PIDPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
