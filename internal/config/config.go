// Package config loads layered chatsearch configuration: defaults, the user
// config file, an optional explicit file, then CHATSEARCH_* environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/chatsearch/internal/errors"
)

// Config represents the complete chatsearch configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Paths   PathsConfig   `yaml:"paths" json:"paths"`
	Store   StoreConfig   `yaml:"store" json:"store"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Server  ServerConfig  `yaml:"server" json:"server"`
	Watch   WatchConfig   `yaml:"watch" json:"watch"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// PathsConfig locates transcripts and chatsearch's own data.
type PathsConfig struct {
	// ProjectsDir is the transcript root (default ~/.claude/projects).
	ProjectsDir string `yaml:"projects_dir" json:"projects_dir"`

	// DataDir holds the index, lock, socket, pid and logs (default ~/.chatsearch).
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// Exclude lists glob patterns, relative to ProjectsDir, to skip.
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// StoreConfig configures the index backend.
type StoreConfig struct {
	// Backend is "sqlite" (default) or "bleve".
	Backend string `yaml:"backend" json:"backend"`

	// BatchFiles is how many files are inserted per transaction.
	BatchFiles int `yaml:"batch_files" json:"batch_files"`

	// MaxFileSizeMB skips larger transcripts.
	MaxFileSizeMB int `yaml:"max_file_size_mb" json:"max_file_size_mb"`

	// SnippetTokens bounds highlighted snippets.
	SnippetTokens int `yaml:"snippet_tokens" json:"snippet_tokens"`
}

// SearchConfig configures query limits and the response cache.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`
	MaxLimit     int `yaml:"max_limit" json:"max_limit"`

	// CacheSize bounds cached responses; negative disables the cache.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" json:"http_addr"`

	// SocketPath is the local JSON-RPC socket. Empty means <data_dir>/chatsearch.sock.
	SocketPath string `yaml:"socket_path" json:"socket_path"`

	// AutoIndex starts a rebuild on serve when no index exists.
	AutoIndex bool `yaml:"auto_index" json:"auto_index"`
}

// WatchConfig configures automatic rebuilds on transcript changes.
type WatchConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Debounce coalesces bursts of writes (e.g. "2s").
	Debounce string `yaml:"debounce" json:"debounce"`

	// MinInterval is the minimum time between automatic rebuilds (e.g. "1m").
	MinInterval string `yaml:"min_interval" json:"min_interval"`
}

// LoggingConfig configures the rotating log file.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig creates a new Config with defaults.
func NewConfig() *Config {
	home := homeDir()
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			ProjectsDir: filepath.Join(home, ".claude", "projects"),
			DataDir:     filepath.Join(home, ".chatsearch"),
			Exclude:     []string{},
		},
		Store: StoreConfig{
			Backend:       "sqlite",
			BatchFiles:    50,
			MaxFileSizeMB: 256,
			SnippetTokens: 64,
		},
		Search: SearchConfig{
			DefaultLimit: 50,
			MaxLimit:     200,
			CacheSize:    256,
		},
		Server: ServerConfig{
			HTTPAddr:  "127.0.0.1:9000",
			AutoIndex: true,
		},
		Watch: WatchConfig{
			Enabled:     false,
			Debounce:    "2s",
			MinInterval: "1m",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir()
	}
	return home
}

// GetUserConfigPath returns the user configuration file path:
//   - $XDG_CONFIG_HOME/chatsearch/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/chatsearch/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "chatsearch", "config.yaml")
	}
	return filepath.Join(homeDir(), ".config", "chatsearch", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	info, err := os.Stat(GetUserConfigPath())
	return err == nil && !info.IsDir()
}

// Load builds the configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/chatsearch/config.yaml)
//  3. explicitPath, if non-empty (must exist)
//  4. Environment variables (CHATSEARCH_*)
func Load(explicitPath string) (*Config, error) {
	cfg := NewConfig()

	if UserConfigExists() {
		if err := cfg.loadYAML(GetUserConfigPath()); err != nil {
			return nil, err
		}
	}

	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return nil, errors.New(errors.ErrCodeConfigNotFound,
				fmt.Sprintf("config file not found: %s", explicitPath), err)
		}
		if err := cfg.loadYAML(explicitPath); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML decodes path over the current values, so keys absent from the
// file keep their previous value.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.New(errors.ErrCodeConfigNotFound,
			fmt.Sprintf("failed to read config file %s", path), err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err).
			WithSuggestion("check the YAML syntax, or run 'chatsearch config init --force' to regenerate it")
	}
	return nil
}

// applyEnvOverrides applies CHATSEARCH_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) {
		if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
			*dst = v
		}
	}

	setString("CHATSEARCH_PROJECTS_DIR", &c.Paths.ProjectsDir)
	setString("CHATSEARCH_DATA_DIR", &c.Paths.DataDir)
	setString("CHATSEARCH_BACKEND", &c.Store.Backend)
	setString("CHATSEARCH_HTTP_ADDR", &c.Server.HTTPAddr)
	setString("CHATSEARCH_SOCKET", &c.Server.SocketPath)
	setString("CHATSEARCH_LOG_LEVEL", &c.Logging.Level)
	setInt("CHATSEARCH_DEFAULT_LIMIT", &c.Search.DefaultLimit)
	setInt("CHATSEARCH_CACHE_SIZE", &c.Search.CacheSize)
	setBool("CHATSEARCH_AUTO_INDEX", &c.Server.AutoIndex)
	setBool("CHATSEARCH_WATCH", &c.Watch.Enabled)
}

// expandPaths resolves "~/" prefixes.
func (c *Config) expandPaths() {
	c.Paths.ProjectsDir = ExpandHome(c.Paths.ProjectsDir)
	c.Paths.DataDir = ExpandHome(c.Paths.DataDir)
	c.Server.SocketPath = ExpandHome(c.Server.SocketPath)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" {
		return homeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.ConfigError(fmt.Sprintf(format, args...), nil)
	}

	switch strings.ToLower(c.Store.Backend) {
	case "sqlite", "bleve":
	default:
		return invalid("store.backend must be 'sqlite' or 'bleve', got %q", c.Store.Backend)
	}
	if c.Store.BatchFiles <= 0 {
		return invalid("store.batch_files must be positive, got %d", c.Store.BatchFiles)
	}
	if c.Store.MaxFileSizeMB < 0 {
		return invalid("store.max_file_size_mb must be non-negative, got %d", c.Store.MaxFileSizeMB)
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxLimit <= 0 {
		return invalid("search limits must be positive")
	}
	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return invalid("search.default_limit (%d) exceeds search.max_limit (%d)",
			c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	if c.Paths.ProjectsDir == "" || c.Paths.DataDir == "" {
		return invalid("paths.projects_dir and paths.data_dir are required")
	}
	if _, err := parseDuration("watch.debounce", c.Watch.Debounce); err != nil {
		return err
	}
	if _, err := parseDuration("watch.min_interval", c.Watch.MinInterval); err != nil {
		return err
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("logging.level must be 'debug', 'info', 'warn', or 'error', got %q", c.Logging.Level)
	}
	return nil
}

func parseDuration(field, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, errors.ConfigError(fmt.Sprintf("%s must be a duration like \"2s\", got %q", field, v), err)
	}
	return d, nil
}

// DebounceDuration returns watch.debounce as a duration.
func (c *Config) DebounceDuration() time.Duration {
	d, _ := parseDuration("watch.debounce", c.Watch.Debounce)
	return d
}

// MinIntervalDuration returns watch.min_interval as a duration.
func (c *Config) MinIntervalDuration() time.Duration {
	d, _ := parseDuration("watch.min_interval", c.Watch.MinInterval)
	return d
}

// MaxFileSize returns store.max_file_size_mb in bytes.
func (c *Config) MaxFileSize() int64 {
	return int64(c.Store.MaxFileSizeMB) << 20
}

// SocketPath returns the JSON-RPC socket location.
func (c *Config) SocketPath() string {
	if c.Server.SocketPath != "" {
		return c.Server.SocketPath
	}
	return filepath.Join(c.Paths.DataDir, "chatsearch.sock")
}

// PIDPath returns the serve PID file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "chatsearch.pid")
}

// LogDir returns the log directory.
func (c *Config) LogDir() string {
	return filepath.Join(c.Paths.DataDir, "logs")
}

// WriteYAML writes the configuration to a YAML file, creating parent
// directories.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
