// Package config provides configuration loading for indexd.
//
// Configuration is loaded from a YAML file and environment variables with
// sensible defaults. One Config value is constructed at process start and
// passed by reference into every service constructor; there are no ambient
// mutable globals.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrInvalidConfig indicates a configuration value failed validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the complete indexd configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Registry  RegistryConfig  `koanf:"registry"`
	Index     IndexConfig     `koanf:"index"`
	Search    SearchConfig    `koanf:"search"`
	Watcher   WatcherConfig   `koanf:"watcher"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger construction settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // "json" or "console"
}

// TelemetryConfig holds OpenTelemetry exporter configuration.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
	Endpoint    string `koanf:"endpoint"`
	Protocol    string `koanf:"protocol"` // "grpc" or "http"
	Insecure    bool   `koanf:"insecure"`
}

// RegistryConfig holds repository registry storage settings.
type RegistryConfig struct {
	// BasePath is the root directory for indexd state: the registry
	// document, per-repository indexes, and commit artifacts.
	// Default: ~/.config/indexd
	BasePath string `koanf:"base_path"`
}

// IndexConfig holds indexing behaviour settings.
type IndexConfig struct {
	// ExcludePatterns are glob patterns matched against relative paths
	// and basenames; matching files are never indexed.
	ExcludePatterns []string `koanf:"exclude_patterns"`

	// MaxFileSize is the largest file, in bytes, that will be indexed.
	MaxFileSize int64 `koanf:"max_file_size"`

	// ArtifactKeepLast is how many commit artifacts to retain per
	// repository when pruning after a sync. 0 disables pruning.
	ArtifactKeepLast int `koanf:"artifact_keep_last"`

	// ArtifactsEnabled controls whether a commit artifact is created
	// after every index-changing sync.
	ArtifactsEnabled bool `koanf:"artifacts_enabled"`

	// SyncConcurrency bounds how many repositories sync-all touches
	// at once.
	SyncConcurrency int `koanf:"sync_concurrency"`
}

// SearchConfig holds federated search settings.
type SearchConfig struct {
	// RepoTimeout bounds each per-repository search task.
	RepoTimeout time.Duration `koanf:"repo_timeout"`

	// MaxConcurrency bounds how many repositories are searched at once.
	MaxConcurrency int `koanf:"max_concurrency"`

	// DefaultLimit is the result cap applied when a caller passes none.
	DefaultLimit int `koanf:"default_limit"`

	// AllowedRepositories, when non-empty, is an allow-list of repository
	// ids that federated search may touch. Empty means every registered
	// repository is authorized.
	AllowedRepositories []string `koanf:"allowed_repositories"`
}

// WatcherConfig holds auto-sync watcher settings.
type WatcherConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Debounce time.Duration `koanf:"debounce"`
}

// NewDefaultConfig returns a Config populated with defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            9120,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "indexd",
			Endpoint:    "localhost:4317",
			Protocol:    "grpc",
			Insecure:    true,
		},
		Index: IndexConfig{
			MaxFileSize:      1024 * 1024,
			ArtifactKeepLast: 5,
			ArtifactsEnabled: true,
			SyncConcurrency:  2,
		},
		Search: SearchConfig{
			RepoTimeout:    10 * time.Second,
			MaxConcurrency: 4,
			DefaultLimit:   50,
		},
		Watcher: WatcherConfig{
			Enabled:  false,
			Debounce: 2 * time.Second,
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: shutdown timeout must be positive", ErrInvalidConfig)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: logging format %q (want json or console)", ErrInvalidConfig, c.Logging.Format)
	}
	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return fmt.Errorf("%w: telemetry endpoint is required when telemetry is enabled", ErrInvalidConfig)
		}
		switch c.Telemetry.Protocol {
		case "grpc", "http":
		default:
			return fmt.Errorf("%w: telemetry protocol %q (want grpc or http)", ErrInvalidConfig, c.Telemetry.Protocol)
		}
	}
	if c.Index.MaxFileSize <= 0 {
		return fmt.Errorf("%w: index max_file_size must be positive", ErrInvalidConfig)
	}
	if c.Index.MaxFileSize > 10*1024*1024 {
		return fmt.Errorf("%w: index max_file_size cannot exceed 10MB", ErrInvalidConfig)
	}
	if c.Index.ArtifactKeepLast < 0 {
		return fmt.Errorf("%w: artifact_keep_last cannot be negative", ErrInvalidConfig)
	}
	if c.Index.SyncConcurrency <= 0 {
		return fmt.Errorf("%w: index sync_concurrency must be positive", ErrInvalidConfig)
	}
	if c.Search.RepoTimeout <= 0 {
		return fmt.Errorf("%w: search repo_timeout must be positive", ErrInvalidConfig)
	}
	if c.Search.MaxConcurrency <= 0 {
		return fmt.Errorf("%w: search max_concurrency must be positive", ErrInvalidConfig)
	}
	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("%w: search default_limit must be positive", ErrInvalidConfig)
	}
	if c.Watcher.Enabled && c.Watcher.Debounce <= 0 {
		return fmt.Errorf("%w: watcher debounce must be positive", ErrInvalidConfig)
	}
	return nil
}

// ResolveBasePath returns the state directory, expanding the default when
// no explicit base_path is configured.
func (c *Config) ResolveBasePath() (string, error) {
	if c.Registry.BasePath != "" {
		return c.Registry.BasePath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "indexd"), nil
}
