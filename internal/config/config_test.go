package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 9120, cfg.Server.Port)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 10*time.Second, cfg.Search.RepoTimeout)
	assert.Equal(t, int64(1024*1024), cfg.Index.MaxFileSize)
	assert.Empty(t, cfg.Search.AllowedRepositories)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
		{"bad logging format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"zero max file size", func(c *Config) { c.Index.MaxFileSize = 0 }, true},
		{"oversized max file size", func(c *Config) { c.Index.MaxFileSize = 20 * 1024 * 1024 }, true},
		{"negative keep last", func(c *Config) { c.Index.ArtifactKeepLast = -1 }, true},
		{"zero repo timeout", func(c *Config) { c.Search.RepoTimeout = 0 }, true},
		{"zero concurrency", func(c *Config) { c.Search.MaxConcurrency = 0 }, true},
		{"telemetry without endpoint", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Endpoint = ""
		}, true},
		{"telemetry bad protocol", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Protocol = "udp"
		}, true},
		{"watcher needs debounce", func(c *Config) {
			c.Watcher.Enabled = true
			c.Watcher.Debounce = 0
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadFromBytes(t *testing.T) {
	yaml := []byte(`
server:
  http_port: 8099
logging:
  level: debug
  format: console
search:
  repo_timeout: 3s
  allowed_repositories:
    - abc123
    - def456
index:
  exclude_patterns:
    - "*.min.js"
    - "vendor/**"
`)

	cfg, err := LoadFromBytes(yaml)
	require.NoError(t, err)

	assert.Equal(t, 8099, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, 3*time.Second, cfg.Search.RepoTimeout)
	assert.Equal(t, []string{"abc123", "def456"}, cfg.Search.AllowedRepositories)
	assert.Equal(t, []string{"*.min.js", "vendor/**"}, cfg.Index.ExcludePatterns)

	// Unset sections keep defaults.
	assert.Equal(t, 4, cfg.Search.MaxConcurrency)
	assert.True(t, cfg.Index.ArtifactsEnabled)
}

func TestLoadFromBytes_Invalid(t *testing.T) {
	_, err := LoadFromBytes([]byte("server:\n  http_port: -4\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = LoadFromBytes([]byte(":::not yaml"))
	assert.Error(t, err)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir() + "/nope/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, 9120, cfg.Server.Port)
}
