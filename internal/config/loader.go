package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// envPrefix namespaces indexd environment variables.
	envPrefix = "INDEXD_"

	maxConfigFileSize = 1024 * 1024
)

// Load loads configuration with the following precedence, highest first:
//
//  1. Environment variables (INDEXD_SERVER_HTTP_PORT, INDEXD_LOGGING_LEVEL, ...)
//  2. YAML config file (default: ~/.config/indexd/config.yaml)
//  3. Hardcoded defaults
//
// A missing config file is not an error; defaults plus environment apply.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "indexd", "config.yaml")
	}

	var fileBytes []byte
	if info, err := os.Stat(configPath); err == nil {
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("%w: config file %s exceeds %d bytes", ErrInvalidConfig, configPath, maxConfigFileSize)
		}
		fileBytes, err = os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return loadFromBytes(fileBytes, true)
}

// LoadFromBytes parses configuration from raw YAML, applying defaults but
// not the environment. Intended for tests and embedded use.
func LoadFromBytes(data []byte) (*Config, error) {
	return loadFromBytes(data, false)
}

func loadFromBytes(data []byte, withEnv bool) (*Config, error) {
	k := koanf.New(".")

	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing yaml config: %w", err)
		}
	}

	if withEnv {
		// INDEXD_SERVER_HTTP_PORT -> server.http_port. Only the first
		// underscore separates section from key; field names keep theirs.
		err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
			key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
			return strings.Replace(key, "_", ".", 1)
		}), nil)
		if err != nil {
			return nil, fmt.Errorf("loading environment: %w", err)
		}
	}

	cfg := NewDefaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
