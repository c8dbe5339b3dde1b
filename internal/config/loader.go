package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	"github.com/dohr-michael/chatwidget/internal/protocol"
)

var envTemplateRe = regexp.MustCompile(`\$\{\{\s*\.Env\.(\w+)\s*\}\}`)

// Load reads a config file, expands ${{ .Env.VAR }} templates, unmarshals it
// and applies defaults. Files ending in .yaml or .yml are parsed as YAML,
// anything else as JSONC.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand before parsing, templates live inside string values.
	expanded := []byte(expandEnvTemplates(string(data)))

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal yaml config: %w", err)
		}
	default:
		std, err := hujson.Standardize(expanded)
		if err != nil {
			return nil, fmt.Errorf("parse jsonc config: %w", err)
		}
		if err := json.Unmarshal(std, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault behaves like Load but returns defaults when the file does not
// exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("config not found, using defaults", "path", path)
		return Default(), nil
	}
	return cfg, err
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate checks values that defaults cannot fix.
func (c *Config) Validate() error {
	if _, err := protocol.ByName(c.Endpoint.Protocol, protocol.Options{}); err != nil {
		return fmt.Errorf("endpoint.protocol: %w", err)
	}
	if !strings.HasPrefix(c.Endpoint.URL, "http://") && !strings.HasPrefix(c.Endpoint.URL, "https://") {
		return fmt.Errorf("endpoint.url: %q is not an http(s) URL", c.Endpoint.URL)
	}
	return nil
}

// expandEnvTemplates replaces ${{ .Env.VAR }} with the env var value.
func expandEnvTemplates(s string) string {
	return envTemplateRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envTemplateRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// applyDefaults fills in zero-value fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ChunkSize == 0 {
		cfg.Server.ChunkSize = 50
	}
	if cfg.Server.ChunkDelay == 0 {
		cfg.Server.ChunkDelay = Duration(100 * time.Millisecond)
	}

	if cfg.Endpoint.Protocol == "" {
		cfg.Endpoint.Protocol = protocol.NameJSONLines
	}
	if cfg.Endpoint.URL == "" {
		cfg.Endpoint.URL = DefaultEndpointURL(cfg.Endpoint.Protocol, cfg.Server.Port)
	}

	if cfg.Client.ChunkSize == 0 {
		cfg.Client.ChunkSize = 4096
	}
	if cfg.Client.MaxImageSize == 0 {
		cfg.Client.MaxImageSize = 10 << 20
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.File == "" {
		cfg.Log.File = LogPath()
	}
}

// DefaultEndpointURL points at the dev server path for the given protocol.
func DefaultEndpointURL(protocolName string, port int) string {
	path := protocol.JSONLines{}.DefaultPath()
	if p, err := protocol.ByName(protocolName, protocol.Options{}); err == nil {
		path = p.DefaultPath()
	}
	return fmt.Sprintf("http://localhost:%d%s", port, path)
}

// ParseLevel maps a config level name to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
