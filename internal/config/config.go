// Package config loads chatwidget settings from a JSONC or YAML file.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Endpoint EndpointConfig `json:"endpoint" yaml:"endpoint"`
	Client   ClientConfig   `json:"client" yaml:"client"`
	Server   ServerConfig   `json:"server" yaml:"server"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

// EndpointConfig describes the remote chat endpoint.
type EndpointConfig struct {
	URL         string            `json:"url" yaml:"url"`
	Protocol    string            `json:"protocol" yaml:"protocol"`                             // "jsonl" or "prefixed"
	ContentPath string            `json:"content_path,omitempty" yaml:"content_path,omitempty"` // jsonl only
	Prefix      string            `json:"prefix,omitempty" yaml:"prefix,omitempty"`             // prefixed only
	Timeout     Duration          `json:"timeout,omitempty" yaml:"timeout,omitempty"`           // 0 = none
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// ClientConfig holds client-side behaviour.
type ClientConfig struct {
	Agent        bool `json:"agent" yaml:"agent"`
	ChunkSize    int  `json:"chunk_size" yaml:"chunk_size"`
	MaxImageSize int  `json:"max_image_size" yaml:"max_image_size"`
}

// ServerConfig configures the development server.
type ServerConfig struct {
	Host       string   `json:"host" yaml:"host"`
	Port       int      `json:"port" yaml:"port"`
	ChunkSize  int      `json:"chunk_size" yaml:"chunk_size"`
	ChunkDelay Duration `json:"chunk_delay" yaml:"chunk_delay"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level string `json:"level" yaml:"level"`
	File  string `json:"file,omitempty" yaml:"file,omitempty"` // TUI log file
}

// Duration wraps time.Duration for JSON and YAML unmarshaling.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\": %w", err)
	}
	return d.parse(s)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.parse(value.Value)
}

func (d *Duration) parse(s string) error {
	if s == "" {
		*d = 0
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}
