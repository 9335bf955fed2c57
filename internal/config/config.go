package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "5s" parse.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration for the relay.
type Config struct {
	ListenAddr string          `yaml:"listen_addr"`
	RedisAddr  string          `yaml:"redis_addr"`
	WebSocket  WebSocketConfig `yaml:"websocket"`
	Journal    JournalConfig   `yaml:"journal"`
}

// WebSocketConfig tunes the transport layer.
type WebSocketConfig struct {
	SendBuffer   int      `yaml:"send_buffer"`
	WriteTimeout Duration `yaml:"write_timeout"`
	MaxConns     int      `yaml:"max_conns"`
	// IdleTimeout force-closes connections that have been silent this long,
	// unregistering their users through the normal disconnect path.
	// 0 keeps the historical behavior: stale registrations live forever.
	IdleTimeout Duration `yaml:"idle_timeout"`
}

// JournalConfig tunes the operator event journal.
type JournalConfig struct {
	MaxEvents int `yaml:"max_events"`
}

const (
	defaultListenAddr   = ":8080"
	defaultSendBuffer   = 16
	defaultWriteTimeout = Duration(5 * time.Second)
	defaultMaxEvents    = 1000
)

// Load reads a YAML config file, expands ${VAR} environment variables and
// applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// FromEnv builds a config from environment variables alone, for deployments
// without a config file.
func FromEnv() *Config {
	cfg := &Config{
		ListenAddr: os.Getenv("LISTEN_ADDR"),
		RedisAddr:  os.Getenv("REDIS_ADDR"),
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}
	if c.WebSocket.SendBuffer == 0 {
		c.WebSocket.SendBuffer = defaultSendBuffer
	}
	if c.WebSocket.WriteTimeout == 0 {
		c.WebSocket.WriteTimeout = defaultWriteTimeout
	}
	if c.Journal.MaxEvents == 0 {
		c.Journal.MaxEvents = defaultMaxEvents
	}
}

// Validate rejects values that would misbehave at runtime.
func (c *Config) Validate() error {
	if c.WebSocket.SendBuffer < 0 {
		return fmt.Errorf("websocket.send_buffer must not be negative")
	}
	if c.WebSocket.WriteTimeout < 0 {
		return fmt.Errorf("websocket.write_timeout must not be negative")
	}
	if c.WebSocket.MaxConns < 0 {
		return fmt.Errorf("websocket.max_conns must not be negative")
	}
	if c.WebSocket.IdleTimeout < 0 {
		return fmt.Errorf("websocket.idle_timeout must not be negative")
	}
	if c.Journal.MaxEvents < 0 {
		return fmt.Errorf("journal.max_events must not be negative")
	}
	return nil
}
