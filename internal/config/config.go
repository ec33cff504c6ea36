// Package config loads node configuration from YAML files and MEDSYNC_*
// environment variables. Environment values override the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables
const (
	EnvAddr         = "MEDSYNC_ADDR"
	EnvNodeID       = "MEDSYNC_NODE_ID"
	EnvDBPath       = "MEDSYNC_DB_PATH"
	EnvBootstrap    = "MEDSYNC_BOOTSTRAP"
	EnvLogLevel     = "MEDSYNC_LOG_LEVEL"
	EnvLogFormat    = "MEDSYNC_LOG_FORMAT"
	EnvCommandRate  = "MEDSYNC_COMMAND_RATE"
	EnvServerURL    = "MEDSYNC_SERVER_URL"
	EnvCachePath    = "MEDSYNC_CACHE_PATH"
	EnvHTTPTimeout  = "MEDSYNC_HTTP_TIMEOUT"
	EnvReconnectMax = "MEDSYNC_RECONNECT_MAX"
)

// ErrInvalidConfig is wrapped by every validation error
var ErrInvalidConfig = errors.New("invalid config")

// Duration is a time.Duration written as "10s" in YAML
type Duration time.Duration

// UnmarshalYAML parses a Go duration string
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration as a string
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// LogConfig configures slog output
type LogConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // text|json
}

// ServerConfig configures the authoritative node
type ServerConfig struct {
	Log               LogConfig `yaml:"log"`
	NodeID            string    `yaml:"node_id"`
	Addr              string    `yaml:"addr"`
	DBPath            string    `yaml:"db_path"`
	Bootstrap         string    `yaml:"bootstrap"` // YAML со стартовым списком записей, пусто = не загружать
	CommandRateLimit  int       `yaml:"command_rate_limit"`
	CommandRateWindow Duration  `yaml:"command_rate_window"`
	ShutdownTimeout   Duration  `yaml:"shutdown_timeout"`
}

// ClientConfig configures the replica
type ClientConfig struct {
	Log          LogConfig `yaml:"log"`
	ServerURL    string    `yaml:"server_url"`
	CachePath    string    `yaml:"cache_path"`
	HTTPTimeout  Duration  `yaml:"http_timeout"`
	ReconnectMin Duration  `yaml:"reconnect_min"`
	ReconnectMax Duration  `yaml:"reconnect_max"`
}

// DefaultServerConfig returns the authoritative node defaults
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Log:               LogConfig{Level: "info", Format: "text"},
		Addr:              ":8080",
		DBPath:            "medsync.db",
		CommandRateLimit:  60,
		CommandRateWindow: Duration(time.Minute),
		ShutdownTimeout:   Duration(10 * time.Second),
	}
}

// DefaultClientConfig returns the replica defaults
func DefaultClientConfig() *ClientConfig {
	cachePath := "medsync-replica.db"
	if home, err := os.UserHomeDir(); err == nil {
		cachePath = filepath.Join(home, ".medsync", "replica.db")
	}

	return &ClientConfig{
		Log:          LogConfig{Level: "warn", Format: "text"},
		ServerURL:    "http://localhost:8080",
		CachePath:    cachePath,
		HTTPTimeout:  Duration(10 * time.Second),
		ReconnectMin: Duration(500 * time.Millisecond),
		ReconnectMax: Duration(30 * time.Second),
	}
}

// LoadServerConfig reads path (optional) over the defaults and applies env overrides
func LoadServerConfig(path string) (*ServerConfig, error) {
	cfg := DefaultServerConfig()
	if err := decodeFile(path, cfg); err != nil {
		return nil, err
	}

	overrideString(EnvAddr, &cfg.Addr)
	overrideString(EnvNodeID, &cfg.NodeID)
	overrideString(EnvDBPath, &cfg.DBPath)
	overrideString(EnvBootstrap, &cfg.Bootstrap)
	overrideString(EnvLogLevel, &cfg.Log.Level)
	overrideString(EnvLogFormat, &cfg.Log.Format)
	if err := overrideInt(EnvCommandRate, &cfg.CommandRateLimit); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the server configuration
func (c *ServerConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr is required", ErrInvalidConfig)
	}
	if c.DBPath == "" {
		return fmt.Errorf("%w: db_path is required", ErrInvalidConfig)
	}
	if c.CommandRateLimit < 0 {
		return fmt.Errorf("%w: command_rate_limit must not be negative", ErrInvalidConfig)
	}
	if c.CommandRateLimit > 0 && c.CommandRateWindow <= 0 {
		return fmt.Errorf("%w: command_rate_window must be positive", ErrInvalidConfig)
	}
	return c.Log.validate()
}

// LoadClientConfig reads path (optional) over the defaults and applies env overrides
func LoadClientConfig(path string) (*ClientConfig, error) {
	cfg := DefaultClientConfig()
	if err := decodeFile(path, cfg); err != nil {
		return nil, err
	}

	overrideString(EnvServerURL, &cfg.ServerURL)
	overrideString(EnvCachePath, &cfg.CachePath)
	overrideString(EnvLogLevel, &cfg.Log.Level)
	overrideString(EnvLogFormat, &cfg.Log.Format)
	if err := overrideDuration(EnvHTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return nil, err
	}
	if err := overrideDuration(EnvReconnectMax, &cfg.ReconnectMax); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the client configuration
func (c *ClientConfig) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: server_url must be an http(s) URL, got %q", ErrInvalidConfig, c.ServerURL)
	}
	if c.CachePath == "" {
		return fmt.Errorf("%w: cache_path is required", ErrInvalidConfig)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("%w: http_timeout must be positive", ErrInvalidConfig)
	}
	if c.ReconnectMin <= 0 || c.ReconnectMax < c.ReconnectMin {
		return fmt.Errorf("%w: need 0 < reconnect_min <= reconnect_max", ErrInvalidConfig)
	}
	return c.Log.validate()
}

func (l LogConfig) validate() error {
	if _, err := ParseLevel(l.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if l.Format != "text" && l.Format != "json" {
		return fmt.Errorf("%w: log format must be text or json, got %q", ErrInvalidConfig, l.Format)
	}
	return nil
}

// decodeFile читает YAML в dst; неизвестные поля считаются ошибкой
func decodeFile(path string, dst any) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

func overrideString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func overrideInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, key, v)
	}
	*dst = n
	return nil
}

func overrideDuration(key string, dst *Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not a duration", ErrInvalidConfig, key, v)
	}
	*dst = Duration(d)
	return nil
}
