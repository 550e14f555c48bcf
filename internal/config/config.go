// Package config loads service settings from a yaml file.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oleksiiilienko/hostfacts/internal/wire"
)

// Admission modes.
const (
	// AcceptQueue runs one accept loop feeding a bounded handler pool.
	AcceptQueue = "queue"
	// AcceptShared runs Workers accept loops that serialize on a mutex.
	AcceptShared = "shared"
)

type Config struct {
	Bind        string        `yaml:"bind"`
	Port        int           `yaml:"port"`
	BufferSize  int           `yaml:"buffer_size"`
	Framing     string        `yaml:"framing"`
	AcceptMode  string        `yaml:"accept_mode"`
	Workers     int           `yaml:"workers"`
	MaxConns    int           `yaml:"max_conns"`
	QueueSize   int           `yaml:"queue_size"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	UTCOffset   time.Duration `yaml:"utc_offset"`
	AdminAddr   string        `yaml:"admin_addr"`
	LogLevel    string        `yaml:"log_level"`
}

const (
	defaultWorkers     = 5
	defaultMaxConns    = 128
	defaultQueueSize   = 64
	defaultIdleTimeout = 5 * time.Minute
	defaultOffset      = 3 * time.Hour
)

func baseDefaults() *Config {
	return &Config{
		Bind:        "0.0.0.0",
		Framing:     wire.FramingLength,
		AcceptMode:  AcceptQueue,
		Workers:     defaultWorkers,
		MaxConns:    defaultMaxConns,
		QueueSize:   defaultQueueSize,
		IdleTimeout: defaultIdleTimeout,
		UTCOffset:   defaultOffset,
		LogLevel:    "info",
	}
}

// MemoryDefaults are the settings of the memory-facts service.
func MemoryDefaults() *Config {
	cfg := baseDefaults()
	cfg.Port = 8080
	cfg.BufferSize = 1024
	cfg.AdminAddr = "127.0.0.1:9180"
	return cfg
}

// ProcessDefaults are the settings of the process-facts service.
func ProcessDefaults() *Config {
	cfg := baseDefaults()
	cfg.Port = 8081
	cfg.BufferSize = 2048
	cfg.AdminAddr = "127.0.0.1:9181"
	return cfg
}

// DefaultPath is ~/.hostfacts/<service>.yaml.
func DefaultPath(service string) string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".hostfacts", service+".yaml")
}

// Load reads path over a copy of defaults. A missing file yields the defaults.
// Zero numeric fields in the file fall back to the default value.
func Load(path string, defaults *Config) (*Config, error) {
	cfg := *defaults

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaults.Port
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = defaults.BufferSize
	}
	if cfg.Workers == 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.MaxConns == 0 {
		cfg.MaxConns = defaults.MaxConns
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.Framing == "" {
		cfg.Framing = defaults.Framing
	}
	if cfg.AcceptMode == "" {
		cfg.AcceptMode = defaults.AcceptMode
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.BufferSize < 16 {
		return fmt.Errorf("buffer_size %d too small", c.BufferSize)
	}
	if _, err := wire.ParseFraming(c.Framing); err != nil {
		return err
	}
	switch c.AcceptMode {
	case AcceptQueue, AcceptShared:
	default:
		return fmt.Errorf("unknown accept_mode %q (want %q or %q)", c.AcceptMode, AcceptQueue, AcceptShared)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.MaxConns < 1 || c.QueueSize < 1 {
		return fmt.Errorf("max_conns and queue_size must be positive")
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("idle_timeout must not be negative")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ListenAddr is the host:port the service socket binds to.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// ParseLevel maps a log_level value to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log_level %q", s)
	}
}
