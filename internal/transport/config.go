package transport

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the transport server configuration.
type Config struct {
	Addr                 string        `yaml:"addr"`
	Multicore            bool          `yaml:"multicore"`
	NumEventLoop         int           `yaml:"num_event_loop"`
	ReusePort            bool          `yaml:"reuse_port"`
	IdleTimeout          time.Duration `yaml:"idle_timeout"`
	MaxConcurrentStreams uint32        `yaml:"max_concurrent_streams"`
	MaxFrameSize         uint32        `yaml:"max_frame_size"`
	HeaderTableSize      uint32        `yaml:"header_table_size"`
	InitialWindowSize    uint32        `yaml:"initial_window_size"`
	CompressMinSize      int           `yaml:"compress_min_size"`
	Logger               *log.Logger   `yaml:"-"`
}

// newSilentLogger creates a logger that discards all output.
func newSilentLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Addr:                 ":8080",
		Multicore:            true,
		ReusePort:            true,
		IdleTimeout:          60 * time.Second,
		MaxConcurrentStreams: 100,
		MaxFrameSize:         16384,
		HeaderTableSize:      4096,
		InitialWindowSize:    65535,
		CompressMinSize:      1024,
		Logger:               newSilentLogger(),
	}
}

// Validate checks and normalizes the configuration values.
func (c *Config) Validate() error {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.MaxFrameSize < 16384 {
		c.MaxFrameSize = 16384
	}
	if c.MaxFrameSize > 1<<24-1 {
		c.MaxFrameSize = 1<<24 - 1
	}
	if c.InitialWindowSize == 0 {
		c.InitialWindowSize = 65535
	}
	if c.InitialWindowSize > 1<<31-1 {
		return fmt.Errorf("initial window size %d exceeds 2^31-1", c.InitialWindowSize)
	}
	if c.MaxConcurrentStreams == 0 {
		c.MaxConcurrentStreams = 100
	}
	if c.CompressMinSize <= 0 {
		c.CompressMinSize = 1024
	}
	if c.Logger == nil {
		c.Logger = newSilentLogger()
	}
	return nil
}

// LoadConfig reads a YAML config file and overlays it on the defaults.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("parse config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}
