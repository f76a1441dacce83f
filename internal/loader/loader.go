// Package loader handles configuration file loading and validation.
package loader

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openpony/ponylog/config"
)

// Config is the daemon configuration.
type Config struct {
	// DataDir is where session files live.
	DataDir string `yaml:"data_dir"`

	Sampling SamplingConfig `yaml:"sampling"`
	Logging  LoggingConfig  `yaml:"logging"`
	Storage  StorageConfig  `yaml:"storage"`
	Control  ControlConfig  `yaml:"control"`
	Watchdog WatchdogConfig `yaml:"watchdog"`
	Log      LogConfig      `yaml:"log"`
}

// SamplingConfig configures the acquisition task.
type SamplingConfig struct {
	// Period between sensor reads.
	Period time.Duration `yaml:"period"`

	// BufferCapacity is the sample ring size.
	BufferCapacity int `yaml:"buffer_capacity"`

	// PublishPeriod is the snapshot publication cadence.
	PublishPeriod time.Duration `yaml:"publish_period"`

	// SatelliteSweepInterval is the constellation refresh cadence.
	SatelliteSweepInterval time.Duration `yaml:"satellite_sweep_interval"`

	// Simulate replaces hardware drivers with simulated ones.
	Simulate bool `yaml:"simulate"`
}

// LoggingConfig configures the session writer path.
type LoggingConfig struct {
	// Period between ring drains.
	Period time.Duration `yaml:"period"`

	// FlushFrames per block.
	FlushFrames int `yaml:"flush_frames"`

	// FlushInterval forces a block to disk on a wall-clock cadence.
	FlushInterval time.Duration `yaml:"flush_interval"`

	// Compression enables LZ4 block compression.
	Compression *bool `yaml:"compression"`

	// AutoStart opens a session as soon as the daemon is up.
	AutoStart bool `yaml:"auto_start"`
}

// StorageConfig configures quota enforcement.
type StorageConfig struct {
	// CheckInterval between quota passes.
	CheckInterval time.Duration `yaml:"check_interval"`

	// HighWaterMark usage fraction that triggers eviction.
	HighWaterMark float64 `yaml:"high_water_mark"`

	// LowWaterMark usage fraction eviction drives down to.
	LowWaterMark float64 `yaml:"low_water_mark"`
}

// ControlConfig configures the control socket.
type ControlConfig struct {
	// Listen address, loopback by default.
	Listen string `yaml:"listen"`
}

// WatchdogConfig configures hardware watchdog feeding.
type WatchdogConfig struct {
	// Device path, e.g. /dev/watchdog. Empty disables feeding.
	Device string `yaml:"device"`

	// FeedInterval between pets.
	FeedInterval time.Duration `yaml:"feed_interval"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	compression := config.DefaultCompression
	return &Config{
		DataDir: "/var/lib/ponylog",
		Sampling: SamplingConfig{
			Period:                 config.DefaultSamplePeriod,
			BufferCapacity:         config.DefaultBufferCapacity,
			PublishPeriod:          config.DefaultPublishPeriod,
			SatelliteSweepInterval: config.DefaultSatelliteSweepInterval,
		},
		Logging: LoggingConfig{
			Period:        config.DefaultLogPeriod,
			FlushFrames:   config.DefaultFlushFrames,
			FlushInterval: config.DefaultFlushInterval,
			Compression:   &compression,
		},
		Storage: StorageConfig{
			CheckInterval: config.DefaultQuotaInterval,
			HighWaterMark: config.DefaultHighWaterMark,
			LowWaterMark:  config.DefaultLowWaterMark,
		},
		Control: ControlConfig{
			Listen: config.DefaultControlAddress,
		},
		Watchdog: WatchdogConfig{
			FeedInterval: config.DefaultWatchdogFeedInterval,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML configuration file over the defaults. Environment
// variables in the file are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func Validate(cfg *Config) error {
	if cfg.DataDir == "" {
		return fmt.Errorf("data_dir cannot be empty")
	}
	if cfg.Sampling.Period <= 0 {
		return fmt.Errorf("sampling.period must be positive, got %v", cfg.Sampling.Period)
	}
	if cfg.Sampling.BufferCapacity <= 0 {
		return fmt.Errorf("sampling.buffer_capacity must be positive, got %d", cfg.Sampling.BufferCapacity)
	}
	if cfg.Logging.Period <= 0 {
		return fmt.Errorf("logging.period must be positive, got %v", cfg.Logging.Period)
	}
	if cfg.Logging.FlushFrames <= 0 {
		return fmt.Errorf("logging.flush_frames must be positive, got %d", cfg.Logging.FlushFrames)
	}
	if cfg.Storage.HighWaterMark <= 0 || cfg.Storage.HighWaterMark > 1 {
		return fmt.Errorf("storage.high_water_mark must be in (0,1], got %v", cfg.Storage.HighWaterMark)
	}
	if cfg.Storage.LowWaterMark <= 0 || cfg.Storage.LowWaterMark >= cfg.Storage.HighWaterMark {
		return fmt.Errorf("storage.low_water_mark %v must be below high_water_mark %v",
			cfg.Storage.LowWaterMark, cfg.Storage.HighWaterMark)
	}
	if cfg.Control.Listen == "" {
		return fmt.Errorf("control.listen cannot be empty")
	}
	return nil
}

// CompressionEnabled resolves the tri-state compression flag.
func (c *Config) CompressionEnabled() bool {
	if c.Logging.Compression == nil {
		return config.DefaultCompression
	}
	return *c.Logging.Compression
}
