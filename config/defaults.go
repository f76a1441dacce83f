// Package config provides configuration defaults and utilities
// for the ponylog daemon.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via config.yaml or command line flags.
package config

import "time"

// =============================================================================
// Acquisition Defaults
// =============================================================================

const (
	// DefaultSamplePeriod is the acquisition task period (100 Hz equivalent
	// hardware rates are decimated by the drivers; the pipeline runs at 10 Hz).
	// Override via config: sampling.period
	DefaultSamplePeriod = 100 * time.Millisecond

	// DefaultBufferCapacity is the sample ring buffer capacity.
	// Sized to absorb the worst-case flush latency of the session writer,
	// not to buffer indefinitely.
	// Override via config: sampling.buffer_capacity
	DefaultBufferCapacity = 2048

	// DefaultWatchdogFeedInterval is how often the acquisition task feeds
	// the hardware watchdog. Zero disables feeding.
	// Override via config: watchdog.feed_interval
	DefaultWatchdogFeedInterval = time.Second
)

// =============================================================================
// Logging Pipeline Defaults
// =============================================================================

const (
	// DefaultLogPeriod is the logging task period (buffer drain + write).
	// Override via config: logging.period
	DefaultLogPeriod = 100 * time.Millisecond

	// DefaultFlushFrames is the number of frames accumulated before a block
	// is written. 16 frames is 1 KiB of frame data per block.
	// Override via config: logging.flush_frames
	DefaultFlushFrames = 16

	// DefaultFlushInterval is the host-driven periodic flush tick. A flush
	// is forced even if the frame buffer is not full.
	// Override via config: logging.flush_interval
	DefaultFlushInterval = 5 * time.Second

	// DefaultCompression enables LZ4 block compression of session files.
	// Override via config: logging.compression
	DefaultCompression = true
)

// =============================================================================
// Storage Quota Defaults
// =============================================================================

const (
	// DefaultQuotaInterval is the storage quota check period.
	// Eviction is deliberately slow-path work, independent of acquisition.
	// Override via config: storage.check_interval
	DefaultQuotaInterval = 30 * time.Second

	// DefaultHighWaterMark is the usage fraction that triggers eviction.
	// Override via config: storage.high_water_mark
	DefaultHighWaterMark = 0.90

	// DefaultLowWaterMark is the usage fraction at which eviction stops.
	// Must be below the high water mark (hysteresis avoids churn).
	// Override via config: storage.low_water_mark
	DefaultLowWaterMark = 0.75
)

// =============================================================================
// Telemetry Defaults
// =============================================================================

const (
	// DefaultPublishPeriod is the telemetry publication task period.
	// Override via config: sampling.publish_period
	DefaultPublishPeriod = 100 * time.Millisecond

	// DefaultSatelliteSweepInterval is how often the satellite tracker
	// evicts entries not refreshed by a full constellation update cycle.
	// Override via config: sampling.satellite_sweep_interval
	DefaultSatelliteSweepInterval = 60 * time.Second
)

// =============================================================================
// Control Server Defaults
// =============================================================================

const (
	// DefaultControlAddress is the default control socket listen address.
	// The control plane is local-only by default.
	// Override via config: control.listen
	DefaultControlAddress = "127.0.0.1:9461"

	// DefaultMaxRequestSize limits a single control request line to prevent
	// OOM from a misbehaving client.
	DefaultMaxRequestSize = 1 * 1024 * 1024
)

// =============================================================================
// Shutdown Defaults
// =============================================================================

const (
	// DefaultDrainTimeout is how long to wait for tasks to finish their
	// current cycle during shutdown. After this timeout the remaining
	// tasks are abandoned.
	DefaultDrainTimeout = 10 * time.Second
)
