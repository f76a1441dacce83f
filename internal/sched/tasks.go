package sched

import (
	"context"
	"time"

	"github.com/openpony/ponylog/config"
	"github.com/openpony/ponylog/internal/buffer"
	"github.com/openpony/ponylog/internal/quota"
	"github.com/openpony/ponylog/internal/sensors"
	"github.com/openpony/ponylog/internal/session"
	"github.com/openpony/ponylog/internal/stats"
	"github.com/openpony/ponylog/internal/telemetry"
)

// Sink receives the latest telemetry snapshot on the publication cadence.
// Implementations must not block for long; a slow sink delays only the
// publication task, never acquisition or logging.
type Sink interface {
	Publish(telemetry.Snapshot) error
}

// =============================================================================
// Acquisition
// =============================================================================

// AcquisitionTask samples the sensor suite on every tick, pushes the
// sample into the ring, publishes the latest state to the cell, and feeds
// the watchdog. This is the hot path; nothing here blocks.
func AcquisitionTask(
	suite *sensors.Suite,
	ring *buffer.Ring,
	cell *telemetry.Cell,
	wd Watchdog,
	period time.Duration,
	feedInterval time.Duration,
) Task {
	if feedInterval <= 0 {
		feedInterval = config.DefaultWatchdogFeedInterval
	}
	var lastFeed time.Time

	return Task{
		Name:   "acquisition",
		Period: period,
		Fn: func(ctx context.Context) error {
			now := time.Now()
			accel, gyro, fix := suite.Read()

			sample := telemetry.Sample{
				TimestampUs: now.UnixMicro(),
				Accel:       accel,
				GTotal:      accel.Magnitude(),
				Gyro:        gyro,
				Fix:         fix,
			}

			// A full ring drops the sample and counts it. Logging every
			// drop from the hot path would flood, so the count travels in
			// the snapshot instead.
			ring.Push(sample)

			cell.TryPublish(telemetry.Snapshot{
				Time:        now,
				TimestampUs: sample.TimestampUs,
				Accel:       accel,
				Gyro:        gyro,
				GTotal:      sample.GTotal,
				Fix:         fix,
				DropCount:   ring.DropCount(),
			})

			if wd != nil && now.Sub(lastFeed) >= feedInterval {
				if err := wd.Feed(); err != nil {
					return err
				}
				lastFeed = now
			}
			return nil
		},
	}
}

// =============================================================================
// Logging
// =============================================================================

// LoggingTask drains the ring into the session writer and maintains the
// per-session g-force aggregate. When no session is open the ring is
// still drained so stale samples never leak into the next session. The
// writer is also flushed on a wall-clock interval so short sessions reach
// disk without waiting for a full block.
func LoggingTask(
	ring *buffer.Ring,
	writer *session.Writer,
	gforce *stats.GForce,
	period time.Duration,
	flushInterval time.Duration,
) Task {
	if flushInterval <= 0 {
		flushInterval = config.DefaultFlushInterval
	}
	var lastFlush time.Time

	return Task{
		Name:   "logging",
		Period: period,
		Fn: func(ctx context.Context) error {
			for {
				samples := ring.PopN(config.DefaultFlushFrames)
				if len(samples) == 0 {
					break
				}
				for i := range samples {
					if writer.Log(&samples[i]) {
						gforce.Add(samples[i].GTotal)
					}
				}
			}

			now := time.Now()
			if writer.IsOpen() && now.Sub(lastFlush) >= flushInterval {
				lastFlush = now
				return writer.Flush()
			}
			return nil
		},
	}
}

// =============================================================================
// Publication
// =============================================================================

// PublicationTask hands the latest snapshot to the sink. Uses the
// non-blocking cell read; a missed tick publishes the next one.
func PublicationTask(cell *telemetry.Cell, sink Sink, period time.Duration) Task {
	var lastSeq uint64

	return Task{
		Name:   "publication",
		Period: period,
		Fn: func(ctx context.Context) error {
			snap, ok := cell.TrySnapshot()
			if !ok || snap.Seq == lastSeq {
				return nil
			}
			lastSeq = snap.Seq
			return sink.Publish(snap)
		},
	}
}

// =============================================================================
// Satellites
// =============================================================================

// SatelliteTask refreshes the satellite tracker from the GPS on a slow
// cadence and folds the result into the cell snapshot. The fold uses
// TryUpdate so the motion data of whatever snapshot is current stays
// intact; this task never republishes acquisition state.
func SatelliteTask(
	suite *sensors.Suite,
	tracker *telemetry.SatelliteTracker,
	cell *telemetry.Cell,
	period time.Duration,
) Task {
	return Task{
		Name:   "satellites",
		Period: period,
		Fn: func(ctx context.Context) error {
			sats := suite.Satellites()
			tracker.UpdateAll(sats)
			tracker.EndCycle()

			cell.TryUpdate(func(snap *telemetry.Snapshot) {
				snap.Satellites = tracker.List()
			})
			return nil
		},
	}
}

// =============================================================================
// Quota
// =============================================================================

// QuotaTask runs storage eviction, skipping whatever session is open at
// the moment of the check.
func QuotaTask(manager *quota.Manager, writer *session.Writer, period time.Duration) Task {
	return Task{
		Name:   "quota",
		Period: period,
		Fn: func(ctx context.Context) error {
			active, _ := writer.Active()
			_, err := manager.Check(active)
			return err
		},
	}
}
