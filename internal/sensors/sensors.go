// Package sensors defines the capability surface the pipeline consumes
// from sensor drivers, and a fault-tolerant reader over a set of them.
//
// The pipeline depends only on these interfaces, never on a concrete
// device type. Register-level bus drivers implement them elsewhere; this
// package ships a simulated implementation for bench use and tests.
package sensors

import (
	"errors"
	"sync"

	"github.com/openpony/ponylog/internal/logging"
	"github.com/openpony/ponylog/internal/telemetry"
)

var log = logging.Component("sensors")

// ErrNotReady is returned by drivers before their first successful read.
var ErrNotReady = errors.New("sensor not ready")

// Accelerometer reads three-axis acceleration in g.
type Accelerometer interface {
	ReadAcceleration() (telemetry.Vector3, error)
}

// Gyroscope reads three-axis rotation rate in deg/s.
type Gyroscope interface {
	ReadRotation() (telemetry.Vector3, error)
}

// GPS exposes the opaque fix record and the satellite detail list.
// NMEA parsing happens behind this interface.
type GPS interface {
	// ReadFix returns the current fix. Fix.Valid is false when the
	// receiver has no solution; that is not an error.
	ReadFix() (telemetry.Fix, error)

	// ReadSatellites returns the satellites in view from the last
	// complete constellation update.
	ReadSatellites() ([]telemetry.SatelliteInfo, error)
}

// Suite reads a set of drivers with last-known-value semantics: a
// transient read failure reuses the previous value and logs at debug
// level instead of propagating. Readings never block acquisition on a
// misbehaving device.
type Suite struct {
	Accel Accelerometer
	Gyro  Gyroscope
	GPS   GPS

	mu        sync.Mutex
	lastAccel telemetry.Vector3
	lastGyro  telemetry.Vector3
	lastFix   telemetry.Fix
	faults    int64
}

// Read produces one reading from every configured driver, substituting
// the last known value on transient faults.
func (s *Suite) Read() (accel, gyro telemetry.Vector3, fix telemetry.Fix) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Accel != nil {
		if v, err := s.Accel.ReadAcceleration(); err == nil {
			s.lastAccel = v
		} else {
			s.faults++
			log.Debug("accelerometer read failed, using last value", "error", err)
		}
	}

	if s.Gyro != nil {
		if v, err := s.Gyro.ReadRotation(); err == nil {
			s.lastGyro = v
		} else {
			s.faults++
			log.Debug("gyroscope read failed, using last value", "error", err)
		}
	}

	if s.GPS != nil {
		if f, err := s.GPS.ReadFix(); err == nil {
			s.lastFix = f
		} else {
			s.faults++
			log.Debug("gps read failed, using last fix", "error", err)
		}
	}

	return s.lastAccel, s.lastGyro, s.lastFix
}

// Satellites returns the satellite list, or nil when no GPS is configured
// or the read fails.
func (s *Suite) Satellites() []telemetry.SatelliteInfo {
	if s.GPS == nil {
		return nil
	}
	sats, err := s.GPS.ReadSatellites()
	if err != nil {
		log.Debug("satellite read failed", "error", err)
		return nil
	}
	return sats
}

// Faults returns the cumulative transient fault count.
func (s *Suite) Faults() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.faults
}
