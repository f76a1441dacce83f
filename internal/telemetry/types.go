package telemetry

import (
	"math"
	"time"
)

// Vector3 is a three-axis reading (acceleration in g, rotation in deg/s).
type Vector3 struct {
	X float64
	Y float64
	Z float64
}

// Magnitude returns the vector magnitude.
func (v Vector3) Magnitude() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// FixType indicates the GPS fix dimensionality.
type FixType int

const (
	// FixNone means no position solution is available.
	FixNone FixType = iota
	// Fix2D is a two-dimensional solution (quality code 1).
	Fix2D
	// Fix3D is a full three-dimensional solution (quality code 2 and above).
	Fix3D
)

// String returns a human-readable representation of the FixType.
func (f FixType) String() string {
	switch f {
	case FixNone:
		return "none"
	case Fix2D:
		return "2d"
	case Fix3D:
		return "3d"
	default:
		return "unknown"
	}
}

// FixTypeFromQuality maps an NMEA quality code to a FixType.
// Quality 1 is assumed 2D, anything higher 3D; the driver may override
// this when the receiver reports dimensionality directly.
func FixTypeFromQuality(quality int) FixType {
	switch {
	case quality <= 0:
		return FixNone
	case quality == 1:
		return Fix2D
	default:
		return Fix3D
	}
}

// Fix is an opaque position record consumed from the GPS driver.
type Fix struct {
	Latitude  float64 // Decimal degrees
	Longitude float64 // Decimal degrees
	Altitude  float64 // Meters above MSL
	Speed     float64 // Ground speed in m/s
	Track     float64 // Ground course in degrees
	HDOP      float64 // Horizontal dilution of precision
	Sats      int     // Satellites used in the solution
	Type      FixType
	Valid     bool
}

// Sample is one sensor observation produced by the acquisition task.
// It is immutable once pushed into the ring buffer and consumed exactly
// once by the logging task (or dropped when the buffer is full).
type Sample struct {
	// TimestampUs is a monotonic timestamp in microseconds.
	TimestampUs int64

	// Accel is the three-axis acceleration in g.
	Accel Vector3

	// GTotal is the derived total-g magnitude.
	GTotal float64

	// Gyro is the three-axis rotation rate in deg/s.
	Gyro Vector3

	// Fix is the GPS position at sampling time. Fix.Valid reports whether
	// a position solution was available.
	Fix Fix
}

// TimestampSeconds returns the timestamp as fractional seconds, the unit
// used by the on-disk frame format.
func (s *Sample) TimestampSeconds() float64 {
	return float64(s.TimestampUs) / 1e6
}

// SatelliteInfo describes one satellite in view.
type SatelliteInfo struct {
	PRN       int // Satellite PRN number
	Elevation int // Elevation angle (0-90 degrees)
	Azimuth   int // Azimuth angle (0-360 degrees)
	SNR       int // Signal-to-noise ratio (dB), -1 if not available
}

// Snapshot is the full latest-state record written by the acquisition task
// and consumed by the publication task. Last-writer-wins, no queuing.
type Snapshot struct {
	// Seq increments on every publish; readers can detect staleness.
	Seq uint64

	Time        time.Time
	TimestampUs int64

	Accel  Vector3
	Gyro   Vector3
	GTotal float64

	Fix        Fix
	Satellites []SatelliteInfo

	// DropCount mirrors the ring buffer drop counter at publish time.
	DropCount int64
}
