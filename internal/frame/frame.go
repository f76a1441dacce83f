// Package frame implements the fixed-size binary record format of session
// files.
//
// Each frame is exactly 64 bytes, little-endian (binary format version
// "OPL1"):
//   - Timestamp (8 bytes, float64, seconds with fractional part)
//   - GPS latitude (8 bytes, float64, decimal degrees)
//   - GPS longitude (8 bytes, float64, decimal degrees)
//   - GPS altitude (4 bytes, float32, meters)
//   - GPS speed (4 bytes, float32, m/s)
//   - GPS satellites (1 byte)
//   - Reserved (1 byte, zero)
//   - Accel x/y/z (3 × 4 bytes, float32, g)
//   - Gyro x/y/z (3 × 4 bytes, float32, deg/s)
//   - Reserved (2 bytes, zero)
//   - Checksum (4 bytes, CRC32)
//
// The checksum is IEEE CRC32 (polynomial 0xEDB88320) over bytes 0..59.
// Reserved bytes are always written as zero so encoding is deterministic.
// A frame whose checksum does not verify is corrupt; readers skip it and
// continue with the next frame.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"

	"github.com/openpony/ponylog/internal/telemetry"
)

// Size is the fixed on-disk frame size in bytes.
const Size = 64

// checksumOffset is where the trailing CRC32 starts.
const checksumOffset = Size - 4

// ErrChecksum is returned by Decode when the frame checksum does not
// verify. The frame is corrupt but subsequent frames remain decodable.
var ErrChecksum = errors.New("frame checksum mismatch")

// ErrShort is returned by Decode when fewer than Size bytes are supplied.
var ErrShort = errors.New("short frame")

// Frame is the decoded form of one on-disk record.
type Frame struct {
	Timestamp  float64 // Seconds, fractional
	Latitude   float64 // Decimal degrees
	Longitude  float64 // Decimal degrees
	Altitude   float32 // Meters
	Speed      float32 // m/s
	Satellites uint8

	AccelX float32 // g
	AccelY float32
	AccelZ float32
	GyroX  float32 // deg/s
	GyroY  float32
	GyroZ  float32
}

// FromSample builds a Frame from a pipeline sample.
// An invalid fix encodes as zeroed position fields with zero satellites.
func FromSample(s *telemetry.Sample) Frame {
	f := Frame{
		Timestamp: s.TimestampSeconds(),
		AccelX:    float32(s.Accel.X),
		AccelY:    float32(s.Accel.Y),
		AccelZ:    float32(s.Accel.Z),
		GyroX:     float32(s.Gyro.X),
		GyroY:     float32(s.Gyro.Y),
		GyroZ:     float32(s.Gyro.Z),
	}

	if s.Fix.Valid {
		f.Latitude = s.Fix.Latitude
		f.Longitude = s.Fix.Longitude
		f.Altitude = float32(s.Fix.Altitude)
		f.Speed = float32(s.Fix.Speed)
		if s.Fix.Sats > 0 {
			if s.Fix.Sats > 255 {
				f.Satellites = 255
			} else {
				f.Satellites = uint8(s.Fix.Sats)
			}
		}
	}

	return f
}

// Encode serializes the frame into its fixed 64-byte form, computing the
// trailing checksum. It performs no allocation.
func Encode(f *Frame) [Size]byte {
	var buf [Size]byte

	binary.LittleEndian.PutUint64(buf[0:8], math.Float64bits(f.Timestamp))
	binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(f.Latitude))
	binary.LittleEndian.PutUint64(buf[16:24], math.Float64bits(f.Longitude))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(f.Altitude))
	binary.LittleEndian.PutUint32(buf[28:32], math.Float32bits(f.Speed))
	buf[32] = f.Satellites
	// buf[33] reserved, zero
	binary.LittleEndian.PutUint32(buf[34:38], math.Float32bits(f.AccelX))
	binary.LittleEndian.PutUint32(buf[38:42], math.Float32bits(f.AccelY))
	binary.LittleEndian.PutUint32(buf[42:46], math.Float32bits(f.AccelZ))
	binary.LittleEndian.PutUint32(buf[46:50], math.Float32bits(f.GyroX))
	binary.LittleEndian.PutUint32(buf[50:54], math.Float32bits(f.GyroY))
	binary.LittleEndian.PutUint32(buf[54:58], math.Float32bits(f.GyroZ))
	// buf[58:60] reserved, zero

	crc := crc32.ChecksumIEEE(buf[:checksumOffset])
	binary.LittleEndian.PutUint32(buf[checksumOffset:], crc)

	return buf
}

// Decode parses one frame from data, verifying the checksum.
// Returns ErrShort if data holds fewer than Size bytes, and ErrChecksum
// (wrapped with the expected/actual values) when the CRC does not verify.
func Decode(data []byte) (Frame, error) {
	if len(data) < Size {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrShort, len(data))
	}

	expected := binary.LittleEndian.Uint32(data[checksumOffset:Size])
	actual := crc32.ChecksumIEEE(data[:checksumOffset])
	if actual != expected {
		return Frame{}, fmt.Errorf("%w: expected %08x, got %08x", ErrChecksum, expected, actual)
	}

	return Frame{
		Timestamp:  math.Float64frombits(binary.LittleEndian.Uint64(data[0:8])),
		Latitude:   math.Float64frombits(binary.LittleEndian.Uint64(data[8:16])),
		Longitude:  math.Float64frombits(binary.LittleEndian.Uint64(data[16:24])),
		Altitude:   math.Float32frombits(binary.LittleEndian.Uint32(data[24:28])),
		Speed:      math.Float32frombits(binary.LittleEndian.Uint32(data[28:32])),
		Satellites: data[32],
		AccelX:     math.Float32frombits(binary.LittleEndian.Uint32(data[34:38])),
		AccelY:     math.Float32frombits(binary.LittleEndian.Uint32(data[38:42])),
		AccelZ:     math.Float32frombits(binary.LittleEndian.Uint32(data[42:46])),
		GyroX:      math.Float32frombits(binary.LittleEndian.Uint32(data[46:50])),
		GyroY:      math.Float32frombits(binary.LittleEndian.Uint32(data[50:54])),
		GyroZ:      math.Float32frombits(binary.LittleEndian.Uint32(data[54:58])),
	}, nil
}

// GTotal returns the total-g magnitude of the frame's acceleration.
func (f *Frame) GTotal() float64 {
	ax := float64(f.AccelX)
	ay := float64(f.AccelY)
	az := float64(f.AccelZ)
	return math.Sqrt(ax*ax + ay*ay + az*az)
}
