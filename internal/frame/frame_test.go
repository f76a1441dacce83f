package frame

import (
	"errors"
	"testing"

	"github.com/openpony/ponylog/internal/telemetry"
)

func testFrame() Frame {
	return Frame{
		Timestamp:  1724500000.125,
		Latitude:   36.5841,
		Longitude:  -121.7530,
		Altitude:   320.5,
		Speed:      15.6,
		Satellites: 9,
		AccelX:     0.12,
		AccelY:     -0.03,
		AccelZ:     1.01,
		GyroX:      1.5,
		GyroY:      -0.2,
		GyroZ:      12.7,
	}
}

func TestFrame_RoundTrip(t *testing.T) {
	f := testFrame()
	buf := Encode(&f)

	decoded, err := Decode(buf[:])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != f {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", decoded, f)
	}
}

func TestFrame_EncodeDeterministic(t *testing.T) {
	f := testFrame()
	a := Encode(&f)
	b := Encode(&f)
	if a != b {
		t.Error("encoding the same frame twice should be byte-identical")
	}
}

func TestFrame_CorruptionDetected(t *testing.T) {
	f := testFrame()
	buf := Encode(&f)

	// Any single flipped bit in the payload must fail the checksum.
	for _, offset := range []int{0, 8, 24, 32, 33, 40, 58, 59} {
		corrupted := buf
		corrupted[offset] ^= 0x01

		_, err := Decode(corrupted[:])
		if !errors.Is(err, ErrChecksum) {
			t.Errorf("offset %d: expected ErrChecksum, got %v", offset, err)
		}
	}

	// Corrupting the checksum itself also fails.
	corrupted := buf
	corrupted[60] ^= 0xFF
	if _, err := Decode(corrupted[:]); !errors.Is(err, ErrChecksum) {
		t.Errorf("expected ErrChecksum for corrupt crc, got %v", err)
	}
}

func TestFrame_Short(t *testing.T) {
	f := testFrame()
	buf := Encode(&f)

	if _, err := Decode(buf[:Size-1]); !errors.Is(err, ErrShort) {
		t.Errorf("expected ErrShort, got %v", err)
	}
	if _, err := Decode(nil); !errors.Is(err, ErrShort) {
		t.Errorf("expected ErrShort for nil, got %v", err)
	}
}

func TestFromSample_ValidFix(t *testing.T) {
	s := telemetry.Sample{
		TimestampUs: 1724500000125000,
		Accel:       telemetry.Vector3{X: 0.1, Y: 0.2, Z: 1.0},
		Gyro:        telemetry.Vector3{X: 1, Y: 2, Z: 3},
		Fix: telemetry.Fix{
			Latitude:  36.5,
			Longitude: -121.7,
			Altitude:  320,
			Speed:     10,
			Sats:      7,
			Type:      telemetry.Fix3D,
			Valid:     true,
		},
	}

	f := FromSample(&s)
	if f.Timestamp != 1724500000.125 {
		t.Errorf("expected timestamp=1724500000.125, got %v", f.Timestamp)
	}
	if f.Latitude != 36.5 || f.Longitude != -121.7 {
		t.Errorf("position not carried: %v, %v", f.Latitude, f.Longitude)
	}
	if f.Satellites != 7 {
		t.Errorf("expected sats=7, got %d", f.Satellites)
	}
}

func TestFromSample_InvalidFix(t *testing.T) {
	s := telemetry.Sample{
		TimestampUs: 1000000,
		Accel:       telemetry.Vector3{Z: 1.0},
		Fix: telemetry.Fix{
			// Stale values from a lost fix must not leak into the frame.
			Latitude: 36.5, Longitude: -121.7, Sats: 7,
			Valid: false,
		},
	}

	f := FromSample(&s)
	if f.Latitude != 0 || f.Longitude != 0 || f.Altitude != 0 || f.Speed != 0 {
		t.Errorf("invalid fix should encode zero position, got %+v", f)
	}
	if f.Satellites != 0 {
		t.Errorf("invalid fix should encode zero sats, got %d", f.Satellites)
	}
	if f.AccelZ != 1.0 {
		t.Error("accel must be carried regardless of fix")
	}
}

func TestFromSample_SatsClamped(t *testing.T) {
	s := telemetry.Sample{
		Fix: telemetry.Fix{Sats: 300, Valid: true},
	}
	if f := FromSample(&s); f.Satellites != 255 {
		t.Errorf("expected sats clamped to 255, got %d", f.Satellites)
	}
}

func TestFrame_ReservedBytesZero(t *testing.T) {
	f := testFrame()
	buf := Encode(&f)

	if buf[33] != 0 {
		t.Errorf("byte 33 reserved, got %02x", buf[33])
	}
	if buf[58] != 0 || buf[59] != 0 {
		t.Errorf("bytes 58..59 reserved, got %02x %02x", buf[58], buf[59])
	}
}

func TestFrame_GTotal(t *testing.T) {
	f := Frame{AccelX: 3, AccelY: 4, AccelZ: 0}
	if got := f.GTotal(); got != 5 {
		t.Errorf("expected g total=5, got %v", got)
	}
}
