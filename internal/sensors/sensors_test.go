package sensors

import (
	"errors"
	"testing"
	"time"

	"github.com/openpony/ponylog/internal/telemetry"
)

type flakyAccel struct {
	value telemetry.Vector3
	fail  bool
}

func (f *flakyAccel) ReadAcceleration() (telemetry.Vector3, error) {
	if f.fail {
		return telemetry.Vector3{}, errors.New("i2c timeout")
	}
	return f.value, nil
}

func TestSuite_LastKnownValueOnFault(t *testing.T) {
	accel := &flakyAccel{value: telemetry.Vector3{Z: 1.0}}
	s := &Suite{Accel: accel}

	got, _, _ := s.Read()
	if got.Z != 1.0 {
		t.Fatalf("expected z=1.0, got %v", got.Z)
	}

	// Transient fault: the previous value is substituted.
	accel.fail = true
	got, _, _ = s.Read()
	if got.Z != 1.0 {
		t.Errorf("expected last known z=1.0 during fault, got %v", got.Z)
	}
	if s.Faults() != 1 {
		t.Errorf("expected 1 fault, got %d", s.Faults())
	}

	// Recovery picks up fresh values again.
	accel.fail = false
	accel.value = telemetry.Vector3{Z: 2.0}
	got, _, _ = s.Read()
	if got.Z != 2.0 {
		t.Errorf("expected z=2.0 after recovery, got %v", got.Z)
	}
}

func TestSuite_NilDrivers(t *testing.T) {
	s := &Suite{}
	accel, gyro, fix := s.Read()
	if accel != (telemetry.Vector3{}) || gyro != (telemetry.Vector3{}) {
		t.Error("empty suite should read zeros")
	}
	if fix.Valid {
		t.Error("empty suite should have no fix")
	}
	if s.Satellites() != nil {
		t.Error("empty suite should report no satellites")
	}
}

func TestSimGPS_WarmUp(t *testing.T) {
	gps := &SimGPS{WarmUp: time.Hour}

	fix, err := gps.ReadFix()
	if err != nil {
		t.Fatalf("ReadFix: %v", err)
	}
	if fix.Valid {
		t.Error("fix should be invalid during warm up")
	}
	sats, err := gps.ReadSatellites()
	if err != nil {
		t.Fatalf("ReadSatellites: %v", err)
	}
	if sats != nil {
		t.Error("no satellites during warm up")
	}
}

func TestSimSuite_ProducesPlausibleData(t *testing.T) {
	s := NewSimSuite()

	accel, _, fix := s.Read()
	if accel.Z != 1.0 {
		t.Errorf("expected 1 g vertical, got %v", accel.Z)
	}
	mag := accel.Magnitude()
	if mag < 0.9 || mag > 1.5 {
		t.Errorf("implausible total g %v", mag)
	}

	if !fix.Valid {
		t.Fatal("sim gps should have an immediate fix")
	}
	if fix.Type != telemetry.Fix3D || fix.Sats != 9 {
		t.Errorf("unexpected fix: %+v", fix)
	}
	if fix.Latitude < 36 || fix.Latitude > 37 {
		t.Errorf("latitude off track: %v", fix.Latitude)
	}

	sats := s.Satellites()
	if len(sats) != 9 {
		t.Fatalf("expected 9 satellites, got %d", len(sats))
	}
	for i := 1; i < len(sats); i++ {
		if sats[i].PRN == sats[i-1].PRN {
			t.Error("duplicate PRNs in sim constellation")
		}
	}
}
