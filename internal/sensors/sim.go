package sensors

import (
	"math"
	"sync"
	"time"

	"github.com/openpony/ponylog/internal/telemetry"
)

// =============================================================================
// Simulated Drivers
// =============================================================================

// SimAccelerometer produces a 1 g gravity vector with a sinusoidal lateral
// component, as if the vehicle were weaving. Deterministic given the clock.
type SimAccelerometer struct {
	// Amplitude is the peak lateral acceleration in g.
	Amplitude float64

	// Period is the weave period.
	Period time.Duration

	mu    sync.Mutex
	start time.Time
}

func (a *SimAccelerometer) ReadAcceleration() (telemetry.Vector3, error) {
	a.mu.Lock()
	if a.start.IsZero() {
		a.start = time.Now()
		if a.Amplitude == 0 {
			a.Amplitude = 0.3
		}
		if a.Period == 0 {
			a.Period = 4 * time.Second
		}
	}
	elapsed := time.Since(a.start)
	a.mu.Unlock()

	phase := 2 * math.Pi * float64(elapsed) / float64(a.Period)
	return telemetry.Vector3{
		X: a.Amplitude * math.Sin(phase),
		Y: a.Amplitude * 0.25 * math.Cos(phase),
		Z: 1.0,
	}, nil
}

// SimGyroscope reports the rotation rate matching SimAccelerometer's weave.
type SimGyroscope struct {
	mu    sync.Mutex
	start time.Time
}

func (g *SimGyroscope) ReadRotation() (telemetry.Vector3, error) {
	g.mu.Lock()
	if g.start.IsZero() {
		g.start = time.Now()
	}
	elapsed := time.Since(g.start)
	g.mu.Unlock()

	phase := 2 * math.Pi * float64(elapsed) / float64(4*time.Second)
	return telemetry.Vector3{
		X: 2 * math.Cos(phase),
		Y: 0,
		Z: 10 * math.Sin(phase),
	}, nil
}

// SimGPS drives a fixed-speed circle around a center point. It reports no
// fix for the first WarmUp period to exercise the invalid-fix path.
type SimGPS struct {
	// Center of the circle. Zero value parks the track at Laguna Seca.
	Latitude  float64
	Longitude float64

	// WarmUp is how long the receiver reports no fix after the first read.
	WarmUp time.Duration

	mu    sync.Mutex
	start time.Time
}

func (g *SimGPS) init() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.start.IsZero() {
		g.start = time.Now()
		if g.Latitude == 0 && g.Longitude == 0 {
			g.Latitude = 36.5841
			g.Longitude = -121.7530
		}
	}
	return time.Since(g.start)
}

func (g *SimGPS) ReadFix() (telemetry.Fix, error) {
	elapsed := g.init()
	if elapsed < g.WarmUp {
		return telemetry.Fix{}, nil
	}

	// One lap every two minutes, about 200 m radius.
	phase := 2 * math.Pi * float64(elapsed) / float64(2*time.Minute)
	return telemetry.Fix{
		Latitude:  g.Latitude + 0.0018*math.Sin(phase),
		Longitude: g.Longitude + 0.0018*math.Cos(phase),
		Altitude:  320,
		Speed:     15.6,
		Track:     math.Mod(phase*180/math.Pi+90, 360),
		HDOP:      0.9,
		Sats:      9,
		Type:      telemetry.Fix3D,
		Valid:     true,
	}, nil
}

func (g *SimGPS) ReadSatellites() ([]telemetry.SatelliteInfo, error) {
	elapsed := g.init()
	if elapsed < g.WarmUp {
		return nil, nil
	}

	sats := make([]telemetry.SatelliteInfo, 0, 9)
	for i := 0; i < 9; i++ {
		sats = append(sats, telemetry.SatelliteInfo{
			PRN:       2 + i*3,
			Elevation: 15 + i*8,
			Azimuth:   (i * 40) % 360,
			SNR:       30 + i%10,
		})
	}
	return sats, nil
}

// NewSimSuite returns a Suite wired to simulated drivers.
func NewSimSuite() *Suite {
	return &Suite{
		Accel: &SimAccelerometer{},
		Gyro:  &SimGyroscope{},
		GPS:   &SimGPS{},
	}
}
