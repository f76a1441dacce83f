package telemetry

import (
	"math"
	"testing"
)

func TestVector3_Magnitude(t *testing.T) {
	v := Vector3{X: 3, Y: 4, Z: 0}
	if got := v.Magnitude(); got != 5 {
		t.Errorf("expected 5, got %v", got)
	}

	zero := Vector3{}
	if got := zero.Magnitude(); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}

	unit := Vector3{Z: 1}
	if got := unit.Magnitude(); math.Abs(got-1) > 1e-12 {
		t.Errorf("expected 1, got %v", got)
	}
}

func TestFixTypeFromQuality(t *testing.T) {
	cases := []struct {
		quality int
		want    FixType
	}{
		{0, FixNone},
		{-1, FixNone},
		{1, Fix2D},
		{2, Fix3D},
		{4, Fix3D},
	}
	for _, c := range cases {
		if got := FixTypeFromQuality(c.quality); got != c.want {
			t.Errorf("quality %d: expected %v, got %v", c.quality, c.want, got)
		}
	}
}

func TestSample_TimestampSeconds(t *testing.T) {
	s := Sample{TimestampUs: 1_500_000}
	if got := s.TimestampSeconds(); got != 1.5 {
		t.Errorf("expected 1.5, got %v", got)
	}
}

func TestCell_PublishSnapshot(t *testing.T) {
	c := NewCell()

	if _, ok := c.TrySnapshot(); ok {
		t.Error("empty cell should report no snapshot")
	}
	if _, ok := c.Snapshot(); ok {
		t.Error("empty cell should report no snapshot")
	}

	if !c.TryPublish(Snapshot{GTotal: 1.0}) {
		t.Fatal("uncontended TryPublish should succeed")
	}

	snap, ok := c.TrySnapshot()
	if !ok {
		t.Fatal("snapshot should be available")
	}
	if snap.GTotal != 1.0 {
		t.Errorf("expected g=1.0, got %v", snap.GTotal)
	}
	if snap.Seq != 1 {
		t.Errorf("expected seq=1, got %d", snap.Seq)
	}

	// Publishers overwrite; readers see only the latest.
	c.Publish(Snapshot{GTotal: 2.0})
	c.Publish(Snapshot{GTotal: 3.0})

	snap, _ = c.Snapshot()
	if snap.GTotal != 3.0 {
		t.Errorf("expected latest g=3.0, got %v", snap.GTotal)
	}
	if snap.Seq != 3 {
		t.Errorf("expected seq=3, got %d", snap.Seq)
	}
}

func TestCell_TryVariantsDoNotBlock(t *testing.T) {
	c := NewCell()
	c.Publish(Snapshot{GTotal: 1.0})

	// Hold the lock to exercise the contended path deterministically.
	c.mu.Lock()
	if c.TryPublish(Snapshot{GTotal: 9.0}) {
		t.Error("TryPublish should fail while the lock is held")
	}
	if _, ok := c.TrySnapshot(); ok {
		t.Error("TrySnapshot should fail while the lock is held")
	}
	c.mu.Unlock()

	// The skipped publish must not have bumped the sequence.
	if c.Seq() != 1 {
		t.Errorf("expected seq=1, got %d", c.Seq())
	}
}

func TestCell_TryUpdate(t *testing.T) {
	c := NewCell()

	called := false
	if c.TryUpdate(func(*Snapshot) { called = true }) {
		t.Error("TryUpdate on an empty cell should fail")
	}
	if called {
		t.Error("fn must not run on an empty cell")
	}

	// A fresh publish lands before the slow-path fold; the fold must
	// build on it, not on whatever state it last saw.
	c.Publish(Snapshot{GTotal: 1.0})
	c.Publish(Snapshot{GTotal: 2.0})

	if !c.TryUpdate(func(snap *Snapshot) {
		snap.Satellites = []SatelliteInfo{{PRN: 5, SNR: 30}}
	}) {
		t.Fatal("uncontended TryUpdate should succeed")
	}

	snap, ok := c.Snapshot()
	if !ok {
		t.Fatal("snapshot should be available")
	}
	if snap.GTotal != 2.0 {
		t.Errorf("update must keep the latest motion data, got g=%v", snap.GTotal)
	}
	if len(snap.Satellites) != 1 {
		t.Errorf("update should have folded the satellite list in: %+v", snap.Satellites)
	}
	if snap.Seq != 3 {
		t.Errorf("expected seq=3, got %d", snap.Seq)
	}

	c.mu.Lock()
	if c.TryUpdate(func(*Snapshot) { t.Error("fn must not run while the lock is held") }) {
		t.Error("TryUpdate should fail while the lock is held")
	}
	c.mu.Unlock()
}

func TestSatelliteTracker_Dedup(t *testing.T) {
	tr := NewSatelliteTracker()

	tr.Update(SatelliteInfo{PRN: 5, SNR: 30})
	tr.Update(SatelliteInfo{PRN: 5, SNR: 35})
	tr.Update(SatelliteInfo{PRN: 2, SNR: 20})

	if tr.Len() != 2 {
		t.Fatalf("expected 2 satellites, got %d", tr.Len())
	}

	list := tr.List()
	if list[0].PRN != 2 || list[1].PRN != 5 {
		t.Errorf("list should be PRN ordered: %+v", list)
	}
	if list[1].SNR != 35 {
		t.Errorf("PRN 5 should hold the latest SNR, got %d", list[1].SNR)
	}
}

func TestSatelliteTracker_EvictionAcrossCycles(t *testing.T) {
	tr := NewSatelliteTracker()

	tr.UpdateAll([]SatelliteInfo{{PRN: 1}, {PRN: 2}, {PRN: 3}})
	if evicted := tr.EndCycle(); evicted != 0 {
		t.Errorf("first cycle should evict nothing, got %d", evicted)
	}

	// Next cycle only PRN 2 is seen again.
	tr.Update(SatelliteInfo{PRN: 2, SNR: 40})
	if evicted := tr.EndCycle(); evicted != 2 {
		t.Errorf("expected 2 evictions, got %d", evicted)
	}

	list := tr.List()
	if len(list) != 1 || list[0].PRN != 2 {
		t.Errorf("only PRN 2 should remain: %+v", list)
	}
}

func TestSatelliteTracker_IgnoresInvalidPRN(t *testing.T) {
	tr := NewSatelliteTracker()
	tr.Update(SatelliteInfo{PRN: 0})
	tr.Update(SatelliteInfo{PRN: -3})
	if tr.Len() != 0 {
		t.Errorf("invalid PRNs should be ignored, got %d tracked", tr.Len())
	}
}
