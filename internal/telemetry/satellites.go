package telemetry

import "sync"

// SatelliteTracker maintains the latest record per satellite PRN.
//
// GSV sentences arrive in partial bursts, so a naive list accumulates
// duplicates and never forgets satellites that dropped below the horizon.
// The tracker keys records by PRN and evicts entries that were not
// refreshed during a full update cycle.
type SatelliteTracker struct {
	mu   sync.Mutex
	sats map[int]*trackedSatellite
}

type trackedSatellite struct {
	info SatelliteInfo
	seen bool // Refreshed since the last cycle boundary
}

// NewSatelliteTracker creates an empty tracker.
func NewSatelliteTracker() *SatelliteTracker {
	return &SatelliteTracker{
		sats: make(map[int]*trackedSatellite),
	}
}

// Update records the latest info for a satellite. An existing entry with
// the same PRN is overwritten, never duplicated.
func (t *SatelliteTracker) Update(info SatelliteInfo) {
	if info.PRN <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sats[info.PRN]
	if !ok {
		s = &trackedSatellite{}
		t.sats[info.PRN] = s
	}
	s.info = info
	s.seen = true
}

// UpdateAll records a burst of satellite infos.
func (t *SatelliteTracker) UpdateAll(infos []SatelliteInfo) {
	for _, info := range infos {
		t.Update(info)
	}
}

// EndCycle marks the end of a full constellation update cycle: entries not
// refreshed since the previous cycle are evicted, and the seen marks reset.
// Returns the number of evicted satellites.
func (t *SatelliteTracker) EndCycle() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	evicted := 0
	for prn, s := range t.sats {
		if !s.seen {
			delete(t.sats, prn)
			evicted++
			continue
		}
		s.seen = false
	}
	return evicted
}

// List returns the current constellation view ordered by PRN.
func (t *SatelliteTracker) List() []SatelliteInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.sats) == 0 {
		return nil
	}

	out := make([]SatelliteInfo, 0, len(t.sats))
	for _, s := range t.sats {
		out = append(out, s.info)
	}

	// Insertion sort: constellations are small (≤32 entries).
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].PRN < out[j-1].PRN; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Len returns the number of tracked satellites.
func (t *SatelliteTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sats)
}
