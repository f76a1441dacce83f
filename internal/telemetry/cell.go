package telemetry

import "sync"

// Cell is the single-slot, mutex-guarded latest-state holder shared between
// the acquisition task and any number of readers.
//
// The acquisition task publishes whole snapshots. Slow-path producers fold
// individual fields into the current snapshot with TryUpdate, which holds
// the lock across the whole read-modify-write so a publish landing in
// between can never be overwritten with stale state. Neither side may
// stall the other: the Try variants take the lock only if it is free and
// otherwise return immediately, letting the caller proceed with stale or
// absent data. The blocking variants exist for callers (control server,
// tests) that are allowed to wait.
type Cell struct {
	mu    sync.Mutex
	snap  Snapshot
	valid bool
	seq   uint64
}

// NewCell creates an empty Cell.
func NewCell() *Cell {
	return &Cell{}
}

// TryPublish stores a new snapshot if the lock is immediately available.
// Returns false if a reader held the lock; the write is skipped and the
// acquisition task carries on without blocking.
func (c *Cell) TryPublish(snap Snapshot) bool {
	if !c.mu.TryLock() {
		return false
	}
	defer c.mu.Unlock()

	c.seq++
	snap.Seq = c.seq
	c.snap = snap
	c.valid = true
	return true
}

// Publish stores a new snapshot, waiting for the lock. Used on paths where
// blocking is acceptable (session start, tests).
func (c *Cell) Publish(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	snap.Seq = c.seq
	c.snap = snap
	c.valid = true
}

// TryUpdate mutates the current snapshot in place if the lock is
// immediately available and a snapshot has been published. The sequence
// number advances so dedup-by-Seq readers observe the change as new state.
// Returns false when the lock was contended or the cell is empty; fn is
// not called in either case.
func (c *Cell) TryUpdate(fn func(*Snapshot)) bool {
	if !c.mu.TryLock() {
		return false
	}
	defer c.mu.Unlock()

	if !c.valid {
		return false
	}

	fn(&c.snap)
	c.seq++
	c.snap.Seq = c.seq
	return true
}

// TrySnapshot copies the current snapshot out if the lock is immediately
// available. The second return is false when the lock was contended or no
// snapshot has been published yet.
func (c *Cell) TrySnapshot() (Snapshot, bool) {
	if !c.mu.TryLock() {
		return Snapshot{}, false
	}
	defer c.mu.Unlock()

	if !c.valid {
		return Snapshot{}, false
	}
	return c.snap, true
}

// Snapshot copies the current snapshot out, waiting for the lock.
// The second return is false when nothing has been published yet.
func (c *Cell) Snapshot() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.valid {
		return Snapshot{}, false
	}
	return c.snap, true
}

// Seq returns the sequence number of the last published snapshot.
func (c *Cell) Seq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}
