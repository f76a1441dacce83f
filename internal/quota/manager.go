// Package quota keeps the session directory within its storage budget.
//
// The manager runs on a slow timer, far off the acquisition hot path.
// When filesystem usage crosses the high water mark it deletes closed
// sessions oldest-first until usage falls to the low water mark. The
// active session is never deleted, even when it is the oldest file. The
// gap between the two marks is deliberate hysteresis against delete/write
// churn at the boundary.
package quota

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/openpony/ponylog/internal/logging"
	"github.com/openpony/ponylog/internal/session"
)

var log = logging.Component("quota")

// StatFunc reports total and available bytes for the filesystem backing
// dir. Injectable so tests can simulate any usage level.
type StatFunc func(dir string) (total, avail uint64, err error)

// statfs is the default StatFunc.
func statfs(dir string) (uint64, uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, 0, fmt.Errorf("statfs %s: %w", dir, err)
	}
	bsize := uint64(st.Bsize)
	return st.Blocks * bsize, st.Bavail * bsize, nil
}

// Options configures the quota manager.
type Options struct {
	// Dir is the session directory to police.
	Dir string

	// HighWaterMark is the usage fraction (0..1) that triggers eviction.
	HighWaterMark float64

	// LowWaterMark is the usage fraction eviction drives down to.
	// Must be below HighWaterMark.
	LowWaterMark float64

	// Stat overrides the filesystem stat function. Nil uses statfs.
	Stat StatFunc
}

// Result describes one eviction pass.
type Result struct {
	Deleted    int
	BytesFreed int64
	Usage      float64 // Usage fraction after the pass
	Exhausted  bool    // Still above the high mark with nothing left to delete
}

// Stats holds cumulative manager statistics.
type Stats struct {
	LastRun         time.Time
	Passes          int64
	SessionsDeleted int64
	BytesFreed      int64
	Errors          int64
}

// Manager enforces the storage quota.
type Manager struct {
	mu    sync.Mutex
	opts  Options
	stats Stats
}

// New creates a quota manager. Returns an error when the water marks are
// not ordered as required.
func New(opts Options) (*Manager, error) {
	if opts.HighWaterMark <= 0 || opts.HighWaterMark > 1 {
		return nil, fmt.Errorf("invalid high water mark: %v", opts.HighWaterMark)
	}
	if opts.LowWaterMark <= 0 || opts.LowWaterMark >= opts.HighWaterMark {
		return nil, fmt.Errorf("low water mark %v must be below high water mark %v",
			opts.LowWaterMark, opts.HighWaterMark)
	}
	if opts.Stat == nil {
		opts.Stat = statfs
	}

	return &Manager{opts: opts}, nil
}

// UsagePercent returns the used fraction (0..1) of the backing filesystem.
func (m *Manager) UsagePercent() (float64, error) {
	total, avail, err := m.opts.Stat(m.opts.Dir)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, fmt.Errorf("filesystem reports zero size for %s", m.opts.Dir)
	}
	return float64(total-avail) / float64(total), nil
}

// Check runs one eviction pass. activePath is the currently open session
// file ("" when idle); it is skipped unconditionally. Returns whether any
// deletion occurred.
func (m *Manager) Check(activePath string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.LastRun = time.Now()
	m.stats.Passes++

	usage, err := m.UsagePercent()
	if err != nil {
		m.stats.Errors++
		return Result{}, err
	}

	result := Result{Usage: usage}
	if usage < m.opts.HighWaterMark {
		return result, nil
	}

	log.Warn("storage high water mark crossed",
		"usage_pct", fmt.Sprintf("%.1f", usage*100),
		"high_pct", fmt.Sprintf("%.1f", m.opts.HighWaterMark*100))

	sessions, err := session.List(m.opts.Dir)
	if err != nil {
		m.stats.Errors++
		return result, err
	}

	for _, s := range sessions {
		if usage <= m.opts.LowWaterMark {
			break
		}
		if s.Path == activePath {
			continue
		}

		if err := session.Remove(s.Path); err != nil {
			log.Error("delete session failed", "file", s.Name, "error", err)
			m.stats.Errors++
			continue
		}

		result.Deleted++
		result.BytesFreed += s.Size
		m.stats.SessionsDeleted++
		m.stats.BytesFreed += s.Size
		log.Info("evicted session", "file", s.Name, "size", s.Size)

		if usage, err = m.UsagePercent(); err != nil {
			m.stats.Errors++
			return result, err
		}
	}

	result.Usage = usage
	if usage >= m.opts.HighWaterMark {
		// Nothing left to delete but still over budget; typically the
		// active session filling the card. Reportable, not fatal.
		result.Exhausted = true
		log.Warn("storage still above high water mark after eviction",
			"usage_pct", fmt.Sprintf("%.1f", usage*100),
			"deleted", result.Deleted)
	}

	return result, nil
}

// Stats returns cumulative statistics.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
