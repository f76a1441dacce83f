package quota

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openpony/ponylog/internal/session"
)

// fakeFS simulates a filesystem whose usage tracks the session directory
// contents: every byte written counts against a fixed total.
type fakeFS struct {
	total uint64
	used  uint64 // Non-session usage
	dir   string
}

func (f *fakeFS) stat(dir string) (uint64, uint64, error) {
	used := f.used
	entries, err := os.ReadDir(f.dir)
	if err == nil {
		for _, e := range entries {
			if info, err := e.Info(); err == nil {
				used += uint64(info.Size())
			}
		}
	}
	if used > f.total {
		used = f.total
	}
	return f.total, f.total - used, nil
}

func writeSession(t *testing.T, dir, name string, size int, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
	mt := time.Now().Add(-age)
	if err := os.Chtimes(path, mt, mt); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestManager(t *testing.T, dir string, fs *fakeFS) *Manager {
	t.Helper()
	m, err := New(Options{
		Dir:           dir,
		HighWaterMark: 0.90,
		LowWaterMark:  0.75,
		Stat:          fs.stat,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestManager_WaterMarkValidation(t *testing.T) {
	if _, err := New(Options{Dir: "x", HighWaterMark: 0.5, LowWaterMark: 0.6}); err == nil {
		t.Error("low above high should fail")
	}
	if _, err := New(Options{Dir: "x", HighWaterMark: 1.5, LowWaterMark: 0.5}); err == nil {
		t.Error("high above 1 should fail")
	}
	if _, err := New(Options{Dir: "x", HighWaterMark: 0.9, LowWaterMark: 0}); err == nil {
		t.Error("zero low mark should fail")
	}
}

func TestManager_BelowHighMarkNoop(t *testing.T) {
	dir := t.TempDir()
	fs := &fakeFS{total: 1000, dir: dir}
	writeSession(t, dir, "session_00001.opl", 100, time.Hour)

	m := newTestManager(t, dir, fs)
	result, err := m.Check("")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if result.Deleted != 0 {
		t.Errorf("below high mark nothing should be deleted, got %d", result.Deleted)
	}
	if _, err := os.Stat(filepath.Join(dir, "session_00001.opl")); err != nil {
		t.Error("session should still exist")
	}
}

func TestManager_EvictsOldestFirstUntilLowMark(t *testing.T) {
	dir := t.TempDir()
	// 1000 byte filesystem, 550 bytes non-session baseline. Four 100 byte
	// sessions push usage to 95%. Low mark 75% needs usage <= 750, so
	// exactly two deletions suffice.
	fs := &fakeFS{total: 1000, used: 550, dir: dir}
	writeSession(t, dir, "session_00001.opl", 100, 4*time.Hour)
	writeSession(t, dir, "session_00002.opl", 100, 3*time.Hour)
	writeSession(t, dir, "session_00003.opl", 100, 2*time.Hour)
	writeSession(t, dir, "session_00004.opl", 100, 1*time.Hour)

	m := newTestManager(t, dir, fs)
	result, err := m.Check("")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}

	if result.Deleted != 2 {
		t.Errorf("expected exactly 2 deletions, got %d", result.Deleted)
	}
	if result.Exhausted {
		t.Error("pass should not be exhausted")
	}

	// The two oldest are gone, the two newest remain.
	for _, name := range []string{"session_00001.opl", "session_00002.opl"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("%s should be deleted", name)
		}
	}
	for _, name := range []string{"session_00003.opl", "session_00004.opl"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s should survive", name)
		}
	}

	stats := m.Stats()
	if stats.SessionsDeleted != 2 || stats.BytesFreed != 200 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestManager_NeverDeletesActiveSession(t *testing.T) {
	dir := t.TempDir()
	// The active session is the oldest file and usage cannot reach the
	// low mark without deleting it.
	fs := &fakeFS{total: 1000, used: 800, dir: dir}
	active := writeSession(t, dir, "session_00001.opl", 100, 2*time.Hour)
	writeSession(t, dir, "session_00002.opl", 50, time.Hour)

	m := newTestManager(t, dir, fs)
	result, err := m.Check(active)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}

	if _, err := os.Stat(active); err != nil {
		t.Fatal("active session must never be deleted")
	}
	if result.Deleted != 1 {
		t.Errorf("the inactive session should be deleted, got %d deletions", result.Deleted)
	}
	// 850/1000 is still above the low mark but nothing else can go.
	if !result.Exhausted {
		t.Error("pass should report exhaustion")
	}
}

func TestManager_ExhaustedWhenOnlyActiveRemains(t *testing.T) {
	dir := t.TempDir()
	fs := &fakeFS{total: 1000, used: 900, dir: dir}
	active := writeSession(t, dir, "session_00001.opl", 50, time.Hour)

	m := newTestManager(t, dir, fs)
	result, err := m.Check(active)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if result.Deleted != 0 {
		t.Errorf("nothing deletable, got %d deletions", result.Deleted)
	}
	if !result.Exhausted {
		t.Error("expected exhaustion")
	}
}

func TestManager_DeletesSidecarWithSession(t *testing.T) {
	dir := t.TempDir()
	fs := &fakeFS{total: 1000, used: 860, dir: dir}
	writeSession(t, dir, "session_00001.opl", 100, time.Hour)
	sidecar := filepath.Join(dir, "session_00001"+session.ManifestExt)
	if err := os.WriteFile(sidecar, []byte("OPHW"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := newTestManager(t, dir, fs)
	if _, err := m.Check(""); err != nil {
		t.Fatalf("Check: %v", err)
	}

	if _, err := os.Stat(sidecar); !os.IsNotExist(err) {
		t.Error("manifest sidecar should be deleted with its session")
	}
}
