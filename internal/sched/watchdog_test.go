package sched

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileWatchdog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watchdog")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	wd, err := OpenFileWatchdog(path)
	if err != nil {
		t.Fatalf("OpenFileWatchdog: %v", err)
	}

	if err := wd.Feed(); err != nil {
		t.Errorf("Feed: %v", err)
	}
	if err := wd.Feed(); err != nil {
		t.Errorf("Feed: %v", err)
	}
	if err := wd.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	// Two pets then the magic close character.
	if string(data) != "..V" {
		t.Errorf("unexpected device writes %q", data)
	}

	// Feed after close fails, a second close is a no-op.
	if err := wd.Feed(); err == nil {
		t.Error("Feed after Close should fail")
	}
	if err := wd.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}

func TestOpenFileWatchdog_Missing(t *testing.T) {
	if _, err := OpenFileWatchdog(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("missing device should fail")
	}
}

func TestNopWatchdog(t *testing.T) {
	var wd Watchdog = NopWatchdog{}
	if err := wd.Feed(); err != nil {
		t.Errorf("Feed: %v", err)
	}
	if err := wd.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
