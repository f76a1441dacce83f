package sched

import (
	"fmt"
	"os"
	"sync"
)

// Watchdog is fed from the acquisition task. A stalled producer stops
// feeding and the underlying mechanism resets the system.
type Watchdog interface {
	Feed() error
	Close() error
}

// NopWatchdog satisfies Watchdog without any hardware behind it.
type NopWatchdog struct{}

func (NopWatchdog) Feed() error  { return nil }
func (NopWatchdog) Close() error { return nil }

// FileWatchdog feeds a Linux watchdog device such as /dev/watchdog.
type FileWatchdog struct {
	mu   sync.Mutex
	file *os.File
}

// OpenFileWatchdog opens the watchdog device. Opening arms the timer.
func OpenFileWatchdog(path string) (*FileWatchdog, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open watchdog: %w", err)
	}
	return &FileWatchdog{file: f}, nil
}

// Feed pets the watchdog.
func (w *FileWatchdog) Feed() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return fmt.Errorf("watchdog closed")
	}
	_, err := w.file.Write([]byte{'.'})
	return err
}

// Close disarms the watchdog with the magic close character, then closes
// the device.
func (w *FileWatchdog) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	// 'V' tells the driver this is an orderly shutdown.
	if _, err := w.file.Write([]byte{'V'}); err != nil {
		w.file.Close()
		w.file = nil
		return err
	}
	err := w.file.Close()
	w.file = nil
	return err
}
