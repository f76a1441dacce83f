package session

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pierrec/lz4/v4"

	"github.com/openpony/ponylog/internal/frame"
	"github.com/openpony/ponylog/internal/logging"
	"github.com/openpony/ponylog/internal/telemetry"
)

var log = logging.Component("session")

// Options configures the session writer.
type Options struct {
	// Dir is the directory session files are created in.
	Dir string

	// Compression enables LZ4 block compression. When disabled, or when a
	// block does not compress, blocks are written raw with the sentinel
	// marker so a flush never loses data.
	Compression bool

	// FlushFrames is the number of frames accumulated before a block is
	// written. Default: 16 (1 KiB of frame data).
	FlushFrames int

	// Manifest, if non-nil, is written to the session's sidecar file at
	// Start. Purely descriptive; not required for decoding.
	Manifest *Manifest
}

// DefaultOptions returns default writer options for the given directory.
func DefaultOptions(dir string) Options {
	return Options{
		Dir:         dir,
		Compression: true,
		FlushFrames: 16,
	}
}

// Summary holds the final counters of a stopped session.
type Summary struct {
	Path     string
	Name     string
	Frames   uint64
	Blocks   uint64
	Bytes    int64
	Started  time.Time
	Duration time.Duration
}

// Writer owns at most one open session file at a time and is the only
// component that touches it. State machine: Idle → Open → Idle.
//
// Writer is safe for concurrent use, but it is not reentrant and there is
// exactly one instance per daemon.
type Writer struct {
	mu   sync.Mutex
	opts Options

	file    *os.File
	path    string
	open    bool
	started time.Time

	// Frame accumulation buffer, flushed as one block.
	buf []byte

	// Scratch for LZ4 output, reused across flushes.
	compressBuf []byte
	compressor  lz4.Compressor

	frameCount uint64
	blockCount uint64
	bytesOut   int64

	// lastErr records the storage fault that disabled the previous
	// session, for status reporting. Cleared on the next Start.
	lastErr error
}

// NewWriter creates a Writer. The directory is created if missing.
func NewWriter(opts Options) (*Writer, error) {
	if opts.FlushFrames <= 0 {
		opts.FlushFrames = 16
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	bufSize := opts.FlushFrames * frame.Size
	return &Writer{
		opts:        opts,
		buf:         make([]byte, 0, bufSize),
		compressBuf: make([]byte, lz4.CompressBlockBound(bufSize)),
	}, nil
}

// Start opens a new session. A non-empty nameHint overrides the generated
// sequential name. Starting while a session is open fails with
// ErrSessionOpen and has no side effects on the open session.
func (w *Writer) Start(nameHint string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.open {
		return "", ErrSessionOpen
	}

	name := nameHint
	if name == "" {
		name = nextSessionName(w.opts.Dir, time.Now())
	} else {
		name = sanitizeHint(name)
	}
	path := filepath.Join(w.opts.Dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create session %s: %w", path, err)
	}

	if _, err := f.Write(Magic[:]); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write session header: %w", err)
	}

	w.file = f
	w.path = path
	w.open = true
	w.started = time.Now()
	w.buf = w.buf[:0]
	w.frameCount = 0
	w.blockCount = 0
	w.bytesOut = int64(len(Magic))
	w.lastErr = nil

	if w.opts.Manifest != nil {
		if err := w.opts.Manifest.WriteFile(manifestPath(path)); err != nil {
			// Descriptive metadata only; the session goes on without it.
			log.Warn("write hardware manifest failed", "error", err)
		}
	}

	log.Info("session started", "file", name, "compression", w.opts.Compression)
	return path, nil
}

// Log encodes the sample and appends it to the write buffer, flushing a
// block when the buffer is full. Returns false only if no session is open.
func (w *Writer) Log(s *telemetry.Sample) bool {
	f := frame.FromSample(s)
	return w.LogFrame(&f)
}

// LogFrame appends an already-built frame.
func (w *Writer) LogFrame(f *frame.Frame) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.open {
		return false
	}

	encoded := frame.Encode(f)
	w.buf = append(w.buf, encoded[:]...)
	w.frameCount++

	if len(w.buf) >= w.opts.FlushFrames*frame.Size {
		if err := w.flushLocked(); err != nil {
			// Storage fault: disable logging until the next explicit
			// Start. The counters stay consistent with what is on disk
			// and the fault stays visible through Err.
			log.Error("flush failed, session disabled", "file", w.path, "error", err)
			w.lastErr = err
			w.closeLocked()
		}
	}

	return true
}

// Flush writes the accumulated buffer as one block. A no-op when the
// buffer is empty or no session is open.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.open {
		return ErrNoSession
	}
	return w.flushLocked()
}

// flushLocked writes one block. On the compressed path a failed or
// ineffective compression falls back to the raw sentinel block, so data is
// only ever lost to an actual storage fault.
func (w *Writer) flushLocked() error {
	if len(w.buf) == 0 {
		return nil
	}

	payload := w.buf
	compressedSize := uint32(RawBlockSentinel)

	if w.opts.Compression {
		n, err := w.compressor.CompressBlock(w.buf, w.compressBuf)
		if err == nil && n > 0 && n < len(w.buf) {
			payload = w.compressBuf[:n]
			compressedSize = uint32(n)
		} else if err != nil {
			log.Warn("compression failed, writing raw block", "error", err)
		}
	}

	var header [blockHeaderSize]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(w.buf)))
	binary.LittleEndian.PutUint32(header[4:8], compressedSize)

	if _, err := w.file.Write(header[:]); err != nil {
		return fmt.Errorf("write block header: %w", err)
	}
	if _, err := w.file.Write(payload); err != nil {
		return fmt.Errorf("write block payload: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("sync session file: %w", err)
	}

	w.bytesOut += int64(blockHeaderSize + len(payload))
	w.blockCount++
	w.buf = w.buf[:0]

	return nil
}

// Stop flushes, closes the file and transitions back to Idle, returning
// the final session counters.
func (w *Writer) Stop() (Summary, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.open {
		return Summary{}, ErrNoSession
	}

	flushErr := w.flushLocked()

	summary := Summary{
		Path:     w.path,
		Name:     filepath.Base(w.path),
		Frames:   w.frameCount,
		Blocks:   w.blockCount,
		Bytes:    w.bytesOut,
		Started:  w.started,
		Duration: time.Since(w.started),
	}

	w.closeLocked()

	log.Info("session stopped",
		"file", summary.Name,
		"frames", summary.Frames,
		"bytes", summary.Bytes,
		"duration", summary.Duration.Round(time.Second))

	if flushErr != nil {
		return summary, fmt.Errorf("final flush: %w", flushErr)
	}
	return summary, nil
}

func (w *Writer) closeLocked() {
	if w.file != nil {
		w.file.Close()
		w.file = nil
	}
	w.open = false
	w.buf = w.buf[:0]
}

// IsOpen reports whether a session is active.
func (w *Writer) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open
}

// Active returns the path of the open session file, if any.
func (w *Writer) Active() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path, w.open
}

// Counters returns the running counters of the open session (zero when
// idle).
func (w *Writer) Counters() (frames, blocks uint64, bytes int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.open {
		return 0, 0, 0
	}
	return w.frameCount, w.blockCount, w.bytesOut
}

// Err returns the storage fault that disabled the last session, or nil.
// Non-nil only after a mid-session flush failure; reset by Start.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// manifestPath derives the sidecar path for a session file.
func manifestPath(sessionPath string) string {
	return sessionPath[:len(sessionPath)-len(FileExt)] + ManifestExt
}
