// Package export converts session files to Parquet and runs SQL over the
// result.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/openpony/ponylog/internal/frame"
	"github.com/openpony/ponylog/internal/logging"
	"github.com/openpony/ponylog/internal/session"
)

var log = logging.Component("export")

// ErrWriterClosed is returned when writing to a closed writer.
var ErrWriterClosed = fmt.Errorf("parquet writer is closed")

// CompressionType represents a Parquet compression algorithm.
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionZstd
	CompressionLZ4
	CompressionGzip
)

// ParseCompressionType parses a compression type string.
func ParseCompressionType(s string) CompressionType {
	switch s {
	case "snappy":
		return CompressionSnappy
	case "zstd":
		return CompressionZstd
	case "lz4":
		return CompressionLZ4
	case "gzip":
		return CompressionGzip
	case "none":
		return CompressionNone
	default:
		return CompressionZstd
	}
}

func getCompression(ct CompressionType) compress.Codec {
	switch ct {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionZstd:
		return &parquet.Zstd
	case CompressionLZ4:
		return &parquet.Lz4Raw
	case CompressionGzip:
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// Options configures the Parquet export.
type Options struct {
	Compression CompressionType
}

// DefaultOptions returns default export options.
func DefaultOptions() Options {
	return Options{Compression: CompressionZstd}
}

// FrameRow is one telemetry frame in Parquet form.
type FrameRow struct {
	Session     string  `parquet:"session,zstd"`
	TimestampUs int64   `parquet:"timestamp_us"`
	Latitude    float64 `parquet:"latitude"`
	Longitude   float64 `parquet:"longitude"`
	Altitude    float32 `parquet:"altitude"`
	Speed       float32 `parquet:"speed"`
	Sats        int32   `parquet:"sats"`
	AccelX      float32 `parquet:"accel_x"`
	AccelY      float32 `parquet:"accel_y"`
	AccelZ      float32 `parquet:"accel_z"`
	GyroX       float32 `parquet:"gyro_x"`
	GyroY       float32 `parquet:"gyro_y"`
	GyroZ       float32 `parquet:"gyro_z"`
	GTotal      float64 `parquet:"g_total"`
}

// FrameToRow converts a decoded frame to Parquet form.
func FrameToRow(sessionName string, f *frame.Frame) FrameRow {
	return FrameRow{
		Session:     sessionName,
		TimestampUs: int64(f.Timestamp * 1e6),
		Latitude:    f.Latitude,
		Longitude:   f.Longitude,
		Altitude:    f.Altitude,
		Speed:       f.Speed,
		Sats:        int32(f.Satellites),
		AccelX:      f.AccelX,
		AccelY:      f.AccelY,
		AccelZ:      f.AccelZ,
		GyroX:       f.GyroX,
		GyroY:       f.GyroY,
		GyroZ:       f.GyroZ,
		GTotal:      f.GTotal(),
	}
}

// FrameWriter writes frame rows to a Parquet file.
type FrameWriter struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	writer   *parquet.GenericWriter[FrameRow]
	rowCount int64
	closed   bool
}

// NewFrameWriter creates a Parquet writer at path.
func NewFrameWriter(path string, opts Options) (*FrameWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	writer := parquet.NewGenericWriter[FrameRow](f,
		parquet.Compression(getCompression(opts.Compression)))

	return &FrameWriter{path: path, file: f, writer: writer}, nil
}

// Write appends rows.
func (w *FrameWriter) Write(rows []FrameRow) error {
	if len(rows) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}

	n, err := w.writer.Write(rows)
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	w.rowCount += int64(n)
	return nil
}

// Close finalizes the Parquet file.
func (w *FrameWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close writer: %w", err)
	}
	return w.file.Close()
}

// RowCount returns the number of rows written.
func (w *FrameWriter) RowCount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rowCount
}

// Path returns the file path.
func (w *FrameWriter) Path() string {
	return w.path
}

// Result reports one session export.
type Result struct {
	Session       string
	Output        string
	Frames        int64
	CorruptFrames int64
}

// ExportSession decodes one session file and writes it as Parquet.
// Corrupt frames are skipped by the session reader and reported in the
// result.
func ExportSession(sessionPath, outputPath string, opts Options) (Result, error) {
	frames, rstats, err := session.ReadSession(sessionPath)
	if err != nil {
		return Result{}, fmt.Errorf("read session: %w", err)
	}

	name := filepath.Base(sessionPath)
	w, err := NewFrameWriter(outputPath, opts)
	if err != nil {
		return Result{}, err
	}

	rows := make([]FrameRow, len(frames))
	for i := range frames {
		rows[i] = FrameToRow(name, &frames[i])
	}

	if err := w.Write(rows); err != nil {
		w.Close()
		return Result{}, err
	}
	if err := w.Close(); err != nil {
		return Result{}, err
	}

	result := Result{
		Session:       name,
		Output:        outputPath,
		Frames:        int64(len(rows)),
		CorruptFrames: rstats.CorruptFrames,
	}
	log.Info("session exported",
		"session", result.Session,
		"frames", result.Frames,
		"corrupt_frames", result.CorruptFrames,
		"output", result.Output)
	return result, nil
}
