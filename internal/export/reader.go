package export

import (
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
)

// FrameReader reads frame rows back from a Parquet file.
type FrameReader struct {
	path   string
	file   *os.File
	reader *parquet.GenericReader[FrameRow]
}

// NewFrameReader opens a Parquet file for reading.
func NewFrameReader(path string) (*FrameReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return &FrameReader{
		path:   path,
		file:   f,
		reader: parquet.NewGenericReader[FrameRow](f),
	}, nil
}

// ReadAll reads every row in the file.
func (r *FrameReader) ReadAll() ([]FrameRow, error) {
	var rows []FrameRow
	buf := make([]FrameRow, 1024)

	for {
		n, err := r.reader.Read(buf)
		rows = append(rows, buf[:n]...)
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, fmt.Errorf("read rows: %w", err)
		}
	}
}

// NumRows returns the total row count.
func (r *FrameReader) NumRows() int64 {
	return r.reader.NumRows()
}

// Close closes the reader and the underlying file.
func (r *FrameReader) Close() error {
	if err := r.reader.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}
