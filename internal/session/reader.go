package session

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"

	"github.com/openpony/ponylog/internal/frame"
)

// Reader decodes a session file block by block.
//
// Corruption is contained: a block with an implausible header aborts the
// read (lengths are unrecoverable), but a frame failing its checksum is
// skipped and counted, and decoding resumes with the next frame.
type Reader struct {
	path string
	file *os.File

	stats ReaderStats
}

// ReaderStats holds reader statistics.
type ReaderStats struct {
	BlocksRead    int64
	RawBlocks     int64
	FramesRead    int64
	CorruptFrames int64
	BytesRead     int64
}

// NewReader opens a session file and verifies its header.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	var magic [len(Magic)]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("read session header: %w", err)
	}
	if magic != Magic {
		f.Close()
		return nil, fmt.Errorf("%w: %q", ErrBadMagic, magic[:])
	}

	return &Reader{path: path, file: f}, nil
}

// ReadBlock reads and inflates the next block, returning its frame bytes.
// Returns io.EOF when no blocks remain.
func (r *Reader) ReadBlock() ([]byte, error) {
	var header [blockHeaderSize]byte
	if _, err := io.ReadFull(r.file, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read block header: %w", err)
	}

	uncompressedSize := binary.LittleEndian.Uint32(header[0:4])
	compressedSize := binary.LittleEndian.Uint32(header[4:8])

	if uncompressedSize == 0 || uncompressedSize > maxBlockSize {
		return nil, fmt.Errorf("implausible block size: %d", uncompressedSize)
	}

	if compressedSize == RawBlockSentinel {
		// Raw block: payload length equals the uncompressed size.
		payload := make([]byte, uncompressedSize)
		if _, err := io.ReadFull(r.file, payload); err != nil {
			return nil, fmt.Errorf("read raw block: %w", err)
		}

		r.stats.BlocksRead++
		r.stats.RawBlocks++
		r.stats.BytesRead += int64(blockHeaderSize + len(payload))
		return payload, nil
	}

	if compressedSize > maxBlockSize {
		return nil, fmt.Errorf("implausible compressed size: %d", compressedSize)
	}

	compressed := make([]byte, compressedSize)
	if _, err := io.ReadFull(r.file, compressed); err != nil {
		return nil, fmt.Errorf("read compressed block: %w", err)
	}

	payload := make([]byte, uncompressedSize)
	n, err := lz4.UncompressBlock(compressed, payload)
	if err != nil {
		return nil, fmt.Errorf("decompress block: %w", err)
	}
	if uint32(n) != uncompressedSize {
		return nil, fmt.Errorf("block inflated to %d bytes, expected %d", n, uncompressedSize)
	}

	r.stats.BlocksRead++
	r.stats.BytesRead += int64(blockHeaderSize + len(compressed))
	return payload, nil
}

// ReadFrames reads and validates all frames in the session. Frames that
// fail their checksum are skipped and counted in the stats; the rest of
// the session is still returned.
func (r *Reader) ReadFrames() ([]frame.Frame, error) {
	var frames []frame.Frame

	for {
		payload, err := r.ReadBlock()
		if err == io.EOF {
			break
		}
		if err != nil {
			return frames, err
		}

		for off := 0; off+frame.Size <= len(payload); off += frame.Size {
			f, err := frame.Decode(payload[off : off+frame.Size])
			if err != nil {
				if errors.Is(err, frame.ErrChecksum) {
					r.stats.CorruptFrames++
					continue
				}
				return frames, err
			}
			frames = append(frames, f)
			r.stats.FramesRead++
		}
	}

	return frames, nil
}

// Stats returns reader statistics.
func (r *Reader) Stats() ReaderStats {
	return r.stats
}

// Path returns the session file path.
func (r *Reader) Path() string {
	return r.path
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// ReadSession is a convenience function to decode a whole session file.
func ReadSession(path string) ([]frame.Frame, ReaderStats, error) {
	r, err := NewReader(path)
	if err != nil {
		return nil, ReaderStats{}, err
	}
	defer r.Close()

	frames, err := r.ReadFrames()
	return frames, r.Stats(), err
}
