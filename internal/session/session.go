// Package session implements the on-disk session file format and the
// writer/reader pair that owns it.
//
// A session file is one continuous logging run:
//
//	Header: 4 bytes magic "OPL1" (format version 1)
//	Blocks: [uncompressed_size u32][compressed_size u32][payload]
//
// All integers are little-endian. When compressed_size is the sentinel
// 0xFFFFFFFF the payload is raw, uncompressed_size bytes long; otherwise
// the payload is an LZ4 block that inflates to uncompressed_size bytes.
// Each inflated block is a run of fixed-size frames (see package frame),
// every frame carrying its own checksum so one corrupt frame never takes
// down the rest of the session.
package session

import (
	"errors"
)

// Magic is the 4-byte session file header, format version 1.
var Magic = [4]byte{'O', 'P', 'L', '1'}

const (
	// FileExt is the session file extension.
	FileExt = ".opl"

	// ManifestExt is the hardware manifest sidecar extension.
	ManifestExt = ".hw"

	// RawBlockSentinel in the compressed_size field marks an uncompressed
	// block whose payload length equals uncompressed_size.
	RawBlockSentinel = 0xFFFFFFFF

	// blockHeaderSize is two u32 length fields per block.
	blockHeaderSize = 8

	// maxBlockSize bounds a single block to keep a corrupt length field
	// from driving a huge allocation on read.
	maxBlockSize = 4 * 1024 * 1024

	// sessionPrefix is the common prefix of generated session file names.
	sessionPrefix = "session_"
)

var (
	// ErrSessionOpen is returned by Start when a session is already active.
	ErrSessionOpen = errors.New("session already open")

	// ErrNoSession is returned by operations that require an open session.
	ErrNoSession = errors.New("no session open")

	// ErrBadMagic is returned by the reader for files that do not carry
	// the OPL1 header.
	ErrBadMagic = errors.New("not a session file (bad magic)")
)
