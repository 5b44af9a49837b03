// Package fmp4 implements box-level parsing and rewriting of fragmented-MP4
// streams as produced by the browser capture layer. It splits an incoming
// byte stream into complete top-level boxes, classifies fragments by keyframe
// status, extracts per-track timescales from the initialization segment, and
// rewrites tfdt decode times to preserve continuity across source
// replacements. It does not decode sample data.
package fmp4

import "encoding/binary"

const (
	headerLen      = 8
	largeHeaderLen = 16
)

// Box is one complete ISO/IEC 14496-12 box. Data holds the entire box
// including its own header and is owned by the Box: the parser always emits
// a fresh buffer, never a view into its internal buffer or a caller's chunk,
// so in-place rewriting is safe.
type Box struct {
	Type string
	Size uint64
	Data []byte
}

type headerStatus int

const (
	hdrOK headerStatus = iota
	hdrNeedMore // fewer bytes than needed to decode the header
	hdrInvalid  // corrupt or unsupported size field
)

// readBoxHeader decodes the box header at off. A size field of 0 ("extends
// to end of stream") cannot be honored on a live stream, and largesize boxes
// over 4 GiB are treated as corrupt; both report hdrInvalid so the caller
// can resynchronize or stop.
func readBoxHeader(buf []byte, off int) (typ string, size uint64, hdrLen int, st headerStatus) {
	if off+headerLen > len(buf) {
		return "", 0, 0, hdrNeedMore
	}
	size32 := binary.BigEndian.Uint32(buf[off:])
	typ = string(buf[off+4 : off+8])

	switch size32 {
	case 0:
		return typ, 0, headerLen, hdrInvalid
	case 1:
		if off+largeHeaderLen > len(buf) {
			return "", 0, 0, hdrNeedMore
		}
		if binary.BigEndian.Uint32(buf[off+8:]) != 0 {
			return typ, 0, largeHeaderLen, hdrInvalid
		}
		size = uint64(binary.BigEndian.Uint32(buf[off+12:]))
		hdrLen = largeHeaderLen
	default:
		size = uint64(size32)
		hdrLen = headerLen
	}

	if size < uint64(hdrLen) {
		return typ, size, hdrLen, hdrInvalid
	}
	return typ, size, hdrLen, hdrOK
}

// forEachChild iterates the immediate children of a container box whose data
// begins with the container's own 8-byte header. The callback receives the
// shared buffer plus each child's offset and length so callers can form
// zero-copy subranges. Malformed or overrunning trailing data ends the walk
// silently; inside a container it means "end of children", not an error.
func forEachChild(data []byte, fn func(typ string, buf []byte, off, length int)) {
	off := headerLen
	for {
		typ, size, _, st := readBoxHeader(data, off)
		if st != hdrOK {
			return
		}
		if uint64(off)+size > uint64(len(data)) {
			return
		}
		fn(typ, data, off, int(size))
		off += int(size)
	}
}
