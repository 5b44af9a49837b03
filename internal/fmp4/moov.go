package fmp4

import "encoding/binary"

// ExtractTimescales returns the timescale of every track declared in the
// initialization segment's moov box, keyed by track id. A track is emitted
// only when both its tkhd track id and a positive mdhd timescale were found;
// partial or zero results are omitted, never defaulted. The map is extracted
// once per capture session and read-only afterward.
func ExtractTimescales(moov *Box) map[uint32]uint32 {
	out := make(map[uint32]uint32)

	forEachChild(moov.Data, func(typ string, buf []byte, off, length int) {
		if typ != "trak" {
			return
		}

		var trackID, timescale uint32
		var haveID bool

		forEachChild(buf[off:off+length], func(ct string, cbuf []byte, coff, clen int) {
			switch ct {
			case "tkhd":
				trackID, haveID = parseTkhdTrackID(cbuf, coff, clen)
			case "mdia":
				forEachChild(cbuf[coff:coff+clen], func(mt string, mbuf []byte, moff, mlen int) {
					if mt == "mdhd" && timescale == 0 {
						timescale, _ = parseMdhdTimescale(mbuf, moff, mlen)
					}
				})
			}
		})

		if haveID && timescale > 0 {
			out[trackID] = timescale
		}
	})

	return out
}

// parseTkhdTrackID reads track_ID from a tkhd box. Version 1 widens the two
// preceding time fields to 64 bits, shifting track_ID from offset 20 to 28.
func parseTkhdTrackID(buf []byte, off, length int) (uint32, bool) {
	end := off + length
	if off+12 > end || end > len(buf) {
		return 0, false
	}
	pos := off + 20
	if buf[off+8] == 1 {
		pos = off + 28
	}
	if pos+4 > end {
		return 0, false
	}
	return binary.BigEndian.Uint32(buf[pos:]), true
}

// parseMdhdTimescale reads timescale from an mdhd box, with the same
// version-dependent offset shift as tkhd.
func parseMdhdTimescale(buf []byte, off, length int) (uint32, bool) {
	end := off + length
	if off+12 > end || end > len(buf) {
		return 0, false
	}
	pos := off + 20
	if buf[off+8] == 1 {
		pos = off + 28
	}
	if pos+4 > end {
		return 0, false
	}
	return binary.BigEndian.Uint32(buf[pos:]), true
}
