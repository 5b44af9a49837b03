package fmp4

import "encoding/binary"

// TrackTiming reports one track fragment's pre-rewrite decode time and total
// sample duration, both in track timescale units. Decode times on long-lived
// captures exceed 2^53 at high timescales, so both fields are exact 64-bit
// integers end to end.
type TrackTiming struct {
	BaseDecodeTime uint64 // tfdt value before the offset was applied
	Duration       uint64 // summed over every trun in the traf
}

// RewriteFragment adds each track's continuity offset (0 when the track has
// no entry) to the tfdt base decode time of every traf in moof, mutating
// moof.Data in place; moof must therefore be a parser-emitted owned box, not
// a view of a caller-retained buffer. The returned map carries one entry per
// traf whose tfhd and tfdt both decoded, keyed by track id, so the caller
// can seed offsets and track continuation timestamps. The offsets map is
// never written.
//
// The capture source keeps all tracks on one wall-clock-derived timeline; a
// constant per-track additive offset is the only rewrite that bridges a
// source replacement without breaking that inter-track alignment.
func RewriteFragment(moof *Box, offsets map[uint32]uint64) map[uint32]TrackTiming {
	results := make(map[uint32]TrackTiming)

	forEachChild(moof.Data, func(typ string, buf []byte, off, length int) {
		if typ != "traf" {
			return
		}

		var info TfhdInfo
		var haveInfo, haveTfdt bool
		var timing TrackTiming

		forEachChild(buf[off:off+length], func(ct string, cbuf []byte, coff, clen int) {
			switch ct {
			case "tfhd":
				info, haveInfo = parseTfhd(cbuf, coff, clen)
			case "tfdt":
				if !haveInfo || haveTfdt {
					return
				}
				orig, ok := rewriteTfdt(cbuf, coff, clen, offsets[info.TrackID])
				if ok {
					timing.BaseDecodeTime = orig
					haveTfdt = true
				}
			case "trun":
				timing.Duration += trunDuration(cbuf, coff, clen, info.DefaultSampleDuration)
			}
		})

		if haveInfo && haveTfdt {
			results[info.TrackID] = timing
		}
	})

	return results
}

// rewriteTfdt adds delta to the baseMediaDecodeTime stored in the tfdt box
// at buf[off:off+length], preserving the version-dependent field width:
// version 0 holds a 32-bit value, version 1 a 64-bit value written as two
// big-endian 32-bit halves. Returns the pre-rewrite value.
func rewriteTfdt(buf []byte, off, length int, delta uint64) (uint64, bool) {
	end := off + length
	if off+12 > end || end > len(buf) {
		return 0, false
	}

	if buf[off+8] == 0 {
		if off+16 > end {
			return 0, false
		}
		orig := uint64(binary.BigEndian.Uint32(buf[off+12:]))
		binary.BigEndian.PutUint32(buf[off+12:], uint32(orig+delta))
		return orig, true
	}

	if off+20 > end {
		return 0, false
	}
	orig := uint64(binary.BigEndian.Uint32(buf[off+12:]))<<32 |
		uint64(binary.BigEndian.Uint32(buf[off+16:]))
	v := orig + delta
	binary.BigEndian.PutUint32(buf[off+12:], uint32(v>>32))
	binary.BigEndian.PutUint32(buf[off+16:], uint32(v))
	return orig, true
}
