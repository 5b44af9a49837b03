package fmp4

import "encoding/binary"

// Optional-field flag bits of the tfhd FullBox (ISO/IEC 14496-12 §8.8.7).
const (
	tfhdBaseDataOffset         = 0x000001
	tfhdSampleDescriptionIndex = 0x000002
	tfhdDefaultSampleDuration  = 0x000008
	tfhdDefaultSampleSize      = 0x000010
	tfhdDefaultSampleFlags     = 0x000020
)

// Optional-field flag bits of the trun FullBox (ISO/IEC 14496-12 §8.8.8).
const (
	trunDataOffset       = 0x000001
	trunFirstSampleFlags = 0x000004
	trunSampleDuration   = 0x000100
	trunSampleSize       = 0x000200
	trunSampleFlags      = 0x000400
	trunSampleCTS        = 0x000800
)

// TfhdInfo carries the track fragment header fields the keyframe classifier
// and timestamp rewriter need. It is derived once per traf and consumed by
// the sibling tfdt/trun parsing within that traf.
type TfhdInfo struct {
	TrackID               uint32
	DefaultSampleDuration uint32 // 0 when absent
	DefaultSampleFlags    uint32
	HasDefaultSampleFlags bool
}

func readFlags24(buf []byte, off int) uint32 {
	return uint32(buf[off])<<16 | uint32(buf[off+1])<<8 | uint32(buf[off+2])
}

// parseTfhd extracts the track id and default sample duration/flags from the
// tfhd box at buf[off:off+length]. Optional fields appear in flag-bit order;
// a flagged field whose bounds exceed the box is reported absent, and the
// fields already extracted are kept. ok is false only when even the fixed
// fields do not fit.
func parseTfhd(buf []byte, off, length int) (info TfhdInfo, ok bool) {
	end := off + length
	if off+16 > end || end > len(buf) {
		return TfhdInfo{}, false
	}
	flags := readFlags24(buf, off+9)
	info.TrackID = binary.BigEndian.Uint32(buf[off+12:])

	pos := off + 16
	if flags&tfhdBaseDataOffset != 0 {
		pos += 8
	}
	if flags&tfhdSampleDescriptionIndex != 0 {
		pos += 4
	}
	if flags&tfhdDefaultSampleDuration != 0 {
		if pos+4 > end {
			return info, true
		}
		info.DefaultSampleDuration = binary.BigEndian.Uint32(buf[pos:])
		pos += 4
	}
	if flags&tfhdDefaultSampleSize != 0 {
		pos += 4
	}
	if flags&tfhdDefaultSampleFlags != 0 {
		if pos+4 > end {
			return info, true
		}
		info.DefaultSampleFlags = binary.BigEndian.Uint32(buf[pos:])
		info.HasDefaultSampleFlags = true
	}
	return info, true
}

// firstSampleFlags resolves the sample flags of a trun's first sample from
// the trun box at buf[off:off+length]. Resolution order: an explicit
// first_sample_flags field is authoritative; otherwise the first per-sample
// flags entry; otherwise the enclosing tfhd's default_sample_flags. ok is
// false when no source yields a value (including sample_count == 0).
func firstSampleFlags(buf []byte, off, length int, tfhd TfhdInfo) (uint32, bool) {
	end := off + length
	if off+16 > end || end > len(buf) {
		return tfhdDefault(tfhd)
	}
	flags := readFlags24(buf, off+9)
	sampleCount := binary.BigEndian.Uint32(buf[off+12:])
	if sampleCount == 0 {
		return 0, false // no first sample, nothing to classify
	}

	pos := off + 16
	if flags&trunDataOffset != 0 {
		pos += 4
	}
	if flags&trunFirstSampleFlags != 0 {
		if pos+4 > end {
			return tfhdDefault(tfhd)
		}
		return binary.BigEndian.Uint32(buf[pos:]), true
	}
	if flags&trunSampleFlags != 0 {
		// Walk to the flags field of the first sample entry. Fields appear
		// in the fixed order duration, size, flags, composition offset.
		if flags&trunSampleDuration != 0 {
			pos += 4
		}
		if flags&trunSampleSize != 0 {
			pos += 4
		}
		if pos+4 > end {
			return tfhdDefault(tfhd)
		}
		return binary.BigEndian.Uint32(buf[pos:]), true
	}
	return tfhdDefault(tfhd)
}

func tfhdDefault(tfhd TfhdInfo) (uint32, bool) {
	if tfhd.HasDefaultSampleFlags {
		return tfhd.DefaultSampleFlags, true
	}
	return 0, false
}

// trunDuration returns the total sample duration declared by the trun box at
// buf[off:off+length]. Without per-sample durations the total is
// defaultDuration × sample_count; otherwise the leading duration field of
// each entry is summed. A trun whose entries are truncated contributes the
// partial sum of the entries that fit.
func trunDuration(buf []byte, off, length int, defaultDuration uint32) uint64 {
	end := off + length
	if off+16 > end || end > len(buf) {
		return 0
	}
	flags := readFlags24(buf, off+9)
	sampleCount := binary.BigEndian.Uint32(buf[off+12:])

	if flags&trunSampleDuration == 0 {
		return uint64(defaultDuration) * uint64(sampleCount)
	}

	pos := off + 16
	if flags&trunDataOffset != 0 {
		pos += 4
	}
	if flags&trunFirstSampleFlags != 0 {
		pos += 4
	}

	stride := 4 // duration is always present in this branch
	if flags&trunSampleSize != 0 {
		stride += 4
	}
	if flags&trunSampleFlags != 0 {
		stride += 4
	}
	if flags&trunSampleCTS != 0 {
		stride += 4
	}

	var total uint64
	for i := uint32(0); i < sampleCount; i++ {
		if pos+4 > end {
			break
		}
		total += uint64(binary.BigEndian.Uint32(buf[pos:]))
		pos += stride
	}
	return total
}
