package fmp4

// Classification is the three-valued result of fragment keyframe analysis.
// Undetermined is explicitly distinct from NotKeyframe so the segment writer
// can fall back to a conservative cut policy instead of assuming either.
type Classification int

const (
	Undetermined Classification = iota
	Keyframe
	NotKeyframe
)

func (c Classification) String() string {
	switch c {
	case Keyframe:
		return "keyframe"
	case NotKeyframe:
		return "not-keyframe"
	default:
		return "undetermined"
	}
}

// Sample-flag fields (ISO/IEC 14496-12 §8.8.3.1).
const (
	sampleDependsOnMask  = 0x03000000 // bits 25-24
	sampleDependsOnShift = 24
	sampleNonSyncMask    = 0x00010000 // bit 16, sample_is_non_sync_sample
)

// ClassifyFragment reports whether the fragment's first video sample is a
// sync sample. sample_depends_on is definitive when set (2 = independently
// decodable, 1 = dependent); when it is 0 the sample_is_non_sync_sample bit
// decides. A single non-keyframe signal is authoritative for the whole moof:
// only video tracks produce one, and audio tracks reporting keyframe-positive
// cannot outvote it.
func ClassifyFragment(moof *Box) Classification {
	result := Undetermined
	forEachChild(moof.Data, func(typ string, buf []byte, off, length int) {
		if typ != "traf" || result == NotKeyframe {
			return
		}
		switch classifyTraf(buf[off : off+length]) {
		case NotKeyframe:
			result = NotKeyframe
		case Keyframe:
			if result == Undetermined {
				result = Keyframe
			}
		}
	})
	return result
}

// classifyTraf resolves the first-sample flags of each trun in one traf.
// tfhd precedes trun per the mandated box ordering, so its defaults are
// available by the time the first trun is seen.
func classifyTraf(traf []byte) Classification {
	var tfhd TfhdInfo
	verdict := Undetermined

	forEachChild(traf, func(typ string, buf []byte, off, length int) {
		switch typ {
		case "tfhd":
			tfhd, _ = parseTfhd(buf, off, length)
		case "trun":
			if verdict != Undetermined {
				return
			}
			flags, ok := firstSampleFlags(buf, off, length, tfhd)
			if !ok {
				return
			}
			switch (flags & sampleDependsOnMask) >> sampleDependsOnShift {
			case 2:
				verdict = Keyframe
			case 1:
				verdict = NotKeyframe
			default:
				// Unknown dependency: only an explicit non-sync marking is
				// a signal; the zero-value "is a sync sample" default is not.
				if flags&sampleNonSyncMask != 0 {
					verdict = NotKeyframe
				}
			}
		}
	})
	return verdict
}
