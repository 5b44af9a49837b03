package fmp4

import "encoding/binary"

// Test fixture builders. Boxes are assembled byte by byte so tests can
// exercise every optional-field layout, plus truncated and corrupt shapes
// that a real muxer would never produce.

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func u64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// fullHeader returns the 4-byte version/flags prefix of a FullBox.
func fullHeader(version byte, flags uint32) []byte {
	return []byte{version, byte(flags >> 16), byte(flags >> 8), byte(flags)}
}

// buildBox prepends a standard 8-byte header to the concatenated parts.
func buildBox(typ string, parts ...[]byte) []byte {
	size := 8
	for _, p := range parts {
		size += len(p)
	}
	b := make([]byte, 0, size)
	b = append(b, u32(uint32(size))...)
	b = append(b, typ...)
	for _, p := range parts {
		b = append(b, p...)
	}
	return b
}

// buildLargeBox builds a box with a 16-byte extended-size header.
func buildLargeBox(typ string, payload []byte) []byte {
	size := uint64(16 + len(payload))
	b := make([]byte, 0, size)
	b = append(b, u32(1)...)
	b = append(b, typ...)
	b = append(b, u64(size)...)
	b = append(b, payload...)
	return b
}

// buildTfhd builds a tfhd with the given flag bits; optional holds the
// flagged optional fields, already encoded, in flag-bit order.
func buildTfhd(flags uint32, trackID uint32, optional ...[]byte) []byte {
	parts := [][]byte{fullHeader(0, flags), u32(trackID)}
	parts = append(parts, optional...)
	return buildBox("tfhd", parts...)
}

// buildTrun builds a trun with the given flag bits; fields holds data_offset,
// first_sample_flags, and per-sample entries, already encoded, in order.
func buildTrun(flags uint32, sampleCount uint32, fields ...[]byte) []byte {
	parts := [][]byte{fullHeader(0, flags), u32(sampleCount)}
	parts = append(parts, fields...)
	return buildBox("trun", parts...)
}

func buildTfdt(version byte, t uint64) []byte {
	if version == 0 {
		return buildBox("tfdt", fullHeader(0, 0), u32(uint32(t)))
	}
	return buildBox("tfdt", fullHeader(1, 0), u64(t))
}

func buildTraf(children ...[]byte) []byte {
	return buildBox("traf", children...)
}

func buildMoof(seq uint32, trafs ...[]byte) []byte {
	parts := [][]byte{buildBox("mfhd", fullHeader(0, 0), u32(seq))}
	parts = append(parts, trafs...)
	return buildBox("moof", parts...)
}

func moofBox(seq uint32, trafs ...[]byte) *Box {
	data := buildMoof(seq, trafs...)
	return &Box{Type: "moof", Size: uint64(len(data)), Data: data}
}

func buildTkhd(version byte, trackID uint32) []byte {
	if version == 1 {
		// 64-bit creation and modification times shift track_ID to offset 28.
		return buildBox("tkhd", fullHeader(1, 7), u64(0), u64(0), u32(trackID), make([]byte, 68))
	}
	return buildBox("tkhd", fullHeader(0, 7), u32(0), u32(0), u32(trackID), make([]byte, 64))
}

func buildMdhd(version byte, timescale uint32) []byte {
	if version == 1 {
		return buildBox("mdhd", fullHeader(1, 0), u64(0), u64(0), u32(timescale), u64(0), u32(0))
	}
	return buildBox("mdhd", fullHeader(0, 0), u32(0), u32(0), u32(timescale), u32(0), u32(0))
}

func buildTrak(version byte, trackID, timescale uint32) []byte {
	return buildBox("trak",
		buildTkhd(version, trackID),
		buildBox("mdia", buildMdhd(version, timescale)),
	)
}

func buildMoov(traks ...[]byte) []byte {
	parts := [][]byte{buildBox("mvhd", fullHeader(0, 0), make([]byte, 96))}
	parts = append(parts, traks...)
	return buildBox("moov", parts...)
}

func moovBox(traks ...[]byte) *Box {
	data := buildMoov(traks...)
	return &Box{Type: "moov", Size: uint64(len(data)), Data: data}
}
