package fmp4

import (
	"bytes"
	"testing"
)

func TestRewriteFragment_ZeroOffsetIsIdentity(t *testing.T) {
	t.Parallel()

	for _, version := range []byte{0, 1} {
		moof := moofBox(1, buildTraf(
			buildTfhd(tfhdDefaultSampleDuration, 1, u32(512)),
			buildTfdt(version, 90000),
			buildTrun(0, 5),
		))
		original := append([]byte{}, moof.Data...)

		results := RewriteFragment(moof, nil)

		if !bytes.Equal(moof.Data, original) {
			t.Errorf("version %d: zero offset changed the fragment bytes", version)
		}
		got, ok := results[1]
		if !ok {
			t.Fatalf("version %d: no result for track 1", version)
		}
		if got.BaseDecodeTime != 90000 || got.Duration != 2560 {
			t.Errorf("version %d: got %+v, want {90000 2560}", version, got)
		}
	}
}

func TestRewriteFragment_OffsetRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		version  byte
		original uint64
		offset   uint64
	}{
		{"v0 small", 0, 1000, 500},
		{"v0 large 32-bit result", 0, 1 << 30, 1 << 31},
		{"v1 small", 1, 1000, 500},
		{"v1 crosses 32 bits", 1, 0xFFFFFF00, 0x200},
		{"v1 beyond 2^53", 1, 1 << 60, 1 << 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			moof := moofBox(1, buildTraf(
				buildTfhd(0, 6),
				buildTfdt(tt.version, tt.original),
				buildTrun(trunSampleDuration, 1, u32(512)),
			))

			results := RewriteFragment(moof, map[uint32]uint64{6: tt.offset})
			if results[6].BaseDecodeTime != tt.original {
				t.Fatalf("reported original %d, want %d", results[6].BaseDecodeTime, tt.original)
			}

			// Read the rewritten value back with a second zero-offset pass.
			readback := RewriteFragment(moof, nil)
			if got, want := readback[6].BaseDecodeTime, tt.original+tt.offset; got != want {
				t.Errorf("rewritten tfdt = %d, want %d", got, want)
			}
		})
	}
}

func TestRewriteFragment_MultiTrack(t *testing.T) {
	t.Parallel()

	moof := moofBox(1,
		buildTraf(
			buildTfhd(0, 1),
			buildTfdt(1, 180000),
			buildTrun(trunSampleDuration, 2, u32(3000), u32(3000)),
		),
		buildTraf(
			buildTfhd(tfhdDefaultSampleDuration, 2, u32(1024)),
			buildTfdt(0, 32000),
			buildTrun(0, 10),
		),
	)

	offsets := map[uint32]uint64{1: 90000, 2: 16000}
	results := RewriteFragment(moof, offsets)

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if r := results[1]; r.BaseDecodeTime != 180000 || r.Duration != 6000 {
		t.Errorf("track 1: %+v", r)
	}
	if r := results[2]; r.BaseDecodeTime != 32000 || r.Duration != 10240 {
		t.Errorf("track 2: %+v", r)
	}

	readback := RewriteFragment(moof, nil)
	if readback[1].BaseDecodeTime != 270000 || readback[2].BaseDecodeTime != 48000 {
		t.Errorf("per-track offsets misapplied: %+v", readback)
	}

	// The offsets map belongs to the caller and is read-only here.
	if offsets[1] != 90000 || offsets[2] != 16000 || len(offsets) != 2 {
		t.Error("offsets map was mutated")
	}
}

func TestRewriteFragment_UnknownTrackGetsZeroOffset(t *testing.T) {
	t.Parallel()

	moof := moofBox(1, buildTraf(
		buildTfhd(0, 3),
		buildTfdt(0, 5000),
		buildTrun(trunSampleDuration, 1, u32(100)),
	))

	RewriteFragment(moof, map[uint32]uint64{99: 77777})
	readback := RewriteFragment(moof, nil)
	if readback[3].BaseDecodeTime != 5000 {
		t.Errorf("track without an offset entry must be untouched, got %d", readback[3].BaseDecodeTime)
	}
}

func TestRewriteFragment_DurationAcrossMultipleTruns(t *testing.T) {
	t.Parallel()

	moof := moofBox(1, buildTraf(
		buildTfhd(tfhdDefaultSampleDuration, 1, u32(512)),
		buildTfdt(0, 0),
		buildTrun(0, 3),
		buildTrun(trunSampleDuration, 2, u32(100), u32(200)),
	))

	results := RewriteFragment(moof, nil)
	if got, want := results[1].Duration, uint64(3*512+300); got != want {
		t.Errorf("duration = %d, want %d", got, want)
	}
}

func TestRewriteFragment_TrafWithoutTfdtOmitted(t *testing.T) {
	t.Parallel()

	moof := moofBox(1,
		buildTraf(
			buildTfhd(0, 1),
			buildTrun(trunSampleDuration, 1, u32(100)),
		),
		buildTraf(
			buildTfhd(0, 2),
			buildTfdt(0, 700),
			buildTrun(trunSampleDuration, 1, u32(100)),
		),
	)

	results := RewriteFragment(moof, nil)
	if _, ok := results[1]; ok {
		t.Error("traf without tfdt must not produce a result")
	}
	if results[2].BaseDecodeTime != 700 {
		t.Error("sibling traf parsing must continue unaffected")
	}
}
