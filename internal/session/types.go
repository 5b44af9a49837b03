// Package session drives the fMP4 engine for one capture session: it feeds
// the box parser, pairs each moof with its mdat, classifies and rewrites
// fragments, and forwards the results to the downstream segment writer.
package session

import "github.com/tabcast/tabcast/internal/fmp4"

// Sink is the external segment writer's contract. WriteInit is called once
// when the initialization segment arrives, and again whenever a replacement
// source re-emits one mid-stream. WriteFragment is called once per moof, in
// stream order. Both are invoked from the goroutine driving the session.
type Sink interface {
	WriteInit(init InitSegment)
	WriteFragment(frag Fragment)
}

// InitSegment carries the stream's initialization boxes and the per-track
// timescales extracted from the moov.
type InitSegment struct {
	Ftyp       []byte // nil when the capture started past the ftyp
	Moov       []byte
	Timescales map[uint32]uint32
}

// Fragment is one rewritten moof plus its paired media data. Moof bytes have
// already had per-track continuity offsets applied; Mdat passes through
// unmodified. Tracks reports each track's pre-rewrite decode time and total
// sample duration.
type Fragment struct {
	Moof     []byte
	Mdat     []byte // nil when the source emitted no mdat for this moof
	Keyframe fmp4.Classification
	Tracks   map[uint32]fmp4.TrackTiming
}

// Stats is a point-in-time snapshot of session counters, suitable for JSON
// serialization.
type Stats struct {
	BytesIn         int64 `json:"bytesIn"`
	Boxes           int64 `json:"boxes"`
	Fragments       int64 `json:"fragments"`
	Keyframes       int64 `json:"keyframes"`
	Undetermined    int64 `json:"undetermined"`
	Discontinuities int64 `json:"discontinuities"`
	UptimeMs        int64 `json:"uptimeMs"`
}
