package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tabcast/tabcast/internal/fmp4"
)

const readBufSize = 32 * 1024

// Session owns one capture stream's parser and continuity state. All methods
// except MarkDiscontinuity and Snapshot must be called from the single
// goroutine that drives the session; independent sessions are fully
// independent and may run in parallel.
type Session struct {
	log  *slog.Logger
	key  string
	sink Sink

	parser *fmp4.Parser

	// Continuity state. A track is "seeded" once it has an offsets entry;
	// a discontinuity unseeds every track so offsets are re-derived against
	// nextExpected on first sight.
	offsets      map[uint32]uint64
	nextExpected map[uint32]uint64
	timescales   map[uint32]uint32

	pendingFtyp []byte
	pendingMoof *fmp4.Box

	startTime       time.Time
	discontinuity   atomic.Bool
	bytesIn         atomic.Int64
	boxes           atomic.Int64
	fragments       atomic.Int64
	keyframes       atomic.Int64
	undetermined    atomic.Int64
	discontinuities atomic.Int64
}

// New creates a Session forwarding parsed output to sink. If log is nil,
// slog.Default() is used.
func New(key string, sink Sink, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	s := &Session{
		log:          log.With("component", "session", "key", key),
		key:          key,
		sink:         sink,
		offsets:      make(map[uint32]uint64),
		nextExpected: make(map[uint32]uint64),
		startTime:    time.Now(),
	}
	s.parser = fmp4.NewParser(s.handleBox)
	return s
}

// Push feeds one chunk of capture output into the session. Chunk boundaries
// carry no meaning; any complete boxes are processed and forwarded before
// Push returns.
func (s *Session) Push(chunk []byte) {
	s.bytesIn.Add(int64(len(chunk)))
	s.parser.Push(chunk)
}

// Run reads chunks from r until EOF or context cancellation. It is the
// common way to drive a session from a capture producer's pipe.
func (s *Session) Run(ctx context.Context, r io.Reader) error {
	buf := make([]byte, readBufSize)
	for {
		if ctx.Err() != nil {
			s.Close()
			return ctx.Err()
		}
		n, err := r.Read(buf)
		if n > 0 {
			s.Push(buf[:n])
		}
		if err != nil {
			s.Close()
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("session %s: read: %w", s.key, err)
		}
	}
}

// Close flushes a pending unpaired moof and discards buffered partial bytes.
// The session must not be pushed to afterward.
func (s *Session) Close() {
	if s.pendingMoof != nil {
		s.emitFragment(s.pendingMoof, nil)
		s.pendingMoof = nil
	}
	s.parser.Flush()
}

// MarkDiscontinuity tells the session the capture source was replaced (for
// example a new browser tab). On the next sight of each track its continuity
// offset is re-derived so rewritten timestamps continue seamlessly from the
// previous source's timeline. Safe to call from any goroutine.
func (s *Session) MarkDiscontinuity() {
	s.discontinuity.Store(true)
}

// Snapshot returns the session's counters.
func (s *Session) Snapshot() Stats {
	return Stats{
		BytesIn:         s.bytesIn.Load(),
		Boxes:           s.boxes.Load(),
		Fragments:       s.fragments.Load(),
		Keyframes:       s.keyframes.Load(),
		Undetermined:    s.undetermined.Load(),
		Discontinuities: s.discontinuities.Load(),
		UptimeMs:        time.Since(s.startTime).Milliseconds(),
	}
}

func (s *Session) handleBox(b fmp4.Box) {
	s.boxes.Add(1)

	switch b.Type {
	case "ftyp":
		s.pendingFtyp = b.Data
	case "moov":
		s.handleMoov(b)
	case "moof":
		if s.pendingMoof != nil {
			// Previous moof never got its mdat; forward it rather than
			// silently dropping a fragment's metadata.
			s.log.Debug("moof without mdat", "size", s.pendingMoof.Size)
			s.emitFragment(s.pendingMoof, nil)
		}
		moof := b
		s.pendingMoof = &moof
	case "mdat":
		if s.pendingMoof == nil {
			s.log.Debug("orphan mdat dropped", "size", b.Size)
			return
		}
		s.emitFragment(s.pendingMoof, b.Data)
		s.pendingMoof = nil
	default:
		// styp, sidx, free and friends carry nothing the segment writer needs.
	}
}

func (s *Session) handleMoov(b fmp4.Box) {
	if s.pendingMoof != nil {
		s.emitFragment(s.pendingMoof, nil)
		s.pendingMoof = nil
	}

	// A mid-stream moov means the source was replaced: refresh timescales
	// and bridge the timeline like any other discontinuity.
	if s.timescales != nil {
		s.log.Info("replacement initialization segment")
		s.discontinuity.Store(true)
	}

	s.timescales = fmp4.ExtractTimescales(&b)
	s.log.Info("initialization segment", "tracks", len(s.timescales))

	s.sink.WriteInit(InitSegment{
		Ftyp:       s.pendingFtyp,
		Moov:       b.Data,
		Timescales: s.timescales,
	})
	s.pendingFtyp = nil
}

func (s *Session) emitFragment(moof *fmp4.Box, mdat []byte) {
	// Classification reads the pre-rewrite byte image, so it runs before
	// any mutation.
	cls := fmp4.ClassifyFragment(moof)

	if s.discontinuity.Swap(false) {
		s.offsets = make(map[uint32]uint64)
		s.discontinuities.Add(1)
		s.log.Info("discontinuity, re-deriving track offsets")
	}

	// First pass with no offsets reads each traf's original decode time
	// without disturbing the bytes; unseeded tracks then get an offset that
	// lands them exactly on the expected continuation timestamp.
	originals := fmp4.RewriteFragment(moof, nil)
	for trackID, timing := range originals {
		if _, ok := s.offsets[trackID]; ok {
			continue
		}
		var offset uint64
		if next, ok := s.nextExpected[trackID]; ok {
			offset = next - timing.BaseDecodeTime // modular: offsets may be "negative"
		}
		s.offsets[trackID] = offset
		if offset != 0 {
			s.log.Debug("track offset seeded", "track", trackID, "offset", int64(offset))
		}
	}
	fmp4.RewriteFragment(moof, s.offsets)

	for trackID, timing := range originals {
		s.nextExpected[trackID] = timing.BaseDecodeTime + s.offsets[trackID] + timing.Duration
	}

	s.fragments.Add(1)
	switch cls {
	case fmp4.Keyframe:
		s.keyframes.Add(1)
	case fmp4.Undetermined:
		s.undetermined.Add(1)
	}

	s.sink.WriteFragment(Fragment{
		Moof:     moof.Data,
		Mdat:     mdat,
		Keyframe: cls,
		Tracks:   originals,
	})
}
