// fragprobe inspects a fragmented-MP4 capture dump. It prints every
// top-level box, per-track timescales from the initialization segment, and
// per-fragment keyframe classification and timing, optionally applying
// per-track continuity offsets and writing the rewritten stream back out.
//
// Usage:
//
//	fragprobe [-offset track=delta] [-out rewritten.mp4] [-q] [capture.mp4]
//
// With no file argument, the stream is read from stdin.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/tabcast/tabcast/internal/fmp4"
)

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	offsets := make(map[uint32]uint64)
	flag.Func("offset", "continuity offset as trackID=delta, repeatable", func(v string) error {
		track, delta, found := strings.Cut(v, "=")
		if !found {
			return errors.New("expected trackID=delta")
		}
		id, err := strconv.ParseUint(track, 10, 32)
		if err != nil {
			return fmt.Errorf("track id: %w", err)
		}
		d, err := strconv.ParseUint(delta, 10, 64)
		if err != nil {
			return fmt.Errorf("delta: %w", err)
		}
		offsets[uint32(id)] = d
		return nil
	})
	outPath := flag.String("out", "", "write the stream (with offsets applied) to this file")
	quiet := flag.Bool("q", false, "suppress per-box output, print only the summary")
	flag.Parse()

	in := os.Stdin
	name := "stdin"
	if flag.NArg() > 0 {
		f, err := os.Open(flag.Arg(0))
		if err != nil {
			slog.Error("open input", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
		name = flag.Arg(0)
	}

	var out io.Writer
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			slog.Error("create output", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	p := &probe{offsets: offsets, out: out, quiet: *quiet}
	parser := fmp4.NewParser(p.handleBox)

	buf := make([]byte, 64*1024)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			parser.Push(buf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Error("read input", "error", err)
				os.Exit(1)
			}
			break
		}
	}
	parser.Flush()

	fmt.Printf("%s: %d boxes, %d fragments (%d keyframe, %d not, %d undetermined)\n",
		name, p.boxes, p.fragments, p.keyframes, p.notKeyframes, p.undetermined)
}

type probe struct {
	offsets    map[uint32]uint64
	timescales map[uint32]uint32
	out        io.Writer
	quiet      bool

	boxes        int
	fragments    int
	keyframes    int
	notKeyframes int
	undetermined int
}

func (p *probe) handleBox(b fmp4.Box) {
	p.boxes++

	switch b.Type {
	case "moov":
		p.timescales = fmp4.ExtractTimescales(&b)
		fmt.Printf("moov  size=%d\n", b.Size)
		for track, ts := range p.timescales {
			fmt.Printf("      track %d: timescale %d\n", track, ts)
		}
	case "moof":
		p.fragments++
		cls := fmp4.ClassifyFragment(&b)
		switch cls {
		case fmp4.Keyframe:
			p.keyframes++
		case fmp4.NotKeyframe:
			p.notKeyframes++
		default:
			p.undetermined++
		}
		results := fmp4.RewriteFragment(&b, p.offsets)
		if !p.quiet {
			fmt.Printf("moof  size=%d class=%s\n", b.Size, cls)
			for track, timing := range results {
				fmt.Printf("      track %d: tfdt=%d dur=%d%s\n",
					track, timing.BaseDecodeTime, timing.Duration, p.seconds(track, timing))
			}
		}
	default:
		if !p.quiet {
			fmt.Printf("%-4s  size=%d\n", b.Type, b.Size)
		}
	}

	if p.out != nil {
		if _, err := p.out.Write(b.Data); err != nil {
			slog.Error("write output", "error", err)
			os.Exit(1)
		}
	}
}

// seconds renders timing in wall-clock seconds when the track's timescale is
// known. Display only; all arithmetic stays in integer timescale units.
func (p *probe) seconds(track uint32, timing fmp4.TrackTiming) string {
	ts, ok := p.timescales[track]
	if !ok || ts == 0 {
		return ""
	}
	return fmt.Sprintf(" (t=%.3fs d=%.3fs)",
		float64(timing.BaseDecodeTime)/float64(ts),
		float64(timing.Duration)/float64(ts))
}
