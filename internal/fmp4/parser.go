package fmp4

// Parser splits a fragmented-MP4 byte stream into complete top-level boxes.
// Chunk boundaries carry no meaning: a box header or payload may be split
// anywhere, and Push buffers partial data until the whole box has arrived.
// Each capture session owns exactly one Parser; a Parser must not be shared
// across goroutines.
type Parser struct {
	buf   []byte
	onBox func(Box)
}

// NewParser creates a Parser that invokes onBox once per completed box, in
// arrival order. The Box handed to the callback owns its buffer; it is never
// a view into the parser's internal buffer or a pushed chunk.
func NewParser(onBox func(Box)) *Parser {
	return &Parser{onBox: onBox}
}

// Push appends chunk to the internal buffer and emits every box that is now
// complete. A corrupt header (size below the header length, a size-0
// "extends to end of stream" sentinel, or a largesize over 4 GiB) is
// resynchronized by skipping a single byte and retrying, so one bad byte
// never stalls an otherwise healthy live stream.
func (p *Parser) Push(chunk []byte) {
	p.buf = append(p.buf, chunk...)

	for {
		typ, size, _, st := readBoxHeader(p.buf, 0)
		switch st {
		case hdrNeedMore:
			return
		case hdrInvalid:
			p.buf = p.buf[1:]
			continue
		}

		if uint64(len(p.buf)) < size {
			return // wait for the rest of the box
		}

		data := make([]byte, size)
		copy(data, p.buf[:size])
		p.buf = p.buf[size:]

		p.onBox(Box{Type: typ, Size: size, Data: data})
	}
}

// Flush discards any buffered incomplete trailing bytes. It is only useful
// at stream teardown; a partially received box can never become complete
// after the source stops.
func (p *Parser) Flush() {
	p.buf = nil
}

// Buffered reports how many bytes are held waiting for a complete box.
func (p *Parser) Buffered() int {
	return len(p.buf)
}
