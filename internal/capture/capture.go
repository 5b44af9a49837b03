// Package capture couples external capture producers (the browser layer
// recording a tab) with metadata, lifecycle signaling, and session dispatch.
// The producer writes raw fMP4 chunks into a pipe; the session pipeline
// reads them on the other side.
package capture

import (
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Stats captures producer-level metrics for one capture stream, exposed for
// monitoring source health.
type Stats struct {
	BytesReceived int64  `json:"bytesReceived"`
	ChunkCount    int64  `json:"chunkCount"`
	StartedAt     int64  `json:"startedAt"`
	UptimeMs      int64  `json:"uptimeMs"`
	SourceURL     string `json:"sourceUrl"`
}

// Stream represents one active capture, coupling the raw byte pipe with
// metadata and lifecycle signaling. Chunks written by the capture producer
// are read by the session pipeline.
type Stream struct {
	Key       string
	StartedAt time.Time
	input     io.ReadCloser
	pw        io.WriteCloser
	done      chan struct{}

	bytesReceived atomic.Int64
	chunkCount    atomic.Int64
	sourceURL     atomic.Value
}

// RecordChunk increments the byte and chunk counters, called by the capture
// producer after each chunk it hands over.
func (s *Stream) RecordChunk(n int) {
	s.bytesReceived.Add(int64(n))
	s.chunkCount.Add(1)
}

// SetSourceURL stores the page URL currently being captured, for diagnostics.
func (s *Stream) SetSourceURL(url string) {
	s.sourceURL.Store(url)
}

// Done is closed when the stream is unregistered.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Stats returns a snapshot of capture metrics.
func (s *Stream) Stats() Stats {
	url, _ := s.sourceURL.Load().(string)
	return Stats{
		BytesReceived: s.bytesReceived.Load(),
		ChunkCount:    s.chunkCount.Load(),
		StartedAt:     s.StartedAt.UnixMilli(),
		UptimeMs:      time.Since(s.StartedAt).Milliseconds(),
		SourceURL:     url,
	}
}

// Registry tracks active captures by key and dispatches new ones to the
// onStream callback for session setup. It is the rendezvous point between
// the browser capture layer and the fMP4 pipeline.
type Registry struct {
	mu      sync.RWMutex
	streams map[string]*Stream

	onStream func(key string, input io.Reader)
}

// NewRegistry creates a Registry. The onStream callback is invoked
// asynchronously whenever a new capture is registered.
func NewRegistry(onStream func(key string, input io.Reader)) *Registry {
	return &Registry{
		streams:  make(map[string]*Stream),
		onStream: onStream,
	}
}

// Register creates a new capture stream with the given key, returning the
// Stream and the Writer the capture producer should write fMP4 chunks into.
func (r *Registry) Register(key string) (*Stream, io.Writer) {
	pr, pw := io.Pipe()

	stream := &Stream{
		Key:       key,
		StartedAt: time.Now(),
		input:     pr,
		pw:        pw,
		done:      make(chan struct{}),
	}

	r.mu.Lock()
	r.streams[key] = stream
	r.mu.Unlock()

	if r.onStream != nil {
		go r.onStream(key, pr)
	}

	return stream, pw
}

// Unregister removes a capture by key, closing its pipe and signaling Done.
func (r *Registry) Unregister(key string) {
	r.mu.Lock()
	stream, ok := r.streams[key]
	if ok {
		delete(r.streams, key)
	}
	r.mu.Unlock()

	if ok {
		stream.pw.Close()
		close(stream.done)
	}
}

// Get returns the Stream for the given key, or false if not found.
func (r *Registry) Get(key string) (*Stream, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.streams[key]
	return s, ok
}

// Keys returns the keys of all active captures.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.streams))
	for k := range r.streams {
		keys = append(keys, k)
	}
	return keys
}
