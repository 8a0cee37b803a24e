package bustrace

import (
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

const traceFilePerm = 0o644

// FileSink appends events to a trace file. Safe for concurrent use.
type FileSink struct {
	file    *os.File
	encoder *cbor.Encoder
	mu      sync.Mutex
	closed  bool
}

// NewFileSink opens path for appending, creating it if needed.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, traceFilePerm)
	if err != nil {
		return nil, err
	}
	return &FileSink{
		file:    f,
		encoder: NewEncoder(f),
	}, nil
}

// Log appends an event. Encoding errors are dropped; tracing must not
// disturb bus access.
func (s *FileSink) Log(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	_ = s.encoder.Encode(event)
}

// Close closes the trace file. Safe to call more than once.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}

var _ Sink = (*FileSink)(nil)
