package bustrace

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter selects trace events. Zero fields match everything.
type Filter struct {
	DeviceID   string
	SessionID  string
	Op         Op
	Register   *byte
	FailedOnly bool
	TimeStart  *time.Time
	TimeEnd    *time.Time
}

func (f *Filter) matches(event Event) bool {
	if f.DeviceID != "" && event.DeviceID != f.DeviceID {
		return false
	}
	if f.SessionID != "" && event.SessionID != f.SessionID {
		return false
	}
	if f.Op != 0 && event.Op != f.Op {
		return false
	}
	if f.Register != nil && event.Register != *f.Register {
		return false
	}
	if f.FailedOnly && !event.Failed() {
		return false
	}
	if f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart) {
		return false
	}
	if f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd) {
		return false
	}
	return true
}

// Reader streams events from a trace file.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	filter  Filter
}

// NewReader opens a trace file for reading all events.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens a trace file, returning only events matching filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{
		file:    f,
		decoder: NewDecoder(f),
		filter:  filter,
	}, nil
}

// Next returns the next matching event, or io.EOF at the end of the file.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if err := r.decoder.Decode(&event); err != nil {
			if errors.Is(err, io.EOF) {
				return Event{}, io.EOF
			}
			return Event{}, err
		}
		if r.filter.matches(event) {
			return event, nil
		}
	}
}

// Close closes the trace file.
func (r *Reader) Close() error {
	return r.file.Close()
}
