// Package bustrace records register transactions to a CBOR file.
//
// A Recorder wraps any register transport and emits one Event per read or
// write, including failures with their bus code. Traces are append-only and
// can be replayed with a Reader (see ampctl trace).
package bustrace

import (
	"time"

	"github.com/nerrad567/gray-logic-amp/internal/tas5805m"
)

// Op is the kind of bus transaction.
type Op uint8

const (
	OpWrite Op = iota + 1
	OpRead
)

// String returns the op name.
func (o Op) String() string {
	switch o {
	case OpWrite:
		return "write"
	case OpRead:
		return "read"
	default:
		return "unknown"
	}
}

// Event is one recorded register transaction.
// Integer keys keep the encoding compact.
type Event struct {
	Timestamp time.Time        `cbor:"1,keyasint"`
	DeviceID  string           `cbor:"2,keyasint,omitempty"`
	Op        Op               `cbor:"3,keyasint"`
	Register  byte             `cbor:"4,keyasint"`
	Value     byte             `cbor:"5,keyasint"`
	Code      tas5805m.BusCode `cbor:"6,keyasint,omitempty"`
	Error     string           `cbor:"7,keyasint,omitempty"`
	SessionID string           `cbor:"8,keyasint,omitempty"`
}

// Failed reports whether the transaction failed.
func (e Event) Failed() bool {
	return e.Code != tas5805m.BusOK
}

// Sink receives recorded events.
type Sink interface {
	Log(event Event)
}
