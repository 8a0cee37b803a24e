package bustrace

import (
	"errors"
	"time"

	"github.com/nerrad567/gray-logic-amp/internal/tas5805m"
)

// Recorder is a transport decorator that traces every transaction.
type Recorder struct {
	next      tas5805m.Transport
	sink      Sink
	deviceID  string
	sessionID string
	now       func() time.Time
}

// NewRecorder wraps next so every register access is logged to sink.
// deviceID and sessionID tag each event; either may be empty.
func NewRecorder(next tas5805m.Transport, sink Sink, deviceID, sessionID string) *Recorder {
	return &Recorder{
		next:      next,
		sink:      sink,
		deviceID:  deviceID,
		sessionID: sessionID,
		now:       time.Now,
	}
}

// WriteRegister forwards the write and records the outcome.
func (r *Recorder) WriteRegister(reg tas5805m.Register, value byte) error {
	err := r.next.WriteRegister(reg, value)
	r.record(OpWrite, reg, value, err)
	return err
}

// ReadRegister forwards the read and records the outcome.
func (r *Recorder) ReadRegister(reg tas5805m.Register) (byte, error) {
	value, err := r.next.ReadRegister(reg)
	r.record(OpRead, reg, value, err)
	return value, err
}

func (r *Recorder) record(op Op, reg tas5805m.Register, value byte, err error) {
	event := Event{
		Timestamp: r.now(),
		DeviceID:  r.deviceID,
		SessionID: r.sessionID,
		Op:        op,
		Register:  reg,
		Value:     value,
	}
	if err != nil {
		event.Code = tas5805m.BusUnknown
		var terr *tas5805m.TransportError
		if errors.As(err, &terr) {
			event.Code = terr.Code
		}
		event.Error = err.Error()
	}
	r.sink.Log(event)
}

var _ tas5805m.Transport = (*Recorder)(nil)
