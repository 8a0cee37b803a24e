//go:build linux

package i2c

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/nerrad567/gray-logic-amp/internal/tas5805m"
)

func TestSlaveRequest(t *testing.T) {
	if i2cSlave != 0x0703 {
		t.Errorf("i2cSlave = 0x%04X, want 0x0703", i2cSlave)
	}
}

func TestOpenMissingDeviceLinux(t *testing.T) {
	_, err := Open(Config{Device: filepath.Join(t.TempDir(), "i2c-9"), Address: 0x2D})
	if err == nil {
		t.Fatal("Open() on a missing node should fail")
	}
	if !strings.Contains(err.Error(), "i2c: open") {
		t.Errorf("Open() error = %v, want open failure", err)
	}
}

func TestBusCode(t *testing.T) {
	tests := []struct {
		err  error
		want tas5805m.BusCode
	}{
		{unix.ENXIO, tas5805m.BusNACK},
		{unix.EREMOTEIO, tas5805m.BusNACK},
		{unix.ETIMEDOUT, tas5805m.BusTimeout},
		{unix.EBUSY, tas5805m.BusBusy},
		{unix.EAGAIN, tas5805m.BusBusy},
		{unix.EBADF, tas5805m.BusClosed},
		{unix.EIO, tas5805m.BusUnknown},
		{fmt.Errorf("wrapped: %w", unix.ENXIO), tas5805m.BusNACK},
		{fmt.Errorf("short write"), tas5805m.BusUnknown},
	}

	for _, tt := range tests {
		if got := busCode(tt.err); got != tt.want {
			t.Errorf("busCode(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestClosedBus(t *testing.T) {
	b := &Bus{fd: -1, closed: true}

	if err := b.WriteRegister(0x4C, 0x30); err == nil {
		t.Error("WriteRegister() on closed bus should fail")
	}
	_, err := b.ReadRegister(0x4C)
	terr, ok := err.(*tas5805m.TransportError)
	if !ok || terr.Code != tas5805m.BusClosed {
		t.Errorf("ReadRegister() error = %v, want BusClosed", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close() on closed bus = %v", err)
	}
}
