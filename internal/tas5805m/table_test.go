package tas5805m

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestApplyWritesInOrder(t *testing.T) {
	bus := newFakeBus()
	rec := &sleepRecorder{}

	table := Table{
		Write(0x00, 0x00),
		Write(0x7F, 0x00),
		Delay(3),
		Write(RegDeviceCtrl2, CtrlPlay),
	}

	n, err := Apply(context.Background(), bus, table, DefaultMaxDelayStep, rec.sleep)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Apply() = %d, want 3", n)
	}

	want := []RegisterEntry{{0x00, 0x00}, {0x7F, 0x00}, {RegDeviceCtrl2, CtrlPlay}}
	if len(bus.writes) != len(want) {
		t.Fatalf("writes = %v, want %v", bus.writes, want)
	}
	for i := range want {
		if bus.writes[i] != want[i] {
			t.Errorf("write[%d] = %v, want %v", i, bus.writes[i], want[i])
		}
	}
	if len(rec.delays) != 1 || rec.delays[0] != 3*time.Millisecond {
		t.Errorf("delays = %v, want [3ms]", rec.delays)
	}
}

func TestApplyDelayOnlyEntriesDoNotCount(t *testing.T) {
	tests := []struct {
		name  string
		table Table
		want  int
	}{
		{"empty", Table{}, 0},
		{"delays only", Table{Delay(1), Delay(2)}, 0},
		{"zero delay", Table{Delay(0), Write(0x4C, 0x10)}, 1},
		{"default table", DefaultTable, DefaultTable.Writes()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := newFakeBus()
			rec := &sleepRecorder{}
			n, err := Apply(context.Background(), bus, tt.table, DefaultMaxDelayStep, rec.sleep)
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if n != tt.want {
				t.Errorf("Apply() = %d, want %d", n, tt.want)
			}
			if bus.writeCount() != tt.want {
				t.Errorf("bus writes = %d, want %d", bus.writeCount(), tt.want)
			}
		})
	}
}

func TestApplyStopsAtFirstFailure(t *testing.T) {
	bus := newFakeBus()
	bus.failWriteAt = 3
	rec := &sleepRecorder{}

	table := Table{
		Write(0x01, 0x01),
		Write(0x02, 0x02),
		Delay(1),
		Write(0x03, 0x03),
		Write(0x04, 0x04),
		Delay(1),
	}

	n, err := Apply(context.Background(), bus, table, DefaultMaxDelayStep, rec.sleep)
	if err == nil {
		t.Fatal("Apply() should fail")
	}
	if n != 2 {
		t.Errorf("Apply() = %d, want 2", n)
	}
	if bus.writeCount() != 2 {
		t.Errorf("bus writes = %d, want 2 (entries after failure must not be attempted)", bus.writeCount())
	}
	if len(rec.delays) != 1 {
		t.Errorf("delays = %v, want only the one before the failure", rec.delays)
	}

	var terr *TransportError
	if !errors.As(err, &terr) || terr.Code != BusNACK {
		t.Errorf("error = %v, want TransportError with NACK", err)
	}
}

func TestApplyRejectsLongDelayBeforeIO(t *testing.T) {
	bus := newFakeBus()
	rec := &sleepRecorder{}

	table := Table{
		Write(0x03, 0x00),
		Delay(6),
		Write(0x4C, 0x1A),
	}

	n, err := Apply(context.Background(), bus, table, 5*time.Millisecond, rec.sleep)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("Apply() error = %v, want ErrInvalidArgument", err)
	}
	if n != 0 {
		t.Errorf("Apply() = %d, want 0", n)
	}
	if bus.writeCount() != 0 || len(rec.delays) != 0 {
		t.Errorf("bus touched: writes=%d delays=%v", bus.writeCount(), rec.delays)
	}
}

func TestApplyCeilingDisabled(t *testing.T) {
	bus := newFakeBus()
	rec := &sleepRecorder{}

	n, err := Apply(context.Background(), bus, Table{Delay(200), Write(0x4C, 0x20)}, 0, rec.sleep)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Apply() = %d, want 1", n)
	}
	if len(rec.delays) != 1 || rec.delays[0] != 200*time.Millisecond {
		t.Errorf("delays = %v, want [200ms]", rec.delays)
	}
}

func TestApplyCancelledDuringDelay(t *testing.T) {
	bus := newFakeBus()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := Apply(ctx, bus, Table{Write(0x01, 0x00), Delay(5), Write(0x02, 0x00)}, DefaultMaxDelayStep, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Apply() error = %v, want context.Canceled", err)
	}
	if n != 1 {
		t.Errorf("Apply() = %d, want 1", n)
	}
}

func TestTableValidate(t *testing.T) {
	tests := []struct {
		name    string
		table   Table
		max     time.Duration
		wantErr bool
	}{
		{"at ceiling", Table{Delay(5)}, 5 * time.Millisecond, false},
		{"over ceiling", Table{Delay(5), Delay(6)}, 5 * time.Millisecond, true},
		{"disabled", Table{Delay(255)}, -1, false},
		{"default table", DefaultTable, DefaultMaxDelayStep, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.table.Validate(tt.max)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegisterEntry(t *testing.T) {
	d := Delay(4)
	if !d.IsDelay() {
		t.Error("Delay(4).IsDelay() = false")
	}
	if d.Duration() != 4*time.Millisecond {
		t.Errorf("Duration() = %v, want 4ms", d.Duration())
	}
	if Write(RegDigitalVolume, 0x30).IsDelay() {
		t.Error("Write().IsDelay() = true")
	}
}

func TestDefaultTableEndsInPlay(t *testing.T) {
	bus := newFakeBus()
	rec := &sleepRecorder{}

	if _, err := Apply(context.Background(), bus, DefaultTable, DefaultMaxDelayStep, rec.sleep); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if bus.regs[RegDeviceCtrl2] != CtrlPlay {
		t.Errorf("DEVICE_CTRL_2 = 0x%02X, want 0x%02X", bus.regs[RegDeviceCtrl2], CtrlPlay)
	}
	if bus.regs[RegDigitalVolume] != VolumeZero {
		t.Errorf("digital volume = 0x%02X, want 0x%02X", bus.regs[RegDigitalVolume], VolumeZero)
	}
}
