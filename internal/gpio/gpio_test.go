package gpio

import (
	"errors"
	"testing"

	"periph.io/x/conn/v3/gpio"
)

// fakePin records output levels.
type fakePin struct {
	name   string
	levels []gpio.Level
	outErr error
}

func (p *fakePin) Name() string { return p.name }

func (p *fakePin) Out(l gpio.Level) error {
	if p.outErr != nil {
		return p.outErr
	}
	p.levels = append(p.levels, l)
	return nil
}

func lookupOf(pins map[string]*fakePin) Lookup {
	return func(name string) (Output, error) {
		p, ok := pins[name]
		if !ok {
			return nil, ErrLineNotFound
		}
		return p, nil
	}
}

func TestNewLineInvalid(t *testing.T) {
	if _, err := NewLine(-1, nil); !errors.Is(err, ErrInvalidLine) {
		t.Errorf("NewLine(-1) error = %v, want ErrInvalidLine", err)
	}
	l, err := NewLine(4, nil)
	if err != nil {
		t.Fatalf("NewLine() error = %v", err)
	}
	if l.Name() != "4" {
		t.Errorf("Name() = %q, want 4", l.Name())
	}
}

func TestConfigureAndSet(t *testing.T) {
	pin := &fakePin{name: "GPIO17"}
	l, _ := NewLine(17, lookupOf(map[string]*fakePin{"17": pin}))

	if err := l.Set(true); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Set() before Configure error = %v, want ErrNotConfigured", err)
	}

	if err := l.Configure(); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if l.Name() != "GPIO17" {
		t.Errorf("Name() = %q, want GPIO17", l.Name())
	}
	if err := l.Set(false); err != nil {
		t.Fatalf("Set(false) error = %v", err)
	}
	if err := l.Set(true); err != nil {
		t.Fatalf("Set(true) error = %v", err)
	}

	want := []gpio.Level{gpio.Low, gpio.Low, gpio.High}
	if len(pin.levels) != len(want) {
		t.Fatalf("levels = %v, want %v", pin.levels, want)
	}
	for i := range want {
		if pin.levels[i] != want[i] {
			t.Errorf("level[%d] = %v, want %v", i, pin.levels[i], want[i])
		}
	}
}

func TestConfigureErrors(t *testing.T) {
	errPin := errors.New("pin busy")

	tests := []struct {
		name   string
		lookup Lookup
		want   error
	}{
		{"missing", lookupOf(nil), ErrLineNotFound},
		{"nil pin", func(string) (Output, error) { return nil, nil }, ErrLineNotFound},
		{"out fails", lookupOf(map[string]*fakePin{"5": {name: "GPIO5", outErr: errPin}}), errPin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _ := NewLine(5, tt.lookup)
			if err := l.Configure(); !errors.Is(err, tt.want) {
				t.Errorf("Configure() error = %v, want %v", err, tt.want)
			}
			if err := l.Set(true); !errors.Is(err, ErrNotConfigured) {
				t.Errorf("Set() after failed Configure error = %v, want ErrNotConfigured", err)
			}
		})
	}
}
