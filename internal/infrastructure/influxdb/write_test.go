package influxdb

import (
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-amp/internal/infrastructure/config"
)

func TestAmpStatePoint(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	p := ampStatePoint("amp-1", map[string]any{"volume_raw": 48, "muted": false}, ts)

	line := write.PointToLineProtocol(p, time.Second)

	if !strings.HasPrefix(line, "amp_state,device_id=amp-1 ") {
		t.Errorf("line = %q", line)
	}
	for _, want := range []string{"muted=false", "volume_raw=48i", " 1700000000"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestAmpErrorPoint(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	p := ampErrorPoint("amp-1", "write_register_failed", "nack", ts)

	line := write.PointToLineProtocol(p, time.Second)

	want := "amp_error,bus_code=nack,device_id=amp-1,kind=write_register_failed count=1i 1700000000\n"
	if line != want {
		t.Errorf("line = %q, want %q", line, want)
	}
}

func TestBatchSettings(t *testing.T) {
	tests := []struct {
		name          string
		batch, flush  int
		wantB, wantFl int
	}{
		{"configured", 500, 2, 500, 2},
		{"zero uses defaults", 0, 0, defaultBatchSize, defaultFlushInterval},
		{"negative uses defaults", -5, -1, defaultBatchSize, defaultFlushInterval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, f := batchSettings(config.InfluxDBConfig{BatchSize: tt.batch, FlushInterval: tt.flush})
			if b != tt.wantB || f != tt.wantFl {
				t.Errorf("batchSettings() = %d, %d, want %d, %d", b, f, tt.wantB, tt.wantFl)
			}
		})
	}
}

func TestWritesOnDisconnectedClientAreDropped(t *testing.T) {
	// writeAPI is nil; reaching it would panic.
	c := &Client{}
	c.WriteAmpState("amp-1", map[string]any{"volume": 0.5})
	c.WriteAmpError("amp-1", "write_register_failed", "nack")
	c.WritePoint("bridge_stats", nil, map[string]any{"commands": 1})
	c.Flush()
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
