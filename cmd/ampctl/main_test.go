package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunUnknownCommand(t *testing.T) {
	t.Setenv(configEnv, "")
	var out bytes.Buffer
	err := run(context.Background(), []string{"explode"}, &out)
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("run() error = %v, want unknown command", err)
	}
}

func TestRunInvalidConfig(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"-config", "/nonexistent/ampd.yaml", "history"}, &out)
	if err == nil || !strings.Contains(err.Error(), "loading config") {
		t.Errorf("run() error = %v, want loading config failure", err)
	}
}

func TestRunHistoryFromDatabase(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "ampd.yaml")
	content := `
database:
  path: "` + filepath.Join(dir, "amp.db") + `"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	var out bytes.Buffer
	if err := run(context.Background(), []string{"-config", configPath, "history"}, &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.Contains(out.String(), "0 of 0 events") {
		t.Errorf("output = %q", out.String())
	}
}

func TestLoadConfigDefault(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Device.Bus != "sim" {
		t.Errorf("default bus = %q, want sim", cfg.Device.Bus)
	}
}
