package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNewWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "lazyops.log")
	logger, err := New(path, "info")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("deploy settled", zap.Int64("application_id", 7))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (debug filtered), got %d: %q", len(lines), data)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "deploy settled" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["service"] != "lazyops" {
		t.Errorf("service = %v", entry["service"])
	}
	if entry["application_id"] != float64(7) {
		t.Errorf("application_id = %v", entry["application_id"])
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("log permissions = %o, want 0600", info.Mode().Perm())
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "x.log"), "loud"); err == nil {
		t.Error("New() expected error for unknown level")
	}
}
