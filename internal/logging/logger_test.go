package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/mtraver/airquality/internal/config"
)

func TestNew_ProdIsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, config.Config{AppEnv: "prod", LogLevel: slog.LevelInfo}, "1.2.3", "aqpipeline")

	logger.Info("loaded", "rows", 3)

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	for k, want := range map[string]any{"msg": "loaded", "app": "aqpipeline", "version": "1.2.3", "env": "prod", "rows": 3.0} {
		if got[k] != want {
			t.Errorf("%s = %v, want %v", k, got[k], want)
		}
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, config.Config{AppEnv: "dev", LogLevel: slog.LevelWarn}, "dev", "aqpipeline")

	logger.Info("hidden")
	logger.Warn("collection may already exist")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line logged at warn level:\n%s", out)
	}
	if !strings.Contains(out, "collection may already exist") {
		t.Errorf("warn line missing:\n%s", out)
	}
}

func TestNew_DevNoColorWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{AppEnv: "dev", LogLevel: slog.LevelInfo}
	logger := New(&buf, cfg, "test-version", "test-app")

	logger.Info("hello", "k", "v")

	out := buf.String()
	if !strings.Contains(out, "hello") || !strings.Contains(out, "k=v") {
		t.Errorf("Expected message and attribute in output, got %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("Expected no ANSI escape codes when writing to a buffer, got %q", out)
	}
}

func TestIsTerminal(t *testing.T) {
	if isTerminal(&bytes.Buffer{}) {
		t.Error("A buffer is not a terminal")
	}

	f, err := os.Create(filepath.Join(t.TempDir(), "log"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if isTerminal(f) {
		t.Error("A regular file is not a terminal")
	}
}
